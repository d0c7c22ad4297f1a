// Copyright © 2025 Kaleido, Inc.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package bnapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampUnmarshalFormats(t *testing.T) {
	var ts Timestamp

	err := json.Unmarshal([]byte(`"2025-01-02T15:04:05.000000001Z"`), &ts)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-02T15:04:05.000000001Z", ts.String())

	// Unix seconds scale up to nanoseconds
	err = json.Unmarshal([]byte(`1672531200`), &ts)
	require.NoError(t, err)
	assert.Equal(t, int64(1672531200000000000), ts.UnixNano())

	err = json.Unmarshal([]byte(`"1672531200000"`), &ts)
	require.NoError(t, err)
	assert.Equal(t, int64(1672531200000000000), ts.UnixNano())

	err = json.Unmarshal([]byte(`null`), &ts)
	require.NoError(t, err)
	assert.Zero(t, ts)

	err = json.Unmarshal([]byte(`{"not":"a time"}`), &ts)
	assert.Regexp(t, "FB001303", err)

	err = json.Unmarshal([]byte(`"!wrong"`), &ts)
	assert.Regexp(t, "FB001304", err)
}

func TestTimestampMarshal(t *testing.T) {
	zero := Timestamp(0)
	b, err := zero.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))

	ts := MustParseTimeString("2025-01-02T15:04:05Z")
	b, err = json.Marshal(&ts)
	require.NoError(t, err)
	assert.Equal(t, `"2025-01-02T15:04:05Z"`, string(b))
	assert.Equal(t, "", zero.String())
}

func TestTimestampParseStrings(t *testing.T) {
	assert.Equal(t, Timestamp(1000000000), MustParseTimeString("1"))
	assert.Panics(t, func() {
		MustParseTimeString("!wrong")
	})
}

func TestTimestampEqual(t *testing.T) {
	t1 := TimestampNow()
	t2 := t1
	var tnil *Timestamp
	assert.True(t, t1.Equal(&t2))
	assert.True(t, tnil.Equal(nil))
	assert.False(t, t1.Equal(nil))
	assert.True(t, t1.Time().Equal(t2.Time()))
}
