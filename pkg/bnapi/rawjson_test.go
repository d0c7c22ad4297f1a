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

func TestRawJSONRoundTrip(t *testing.T) {
	type wrapper struct {
		Data RawJSON `json:"data"`
	}

	b, err := json.Marshal(&wrapper{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":null}`, string(b))

	var w wrapper
	err = json.Unmarshal([]byte(`{"data":{"some":"thing"}}`), &w)
	require.NoError(t, err)
	assert.JSONEq(t, `{"some":"thing"}`, w.Data.String())
	assert.Equal(t, []byte(w.Data), w.Data.Bytes())
	assert.False(t, w.Data.IsNil())
}

func TestRawJSONIsNil(t *testing.T) {
	assert.True(t, RawJSON(nil).IsNil())
	assert.True(t, RawJSON(`null`).IsNil())
	assert.False(t, RawJSON(`{}`).IsNil())
	assert.Equal(t, "", RawJSON(nil).String())
}

func TestRawJSONUnmarshalNil(t *testing.T) {
	var pm *RawJSON
	err := pm.UnmarshalJSON([]byte(`{}`))
	assert.Regexp(t, "FB001301", err)
}

func TestRawJSONStringValue(t *testing.T) {
	assert.Equal(t, "some text", RawJSON(`"some text"`).StringValue())
	assert.Equal(t, `{"not":"a string"}`, RawJSON(`{"not":"a string"}`).StringValue())
}

func TestRawJSONToMap(t *testing.T) {
	assert.Equal(t, "widget", RawJSON(`{"kind":"widget"}`).ToMap()["kind"])
	assert.Empty(t, RawJSON(`[1,2,3]`).ToMap())
	assert.Empty(t, RawJSON(nil).ToMap())
}

func TestRawJSONPretty(t *testing.T) {
	assert.Equal(t, "{\n  \"a\": 1\n}", RawJSON(`{"a":1}`).Pretty())
	assert.Equal(t, `{!broken`, RawJSON(`{!broken`).Pretty())
}
