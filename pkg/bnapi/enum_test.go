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

func TestDeclarationKindValidate(t *testing.T) {
	kind, err := DeclarationKindAsset.Enum().Validate()
	require.NoError(t, err)
	assert.Equal(t, DeclarationKindAsset, kind)

	// Case insensitive, normalized to the declared option
	kind, err = Enum[DeclarationKind]("PARTICIPANT").Validate()
	require.NoError(t, err)
	assert.Equal(t, DeclarationKindParticipant, kind)

	_, err = Enum[DeclarationKind]("widget").Validate()
	assert.Regexp(t, "FB001302", err)

	// No default for declaration kinds, so empty is invalid too
	_, err = Enum[DeclarationKind]("").Validate()
	assert.Regexp(t, "FB001302", err)
}

func TestSessionStateDefault(t *testing.T) {
	state, err := Enum[SessionState]("").MapToString()
	require.NoError(t, err)
	assert.Equal(t, "disconnected", state)

	stateV, err := SessionStateConnected.Enum().Validate()
	require.NoError(t, err)
	assert.Equal(t, SessionStateConnected, stateV)
}

func TestMapEnum(t *testing.T) {
	mapped, err := MapEnum(DeclarationKindAsset.Enum(), map[DeclarationKind]int{
		DeclarationKindAsset:       1,
		DeclarationKindParticipant: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, mapped)

	// Valid option, but not in the map - the error lists only the mapped options
	_, err = MapEnum(DeclarationKindEvent.Enum(), map[DeclarationKind]int{
		DeclarationKindAsset: 1,
	})
	assert.Regexp(t, "FB001302.*asset", err)

	_, err = MapEnum(Enum[DeclarationKind]("wrong"), map[DeclarationKind]int{})
	assert.Regexp(t, "FB001302", err)
}

func TestEnumInStruct(t *testing.T) {
	d := &Declaration{}
	err := json.Unmarshal([]byte(`{"name": "org.acme.Vehicle", "kind": "asset"}`), d)
	require.NoError(t, err)
	assert.Equal(t, DeclarationKindAsset, d.Kind.V())
	assert.Equal(t, DeclarationKindAsset.Options(), d.Kind.Options())
}
