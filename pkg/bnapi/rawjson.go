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
	"context"
	"encoding/json"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/kaleido-io/flowbridge/internal/msgs"
)

// RawJSON is a pre-serialized unit of JSON that is passed through verbatim on
// the wire, with nil serializing to JSON null
type RawJSON []byte

func (m RawJSON) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	return m, nil
}

func (m *RawJSON) UnmarshalJSON(data []byte) error {
	if m == nil {
		return i18n.NewError(context.Background(), msgs.MsgTypesUnmarshalNil)
	}
	*m = append((*m)[0:0], data...)
	return nil
}

func (m RawJSON) Bytes() []byte {
	return m
}

func (m RawJSON) String() string {
	if m == nil {
		return ""
	}
	return (string)(m)
}

// StringValue returns the JSON as-is, unless it is a JSON string - in which
// case the unquoted value of that string
func (m RawJSON) StringValue() (s string) {
	if err := json.Unmarshal(m, &s); err != nil {
		return m.String()
	}
	return s
}

// ToMap parses the JSON as an object, returning an empty map if it is not one
func (m RawJSON) ToMap() map[string]interface{} {
	var jo map[string]interface{}
	_ = json.Unmarshal(m, &jo)
	if jo == nil {
		jo = map[string]interface{}{}
	}
	return jo
}

func (m RawJSON) Pretty() string {
	var val interface{}
	if err := json.Unmarshal(m, &val); err != nil {
		return m.String()
	}
	pretty, _ := json.MarshalIndent(val, "", "  ")
	return (string)(pretty)
}

func (m RawJSON) IsNil() bool {
	return m == nil || (string)(m) == "null"
}
