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

// The kind of a declaration within a business network definition, which
// determines how instances of it are dispatched
type DeclarationKind string

const (
	DeclarationKindAsset       DeclarationKind = "asset"
	DeclarationKindParticipant DeclarationKind = "participant"
	DeclarationKindTransaction DeclarationKind = "transaction"
	DeclarationKindConcept     DeclarationKind = "concept"
	DeclarationKindEvent       DeclarationKind = "event"
	DeclarationKindEnum        DeclarationKind = "enum"
)

func (dk DeclarationKind) Enum() Enum[DeclarationKind] {
	return Enum[DeclarationKind](dk)
}

func (dk DeclarationKind) Options() []string {
	return []string{
		string(DeclarationKindAsset),
		string(DeclarationKindParticipant),
		string(DeclarationKindTransaction),
		string(DeclarationKindConcept),
		string(DeclarationKindEvent),
		string(DeclarationKindEnum),
	}
}

// A single named type declared by a business network
type Declaration struct {
	Name         string                `json:"name"`                   // the fully qualified class name, as referenced by $class in payloads
	Kind         Enum[DeclarationKind] `json:"kind"`                   // determines the operations available on instances
	IdentifiedBy string                `json:"identifiedBy,omitempty"` // the field that uniquely identifies instances, for registry backed kinds
	Description  string                `json:"description,omitempty"`
}

// The self-describing type model a business network node returns on connect
type NetworkDefinition struct {
	Name         string         `json:"name"`
	Version      string         `json:"version,omitempty"`
	Declarations []*Declaration `json:"declarations"`
}
