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

package model

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/kaleido-io/flowbridge/internal/msgs"
	"github.com/kaleido-io/flowbridge/pkg/bnapi"
)

// ClassField is the discriminator every resource payload carries, naming the
// declared type the rest of the fields belong to.
const ClassField = "$class"

// Resource is a payload bound to its declaration. Fields retains the original
// JSON object, including the class discriminator.
type Resource struct {
	Class       string
	ID          string
	Declaration *bnapi.Declaration
	Fields      bnapi.RawJSON
}

// Serializer converts between raw JSON payloads and resources typed against
// one business network's model.
type Serializer struct {
	model *TypeModel
}

func NewSerializer(model *TypeModel) *Serializer {
	return &Serializer{model: model}
}

// FromJSON binds a JSON payload to its declaration, extracting the identifier
// for registry backed kinds. Transactions are identified by the node at submit
// time, so no identifier is required of them.
func (s *Serializer) FromJSON(ctx context.Context, data bnapi.RawJSON) (*Resource, error) {
	fields, err := decodeObject(data)
	if err != nil {
		return nil, i18n.NewError(ctx, msgs.MsgPayloadInvalidJSON, err)
	}
	class, _ := fields[ClassField].(string)
	if class == "" {
		return nil, i18n.NewError(ctx, msgs.MsgPayloadMissingClass)
	}
	decl := s.model.Resolve(class)
	if decl == nil {
		return nil, i18n.NewError(ctx, msgs.MsgModelUnknownClass, class, s.model.network.Name)
	}

	r := &Resource{
		Class:       class,
		Declaration: decl,
		Fields:      data,
	}

	// Only registry backed kinds carry a client supplied identifier
	kind, ok := s.model.Classify(decl)
	if ok && (kind == bnapi.DeclarationKindAsset || kind == bnapi.DeclarationKindParticipant) {
		idValue, present := fields[decl.IdentifiedBy]
		if !present {
			return nil, i18n.NewError(ctx, msgs.MsgModelMissingIdentifier, class, decl.IdentifiedBy)
		}
		idString, isString := idValue.(string)
		if !isString || idString == "" {
			return nil, i18n.NewError(ctx, msgs.MsgModelIdentifierNotString, decl.IdentifiedBy, class)
		}
		r.ID = idString
	}
	return r, nil
}

// ToJSON re-serializes a resource to its canonical wire form - object keys
// sorted at every level, numeric literals preserved.
func (s *Serializer) ToJSON(ctx context.Context, r *Resource) (bnapi.RawJSON, error) {
	fields, err := decodeObject(r.Fields)
	if err != nil {
		return nil, i18n.NewError(ctx, msgs.MsgModelResourceReadFailed, r.Class, err)
	}
	canonical, err := json.Marshal(fields)
	if err != nil {
		return nil, i18n.NewError(ctx, msgs.MsgModelResourceReadFailed, r.Class, err)
	}
	return canonical, nil
}

// decodeObject parses a JSON object keeping numbers as their original
// literals, so canonical re-serialization cannot corrupt large values.
func decodeObject(data bnapi.RawJSON) (map[string]interface{}, error) {
	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()
	var fields map[string]interface{}
	if err := d.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}
