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
	"context"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/kaleido-io/flowbridge/internal/msgs"
	"github.com/kaleido-io/flowbridge/pkg/bnapi"
)

// TypeModel is an indexed view over the network definition a node returns at
// connect time. It is immutable once built - a new connect produces a new model.
type TypeModel struct {
	network *bnapi.NetworkDefinition
	byName  map[string]*bnapi.Declaration
}

func NewTypeModel(ctx context.Context, network *bnapi.NetworkDefinition) (*TypeModel, error) {
	tm := &TypeModel{
		network: network,
		byName:  make(map[string]*bnapi.Declaration, len(network.Declarations)),
	}
	for _, decl := range network.Declarations {
		if _, exists := tm.byName[decl.Name]; exists {
			return nil, i18n.NewError(ctx, msgs.MsgModelDuplicateDeclaration, decl.Name)
		}
		tm.byName[decl.Name] = decl
	}
	return tm, nil
}

func (tm *TypeModel) Network() *bnapi.NetworkDefinition {
	return tm.network
}

// Resolve returns the declaration for a fully qualified class name, or nil
// when the business network does not declare it.
func (tm *TypeModel) Resolve(typeName string) *bnapi.Declaration {
	return tm.byName[typeName]
}

// Classify validates the declared kind against the closed set. Declarations
// carrying a kind outside the set report ok=false, and are routed as
// unsupported rather than guessed at.
func (tm *TypeModel) Classify(decl *bnapi.Declaration) (kind bnapi.DeclarationKind, ok bool) {
	validated, err := decl.Kind.Validate()
	if err != nil {
		return "", false
	}
	return validated, true
}
