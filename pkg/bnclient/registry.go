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

package bnclient

import (
	"context"

	"github.com/google/uuid"
	"github.com/kaleido-io/flowbridge/pkg/bnapi"
)

type Registry interface {
	RPCModule

	Lookup(ctx context.Context, sessionID uuid.UUID, kind bnapi.DeclarationKind, typeName string) (registry *bnapi.RegistryHandle, err error)
	Add(ctx context.Context, sessionID uuid.UUID, registryID string, resource bnapi.RawJSON) (success bool, err error)
	Update(ctx context.Context, sessionID uuid.UUID, registryID string, resource bnapi.RawJSON) (success bool, err error)
	Get(ctx context.Context, sessionID uuid.UUID, registryID string, resourceID string) (resource bnapi.RawJSON, err error)
	List(ctx context.Context, sessionID uuid.UUID, registryID string, limit int) (resources []bnapi.RawJSON, err error)
}

// This is necessary because there's no way to introspect function parameter names via reflection
var registryInfo = &rpcModuleInfo{
	group: "reg",
	methodInfo: map[string]RPCMethodInfo{
		"reg_lookup": {
			Inputs: []string{"sessionId", "kind", "typeName"},
			Output: "registry",
		},
		"reg_add": {
			Inputs: []string{"sessionId", "registryId", "resource"},
			Output: "success",
		},
		"reg_update": {
			Inputs: []string{"sessionId", "registryId", "resource"},
			Output: "success",
		},
		"reg_get": {
			Inputs: []string{"sessionId", "registryId", "resourceId"},
			Output: "resource",
		},
		"reg_list": {
			Inputs: []string{"sessionId", "registryId", "limit"},
			Output: "resources",
		},
	},
}

type registry struct {
	*rpcModuleInfo
	c *businessNetworkClient
}

func (c *businessNetworkClient) Registry() Registry {
	return &registry{rpcModuleInfo: registryInfo, c: c}
}

func (r *registry) Lookup(ctx context.Context, sessionID uuid.UUID, kind bnapi.DeclarationKind, typeName string) (registry *bnapi.RegistryHandle, err error) {
	err = r.c.CallRPC(ctx, &registry, "reg_lookup", sessionID, kind, typeName)
	return
}

func (r *registry) Add(ctx context.Context, sessionID uuid.UUID, registryID string, resource bnapi.RawJSON) (success bool, err error) {
	err = r.c.CallRPC(ctx, &success, "reg_add", sessionID, registryID, resource)
	return
}

func (r *registry) Update(ctx context.Context, sessionID uuid.UUID, registryID string, resource bnapi.RawJSON) (success bool, err error) {
	err = r.c.CallRPC(ctx, &success, "reg_update", sessionID, registryID, resource)
	return
}

func (r *registry) Get(ctx context.Context, sessionID uuid.UUID, registryID string, resourceID string) (resource bnapi.RawJSON, err error) {
	err = r.c.CallRPC(ctx, &resource, "reg_get", sessionID, registryID, resourceID)
	return
}

func (r *registry) List(ctx context.Context, sessionID uuid.UUID, registryID string, limit int) (resources []bnapi.RawJSON, err error) {
	err = r.c.CallRPC(ctx, &resources, "reg_list", sessionID, registryID, limit)
	return
}
