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

package dispatch

import (
	"context"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/kaleido-io/flowbridge/internal/model"
	"github.com/kaleido-io/flowbridge/internal/msgs"
	"github.com/kaleido-io/flowbridge/internal/payload"
	"github.com/kaleido-io/flowbridge/internal/session"
	"github.com/kaleido-io/flowbridge/pkg/bnapi"
	"github.com/kaleido-io/flowbridge/pkg/bnclient"
	"github.com/kaleido-io/flowbridge/pkg/cache"
	"github.com/kaleido-io/flowbridge/pkg/flowconf"
	"github.com/kaleido-io/flowbridge/pkg/log"
	"github.com/kaleido-io/flowbridge/pkg/rpcclient"
)

const (
	OperationCreate   = "create"
	OperationUpdate   = "update"
	OperationRetrieve = "retrieve"
	OperationList     = "list"
)

// Dispatcher routes validated payloads to the right business network call
// for their declaration kind. Assets and participants go to their registry,
// transactions are submitted for execution, and everything else is
// rejected before any network call is made for it.
//
// Every operation runs validate, then connect, then dispatch, strictly in
// that order. A payload that fails validation never costs a connect, and a
// connection failure surfaces before a single registry call is attempted.
type Dispatcher struct {
	sessions   *session.Manager
	client     bnclient.BusinessNetworkClient
	registries cache.Cache[string, *bnapi.RegistryHandle]
}

func NewDispatcher(sessions *session.Manager, client bnclient.BusinessNetworkClient, conf *flowconf.ConnectionConfig) *Dispatcher {
	return &Dispatcher{
		sessions:   sessions,
		client:     client,
		registries: cache.NewCache[string, *bnapi.RegistryHandle](&conf.RegistryCache, &flowconf.ConnectionDefaults.RegistryCache),
	}
}

// Create adds a new asset or participant to its registry, or submits a
// transaction for execution.
func (d *Dispatcher) Create(ctx context.Context, data bnapi.RawJSON) (*bnapi.OperationResult, error) {
	return d.operate(ctx, OperationCreate, data)
}

// Update replaces an existing asset or participant in its registry.
// Transactions cannot be updated.
func (d *Dispatcher) Update(ctx context.Context, data bnapi.RawJSON) (*bnapi.OperationResult, error) {
	return d.operate(ctx, OperationUpdate, data)
}

func (d *Dispatcher) operate(ctx context.Context, operation string, data bnapi.RawJSON) (*bnapi.OperationResult, error) {
	if _, err := payload.ParseOperate(ctx, data); err != nil {
		return nil, err
	}
	arts, err := d.sessions.EnsureConnected(ctx)
	if err != nil {
		return nil, err
	}
	resource, err := arts.Serializer.FromJSON(ctx, data)
	if err != nil {
		return nil, err
	}
	kind, ok := arts.Model.Classify(resource.Declaration)
	if !ok {
		return nil, i18n.NewError(ctx, msgs.MsgDispatchUnsupportedType, resource.Class, resource.Declaration.Kind)
	}
	canonical, err := arts.Serializer.ToJSON(ctx, resource)
	if err != nil {
		return nil, err
	}

	switch kind {
	case bnapi.DeclarationKindAsset, bnapi.DeclarationKindParticipant:
		return d.operateRegistry(ctx, arts, operation, kind, resource, canonical)
	case bnapi.DeclarationKindTransaction:
		if operation != OperationCreate {
			return nil, i18n.NewError(ctx, msgs.MsgDispatchUnsupportedOperation, operation, resource.Class)
		}
		return d.submit(ctx, arts, resource, canonical)
	default:
		// concept, event and enum declarations have no registry to dispatch to
		return nil, i18n.NewError(ctx, msgs.MsgDispatchUnsupportedType, resource.Class, kind)
	}
}

func (d *Dispatcher) operateRegistry(ctx context.Context, arts *session.Artifacts, operation string, kind bnapi.DeclarationKind, resource *model.Resource, canonical bnapi.RawJSON) (*bnapi.OperationResult, error) {
	registry, err := d.resolveRegistry(ctx, arts, kind, resource.Declaration.Name)
	if err != nil {
		return nil, err
	}
	switch operation {
	case OperationCreate:
		_, err = d.client.Registry().Add(ctx, arts.SessionID, registry.RegistryID, canonical)
	default:
		_, err = d.client.Registry().Update(ctx, arts.SessionID, registry.RegistryID, canonical)
	}
	if err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgDispatchOperationFailed, operation, resource.Class, resource.ID)
	}
	log.L(ctx).Debugf("%s %s '%s' in registry %s", operation, kind, resource.ID, registry.RegistryID)
	return &bnapi.OperationResult{
		Operation:  operation,
		Class:      resource.Class,
		ResourceID: resource.ID,
	}, nil
}

func (d *Dispatcher) submit(ctx context.Context, arts *session.Artifacts, resource *model.Resource, canonical bnapi.RawJSON) (*bnapi.OperationResult, error) {
	result, err := d.client.TX().Submit(ctx, arts.SessionID, canonical)
	if err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgDispatchSubmitFailed, resource.Class)
	}
	log.L(ctx).Debugf("submitted %s tx=%s", resource.Class, result.TransactionID)
	return &bnapi.OperationResult{
		Operation:     OperationCreate,
		Class:         resource.Class,
		TransactionID: &result.TransactionID,
	}, nil
}

// Retrieve fetches one resource by type and identifier, returning it in
// canonical serialized form regardless of how the node stores it.
func (d *Dispatcher) Retrieve(ctx context.Context, typeName, id string) (bnapi.RawJSON, error) {
	arts, kind, err := d.resolveRegistryKind(ctx, typeName)
	if err != nil {
		return nil, err
	}
	registry, err := d.resolveRegistry(ctx, arts, kind, typeName)
	if err != nil {
		return nil, err
	}
	raw, err := d.client.Registry().Get(ctx, arts.SessionID, registry.RegistryID, id)
	if err != nil {
		if rpcErr, isRPC := err.(rpcclient.ErrorRPC); isRPC && rpcErr.RPCError().Code == bnapi.RPCCodeNotFound {
			return nil, i18n.NewError(ctx, msgs.MsgDispatchResourceNotFound, typeName, id)
		}
		return nil, i18n.WrapError(ctx, err, msgs.MsgDispatchOperationFailed, OperationRetrieve, typeName, id)
	}
	return d.canonical(ctx, arts, raw)
}

// List returns up to limit resources of the given type, each in canonical
// serialized form.
func (d *Dispatcher) List(ctx context.Context, typeName string, limit int) ([]bnapi.RawJSON, error) {
	arts, kind, err := d.resolveRegistryKind(ctx, typeName)
	if err != nil {
		return nil, err
	}
	registry, err := d.resolveRegistry(ctx, arts, kind, typeName)
	if err != nil {
		return nil, err
	}
	raw, err := d.client.Registry().List(ctx, arts.SessionID, registry.RegistryID, limit)
	if err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgDispatchListFailed, typeName)
	}
	resources := make([]bnapi.RawJSON, len(raw))
	for i, r := range raw {
		if resources[i], err = d.canonical(ctx, arts, r); err != nil {
			return nil, err
		}
	}
	return resources, nil
}

// Only asset and participant declarations are backed by a registry that
// supports retrieval.
func (d *Dispatcher) resolveRegistryKind(ctx context.Context, typeName string) (*session.Artifacts, bnapi.DeclarationKind, error) {
	arts, err := d.sessions.EnsureConnected(ctx)
	if err != nil {
		return nil, "", err
	}
	decl := arts.Model.Resolve(typeName)
	if decl == nil {
		return nil, "", i18n.NewError(ctx, msgs.MsgDispatchRetrieveUndeclared, typeName, arts.Definition.Name)
	}
	kind, ok := arts.Model.Classify(decl)
	if !ok || (kind != bnapi.DeclarationKindAsset && kind != bnapi.DeclarationKindParticipant) {
		return nil, "", i18n.NewError(ctx, msgs.MsgDispatchUnsupportedType, typeName, decl.Kind)
	}
	return arts, kind, nil
}

// Registry handles are stable for the life of the session, so successful
// lookups are cached per kind and type.
func (d *Dispatcher) resolveRegistry(ctx context.Context, arts *session.Artifacts, kind bnapi.DeclarationKind, typeName string) (*bnapi.RegistryHandle, error) {
	cacheKey := string(kind) + "/" + typeName
	if registry, cached := d.registries.Get(cacheKey); cached {
		return registry, nil
	}
	registry, err := d.client.Registry().Lookup(ctx, arts.SessionID, kind, typeName)
	if err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgDispatchRegistryUnavailable, kind, typeName)
	}
	d.registries.Set(cacheKey, registry)
	return registry, nil
}

func (d *Dispatcher) canonical(ctx context.Context, arts *session.Artifacts, raw bnapi.RawJSON) (bnapi.RawJSON, error) {
	resource, err := arts.Serializer.FromJSON(ctx, raw)
	if err != nil {
		return nil, err
	}
	return arts.Serializer.ToJSON(ctx, resource)
}
