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
	"github.com/kaleido-io/flowbridge/pkg/rpcclient"
)

type BNet interface {
	RPCModule

	Connect(ctx context.Context, request *bnapi.ConnectRequest) (session *bnapi.ConnectResult, err error)
	NodeVersion(ctx context.Context) (version string, err error)

	SubscribeEvents(ctx context.Context, sessionID uuid.UUID) (sub rpcclient.Subscription, err error)
}

// Note there is no disconnect method. A session lasts for the life of the process
// that established it, and the node reaps sessions when the transport drops.
//
// This is necessary because there's no way to introspect function parameter names via reflection
var bnetInfo = &rpcModuleInfo{
	group: "bnet",
	methodInfo: map[string]RPCMethodInfo{
		"bnet_connect": {
			Inputs: []string{"request"},
			Output: "session",
		},
		"bnet_nodeVersion": {
			Inputs: []string{},
			Output: "version",
		},
	},
	subscriptions: []RPCSubscriptionInfo{
		{
			SubscriptionConfig: rpcclient.BNetSubscribeConfig(),
			FixedInputs:        []string{"events"},
			Inputs:             []string{"sessionId"},
		},
	},
}

type bnet struct {
	*rpcModuleInfo
	c *businessNetworkClient
}

func (c *businessNetworkClient) BNet() BNet {
	return &bnet{rpcModuleInfo: bnetInfo, c: c}
}

func (b *bnet) Connect(ctx context.Context, request *bnapi.ConnectRequest) (session *bnapi.ConnectResult, err error) {
	err = b.c.CallRPC(ctx, &session, "bnet_connect", request)
	return
}

func (b *bnet) NodeVersion(ctx context.Context) (version string, err error) {
	err = b.c.CallRPC(ctx, &version, "bnet_nodeVersion")
	return
}

func (b *bnet) SubscribeEvents(ctx context.Context, sessionID uuid.UUID) (sub rpcclient.Subscription, err error) {
	ws, err := b.c.WSClient(ctx)
	if err != nil {
		return nil, err
	}
	return ws.Subscribe(ctx, rpcclient.BNetSubscribeConfig(), "events", sessionID)
}
