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

type TX interface {
	RPCModule

	Submit(ctx context.Context, sessionID uuid.UUID, transaction bnapi.RawJSON) (result *bnapi.SubmitResult, err error)
}

// This is necessary because there's no way to introspect function parameter names via reflection
var txInfo = &rpcModuleInfo{
	group: "tx",
	methodInfo: map[string]RPCMethodInfo{
		"tx_submit": {
			Inputs: []string{"sessionId", "transaction"},
			Output: "result",
		},
	},
}

type tx struct {
	*rpcModuleInfo
	c *businessNetworkClient
}

func (c *businessNetworkClient) TX() TX {
	return &tx{rpcModuleInfo: txInfo, c: c}
}

func (t *tx) Submit(ctx context.Context, sessionID uuid.UUID, transaction bnapi.RawJSON) (result *bnapi.SubmitResult, err error) {
	err = t.c.CallRPC(ctx, &result, "tx_submit", sessionID, transaction)
	return
}
