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
	"sort"

	"github.com/go-resty/resty/v2"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/kaleido-io/flowbridge/internal/msgs"
	"github.com/kaleido-io/flowbridge/pkg/flowconf"
	"github.com/kaleido-io/flowbridge/pkg/rpcclient"
)

type BusinessNetworkClient interface {
	// Direct RPC access
	rpcclient.Client

	// Config
	HTTP(ctx context.Context, conf *flowconf.HTTPClientConfig) (BusinessNetworkClient, error)
	WebSocket(ctx context.Context, conf *flowconf.WSClientConfig) (BusinessNetworkWSClient, error)

	// Business network session RPC interface
	BNet() BNet

	// Registry RPC interface
	Registry() Registry

	// Transaction RPC interface
	TX() TX
}

type RPCModule interface {
	Group() string
	Methods() []string
	MethodInfo(method string) *RPCMethodInfo
}

type RPCMethodInfo struct {
	Inputs []string
	Output string
}

type RPCSubscriptionInfo struct {
	rpcclient.SubscriptionConfig
	FixedInputs []string
	Inputs      []string
}

type rpcModuleInfo struct {
	group         string
	methodInfo    map[string]RPCMethodInfo
	subscriptions []RPCSubscriptionInfo
}

func (fg *rpcModuleInfo) Group() string {
	return fg.group
}

func (fg *rpcModuleInfo) Methods() []string {
	methods := make([]string, 0, len(fg.methodInfo))
	for name := range fg.methodInfo {
		methods = append(methods, name)
	}
	sort.Strings(methods) // needs to be a consistent order
	return methods
}

func (fg *rpcModuleInfo) MethodInfo(method string) *RPCMethodInfo {
	info, found := fg.methodInfo[method]
	if !found {
		return nil
	}
	return &info
}

type BusinessNetworkWSClient interface {
	BusinessNetworkClient
	Close()
}

type businessNetworkClient struct {
	rpcclient.Client
}

func Wrap(rpc rpcclient.Client) BusinessNetworkClient {
	return &businessNetworkClient{
		Client: rpc,
	}
}

func WrapRestyClient(rc *resty.Client) BusinessNetworkClient {
	return Wrap(rpcclient.WrapRestyClient(rc))
}

func New() BusinessNetworkClient {
	return Wrap(&unconnectedRPC{})
}

func (c *businessNetworkClient) WSClient(ctx context.Context) (rpcclient.WSClient, error) {
	wsc, ok := c.Client.(rpcclient.WSClient)
	if !ok {
		return nil, i18n.NewError(ctx, msgs.MsgRPCClientWebSocketRequired)
	}
	return wsc, nil
}

func (c *businessNetworkClient) HTTP(ctx context.Context, conf *flowconf.HTTPClientConfig) (BusinessNetworkClient, error) {
	rpc, err := rpcclient.NewHTTPClient(ctx, conf)
	if err != nil {
		return nil, err
	}
	c.Client = rpc
	return c, nil
}

func (c *businessNetworkClient) WebSocket(ctx context.Context, conf *flowconf.WSClientConfig) (BusinessNetworkWSClient, error) {
	rpc, err := rpcclient.NewWSClient(ctx, conf)
	if err == nil {
		err = rpc.Connect(ctx)
	}
	if err != nil {
		return nil, err
	}
	c.Client = rpc
	return &wsBusinessNetworkClient{businessNetworkClient: c, wsRPC: rpc}, nil
}

type unconnectedRPC struct{}

func (u *unconnectedRPC) CallRPC(ctx context.Context, result interface{}, method string, params ...interface{}) rpcclient.ErrorRPC {
	return rpcclient.NewRPCError(ctx, rpcclient.RPCCodeInternalError, msgs.MsgRPCClientNoConnection)
}

type wsBusinessNetworkClient struct {
	*businessNetworkClient
	wsRPC rpcclient.WSClient
}

func (wsc *wsBusinessNetworkClient) Close() {
	wsc.wsRPC.Close()
}
