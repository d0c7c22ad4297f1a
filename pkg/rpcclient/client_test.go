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

package rpcclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kaleido-io/flowbridge/pkg/bnapi"
	"github.com/kaleido-io/flowbridge/pkg/flowconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHTTPRPC(t *testing.T, handler func(rpcReq *RPCRequest) (int, interface{})) (Client, func()) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rpcReq RPCRequest
		err := json.NewDecoder(r.Body).Decode(&rpcReq)
		require.NoError(t, err)
		status, res := handler(&rpcReq)
		b, _ := json.Marshal(res)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(b)
	}))
	c, err := NewHTTPClient(context.Background(), &flowconf.HTTPClientConfig{URL: svr.URL})
	require.NoError(t, err)
	return c, svr.Close
}

func TestCallRPCHTTPOK(t *testing.T) {
	rc, done := newTestHTTPRPC(t, func(rpcReq *RPCRequest) (int, interface{}) {
		assert.Equal(t, "reg_lookup", rpcReq.Method)
		assert.Equal(t, `"asset"`, rpcReq.Params[0].String())
		assert.Equal(t, `"org.acme.Vehicle"`, rpcReq.Params[1].String())
		return 200, &RPCResponse{
			JSONRpc: "2.0",
			ID:      rpcReq.ID,
			Result:  bnapi.RawJSON(`{"registryID":"reg-1234","kind":"asset","typeName":"org.acme.Vehicle"}`),
		}
	})
	defer done()

	var handle bnapi.RegistryHandle
	rpcErr := rc.CallRPC(context.Background(), &handle, "reg_lookup", "asset", "org.acme.Vehicle")
	assert.Nil(t, rpcErr)
	assert.Equal(t, "reg-1234", handle.RegistryID)
	assert.Equal(t, "org.acme.Vehicle", handle.TypeName)
}

func TestCallRPCHTTPErrorResponse(t *testing.T) {
	rc, done := newTestHTTPRPC(t, func(rpcReq *RPCRequest) (int, interface{}) {
		return 200, &RPCResponse{
			JSONRpc: "2.0",
			ID:      rpcReq.ID,
			Error: &RPCError{
				Code:    bnapi.RPCCodeNotFound,
				Message: "resource not found",
			},
		}
	})
	defer done()

	rpcErr := rc.CallRPC(context.Background(), nil, "reg_get", "reg-1234", "V-001")
	require.NotNil(t, rpcErr)
	assert.Equal(t, bnapi.RPCCodeNotFound, rpcErr.RPCError().Code)
	assert.Regexp(t, "resource not found", rpcErr)
}

func TestCallRPCHTTPStatusErrorNoMessage(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
		_, _ = w.Write([]byte(`bang`))
	}))
	defer svr.Close()

	rc, err := NewHTTPClient(context.Background(), &flowconf.HTTPClientConfig{URL: svr.URL})
	require.NoError(t, err)

	rpcErr := rc.CallRPC(context.Background(), nil, "reg_list")
	require.NotNil(t, rpcErr)
	assert.Regexp(t, "FB000607", rpcErr)
}

func TestCallRPCHTTPBadParam(t *testing.T) {
	rc, done := newTestHTTPRPC(t, func(rpcReq *RPCRequest) (int, interface{}) {
		return 200, &RPCResponse{}
	})
	defer done()

	rpcErr := rc.CallRPC(context.Background(), nil, "reg_add", map[bool]bool{false: true})
	require.NotNil(t, rpcErr)
	assert.Regexp(t, "FB000603", rpcErr)
	assert.Equal(t, int64(RPCCodeInvalidRequest), rpcErr.RPCError().Code)
}

func TestCallRPCHTTPBadResult(t *testing.T) {
	rc, done := newTestHTTPRPC(t, func(rpcReq *RPCRequest) (int, interface{}) {
		return 200, &RPCResponse{
			JSONRpc: "2.0",
			ID:      rpcReq.ID,
			Result:  bnapi.RawJSON(`false`),
		}
	})
	defer done()

	var verResult string
	rpcErr := rc.CallRPC(context.Background(), &verResult, "bnet_nodeVersion")
	require.NotNil(t, rpcErr)
	assert.Regexp(t, "FB000602", rpcErr)
	assert.Equal(t, int64(RPCCodeParseError), rpcErr.RPCError().Code)
}

func TestCallRPCHTTPTransportFail(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := svr.URL
	svr.Close()

	rc, err := NewHTTPClient(context.Background(), &flowconf.HTTPClientConfig{URL: url})
	require.NoError(t, err)

	rpcErr := rc.CallRPC(context.Background(), nil, "bnet_connect")
	require.NotNil(t, rpcErr)
	assert.Regexp(t, "FB000607", rpcErr)
}

func TestSyncRequestRestoresProxiedID(t *testing.T) {
	rc, done := newTestHTTPRPC(t, func(rpcReq *RPCRequest) (int, interface{}) {
		// The backend request ID allocated by the client replaces the front-end ID on the wire
		assert.Equal(t, `"000000001"`, rpcReq.ID.String())
		return 200, &RPCResponse{JSONRpc: "2.0", ID: rpcReq.ID, Result: bnapi.RawJSON(`true`)}
	})
	defer done()

	res, err := rc.(*rpcClient).SyncRequest(context.Background(), &RPCRequest{
		JSONRpc: "2.0",
		ID:      bnapi.RawJSON(`"fe-12345"`),
		Method:  "tx_submit",
	})
	require.NoError(t, err)
	assert.Equal(t, `"fe-12345"`, res.ID.String())
}

func TestRPCErrorResponses(t *testing.T) {
	res := NewRPCErrorResponse(fmt.Errorf("pop"), bnapi.RawJSON(`"1"`), RPCCodeInternalError)
	assert.Equal(t, `"1"`, res.ID.String())
	assert.Equal(t, "pop", res.Message())
	assert.Equal(t, int64(RPCCodeInternalError), res.Error.RPCError().Code)

	res = NewRPCErrorResponse(fmt.Errorf("pop"), nil, RPCCodeInternalError)
	assert.True(t, res.ID.IsNil())

	assert.Equal(t, "", (&RPCResponse{}).Message())
}
