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

package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/kaleido-io/flowbridge/internal/dispatch"
	"github.com/kaleido-io/flowbridge/internal/metrics"
	"github.com/kaleido-io/flowbridge/internal/router"
	"github.com/kaleido-io/flowbridge/internal/session"
	"github.com/kaleido-io/flowbridge/pkg/bnapi"
	"github.com/kaleido-io/flowbridge/pkg/bnclient"
	"github.com/kaleido-io/flowbridge/pkg/confutil"
	"github.com/kaleido-io/flowbridge/pkg/flowconf"
	"github.com/kaleido-io/flowbridge/pkg/rpcclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNetwork() *bnapi.NetworkDefinition {
	return &bnapi.NetworkDefinition{
		Name:    "acme-network",
		Version: "1.0.0",
		Declarations: []*bnapi.Declaration{
			{Name: "org.acme.Member", Kind: bnapi.DeclarationKindParticipant.Enum(), IdentifiedBy: "email"},
			{Name: "org.acme.Vehicle", Kind: bnapi.DeclarationKindAsset.Enum(), IdentifiedBy: "vin"},
			{Name: "org.acme.Trade", Kind: bnapi.DeclarationKindTransaction.Enum()},
			{Name: "org.acme.TradeDone", Kind: bnapi.DeclarationKindEvent.Enum()},
		},
	}
}

// testClient stubs the business network client behind the adapters. The
// handlers run on server goroutines, so the call counters are atomics.
type testClient struct {
	bnclient.BusinessNetworkClient
	t         *testing.T
	sessionID uuid.UUID

	connect         func(ctx context.Context, request *bnapi.ConnectRequest) (*bnapi.ConnectResult, error)
	lookup          func(ctx context.Context, sessionID uuid.UUID, kind bnapi.DeclarationKind, typeName string) (*bnapi.RegistryHandle, error)
	add             func(ctx context.Context, sessionID uuid.UUID, registryID string, resource bnapi.RawJSON) (bool, error)
	update          func(ctx context.Context, sessionID uuid.UUID, registryID string, resource bnapi.RawJSON) (bool, error)
	get             func(ctx context.Context, sessionID uuid.UUID, registryID string, resourceID string) (bnapi.RawJSON, error)
	list            func(ctx context.Context, sessionID uuid.UUID, registryID string, limit int) ([]bnapi.RawJSON, error)
	submit          func(ctx context.Context, sessionID uuid.UUID, transaction bnapi.RawJSON) (*bnapi.SubmitResult, error)
	subscribeEvents func(ctx context.Context, sessionID uuid.UUID) (rpcclient.Subscription, error)

	connects   int32
	adds       int32
	updates    int32
	gets       int32
	lists      int32
	submits    int32
	subscribes int32
}

func (tc *testClient) BNet() bnclient.BNet         { return &testBNet{tc: tc} }
func (tc *testClient) Registry() bnclient.Registry { return &testRegistry{tc: tc} }
func (tc *testClient) TX() bnclient.TX             { return &testTX{tc: tc} }

type testBNet struct {
	bnclient.BNet
	tc *testClient
}

func (tb *testBNet) Connect(ctx context.Context, request *bnapi.ConnectRequest) (*bnapi.ConnectResult, error) {
	atomic.AddInt32(&tb.tc.connects, 1)
	return tb.tc.connect(ctx, request)
}

func (tb *testBNet) SubscribeEvents(ctx context.Context, sessionID uuid.UUID) (rpcclient.Subscription, error) {
	atomic.AddInt32(&tb.tc.subscribes, 1)
	assert.Equal(tb.tc.t, tb.tc.sessionID, sessionID)
	return tb.tc.subscribeEvents(ctx, sessionID)
}

type testRegistry struct {
	bnclient.Registry
	tc *testClient
}

func (tr *testRegistry) Lookup(ctx context.Context, sessionID uuid.UUID, kind bnapi.DeclarationKind, typeName string) (*bnapi.RegistryHandle, error) {
	return tr.tc.lookup(ctx, sessionID, kind, typeName)
}

func (tr *testRegistry) Add(ctx context.Context, sessionID uuid.UUID, registryID string, resource bnapi.RawJSON) (bool, error) {
	atomic.AddInt32(&tr.tc.adds, 1)
	return tr.tc.add(ctx, sessionID, registryID, resource)
}

func (tr *testRegistry) Update(ctx context.Context, sessionID uuid.UUID, registryID string, resource bnapi.RawJSON) (bool, error) {
	atomic.AddInt32(&tr.tc.updates, 1)
	return tr.tc.update(ctx, sessionID, registryID, resource)
}

func (tr *testRegistry) Get(ctx context.Context, sessionID uuid.UUID, registryID string, resourceID string) (bnapi.RawJSON, error) {
	atomic.AddInt32(&tr.tc.gets, 1)
	return tr.tc.get(ctx, sessionID, registryID, resourceID)
}

func (tr *testRegistry) List(ctx context.Context, sessionID uuid.UUID, registryID string, limit int) ([]bnapi.RawJSON, error) {
	atomic.AddInt32(&tr.tc.lists, 1)
	return tr.tc.list(ctx, sessionID, registryID, limit)
}

type testTX struct {
	bnclient.TX
	tc *testClient
}

func (tt *testTX) Submit(ctx context.Context, sessionID uuid.UUID, transaction bnapi.RawJSON) (*bnapi.SubmitResult, error) {
	atomic.AddInt32(&tt.tc.submits, 1)
	return tt.tc.submit(ctx, sessionID, transaction)
}

func newTestClient(t *testing.T) *testClient {
	tc := &testClient{t: t, sessionID: uuid.New()}
	tc.connect = func(ctx context.Context, request *bnapi.ConnectRequest) (*bnapi.ConnectResult, error) {
		return &bnapi.ConnectResult{SessionID: tc.sessionID, Network: testNetwork()}, nil
	}
	tc.lookup = func(ctx context.Context, sessionID uuid.UUID, kind bnapi.DeclarationKind, typeName string) (*bnapi.RegistryHandle, error) {
		return &bnapi.RegistryHandle{RegistryID: "reg-" + typeName, Kind: kind.Enum(), TypeName: typeName}, nil
	}
	tc.add = func(ctx context.Context, sessionID uuid.UUID, registryID string, resource bnapi.RawJSON) (bool, error) {
		return true, nil
	}
	tc.update = func(ctx context.Context, sessionID uuid.UUID, registryID string, resource bnapi.RawJSON) (bool, error) {
		return true, nil
	}
	tc.get = func(ctx context.Context, sessionID uuid.UUID, registryID string, resourceID string) (bnapi.RawJSON, error) {
		return nil, &rpcclient.RPCError{Code: bnapi.RPCCodeNotFound, Message: "not found"}
	}
	tc.list = func(ctx context.Context, sessionID uuid.UUID, registryID string, limit int) ([]bnapi.RawJSON, error) {
		return []bnapi.RawJSON{}, nil
	}
	tc.submit = func(ctx context.Context, sessionID uuid.UUID, transaction bnapi.RawJSON) (*bnapi.SubmitResult, error) {
		return &bnapi.SubmitResult{TransactionID: uuid.New()}, nil
	}
	tc.subscribeEvents = func(ctx context.Context, sessionID uuid.UUID) (rpcclient.Subscription, error) {
		return newTestSubscription(), nil
	}
	return tc
}

func newTestAdapters(t *testing.T, mods ...func(conf *flowconf.FlowAdapterConfig)) (string, *testClient, *FlowAdapter, func()) {
	ctx := context.Background()
	tc := newTestClient(t)

	conf := &flowconf.FlowAdapterConfig{
		Name:        "flow1",
		Description: "test flow",
		Connection:  "conn1",
		Events:      flowconf.EventStreamConfig{Enabled: true},
	}
	for _, mod := range mods {
		mod(conf)
	}
	connConf := &flowconf.ConnectionConfig{
		ConnectionProfile:         "hlfv1",
		BusinessNetworkIdentifier: "acme-network",
		ParticipantID:             "admin",
		ParticipantPassword:       "adminpw",
	}
	sessions := session.NewManager(ctx, "conn1", connConf, tc)
	dispatcher := dispatch.NewDispatcher(sessions, tc, connConf)
	m := metrics.InitMetrics(ctx, prometheus.NewRegistry())
	fa := NewFlowAdapter(ctx, conf, &flowconf.APIServerConfigWS{}, sessions, dispatcher, tc, m)

	as := NewAdapterSet()
	as.Add(fa)
	assert.Same(t, fa, as.Get("flow1"))

	r, err := router.NewRouter(ctx, "unittest", &flowconf.HTTPServerConfig{
		Address: confutil.P("127.0.0.1"),
		Port:    confutil.P(0),
	})
	require.NoError(t, err)
	as.InstallRoutes(r)
	require.NoError(t, r.Start())

	return fmt.Sprintf("http://%s", r.Addr()), tc, fa, func() {
		as.Close()
		r.Stop()
	}
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	res, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	return res
}

func decodeError(t *testing.T, res *http.Response) *ErrorResponse {
	var errRes ErrorResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&errRes))
	return &errRes
}

func getStatus(t *testing.T, url string) *bnapi.FlowStatus {
	res, err := http.Get(url + "/flows/flow1/status")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	var status bnapi.FlowStatus
	require.NoError(t, json.NewDecoder(res.Body).Decode(&status))
	return &status
}

func TestOperateCreate(t *testing.T) {
	url, tc, _, done := newTestAdapters(t)
	defer done()
	added := make(chan bnapi.RawJSON, 1)
	tc.add = func(ctx context.Context, sessionID uuid.UUID, registryID string, resource bnapi.RawJSON) (bool, error) {
		assert.Equal(t, "reg-org.acme.Member", registryID)
		added <- resource
		return true, nil
	}

	res := postJSON(t, url+"/flows/flow1/operate", `{"email":"a@b.com","$class":"org.acme.Member","balance":1234}`)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	var result bnapi.OperationResult
	require.NoError(t, json.NewDecoder(res.Body).Decode(&result))
	assert.Equal(t, dispatch.OperationCreate, result.Operation)
	assert.Equal(t, "org.acme.Member", result.Class)
	assert.Equal(t, "a@b.com", result.ResourceID)

	// The resource reached the registry in canonical form
	assert.Equal(t, `{"$class":"org.acme.Member","balance":1234,"email":"a@b.com"}`, (<-added).String())
}

func TestOperateUpdateMode(t *testing.T) {
	url, tc, _, done := newTestAdapters(t)
	defer done()

	res := postJSON(t, url+"/flows/flow1/operate?mode=update", `{"$class":"org.acme.Vehicle","vin":"VIN-1","owner":"a@b.com"}`)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	var result bnapi.OperationResult
	require.NoError(t, json.NewDecoder(res.Body).Decode(&result))
	assert.Equal(t, dispatch.OperationUpdate, result.Operation)
	assert.Equal(t, "VIN-1", result.ResourceID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&tc.updates))
	assert.Equal(t, int32(0), atomic.LoadInt32(&tc.adds))
}

func TestOperateInvalidMode(t *testing.T) {
	url, tc, _, done := newTestAdapters(t)
	defer done()

	res := postJSON(t, url+"/flows/flow1/operate?mode=delete", `{"$class":"org.acme.Vehicle","vin":"VIN-1"}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	errRes := decodeError(t, res)
	assert.Equal(t, "FB000902", errRes.Code)
	assert.Regexp(t, "FB000902.*delete", errRes.Error)
	assert.Equal(t, int32(0), atomic.LoadInt32(&tc.connects))
}

func TestOperateValidationShortCircuits(t *testing.T) {
	url, tc, _, done := newTestAdapters(t)
	defer done()

	res := postJSON(t, url+"/flows/flow1/operate", `{"no":"class"}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	errRes := decodeError(t, res)
	assert.Equal(t, "FB000202", errRes.Code)

	// The malformed payload never cost a connection attempt
	assert.Equal(t, int32(0), atomic.LoadInt32(&tc.connects))

	status := getStatus(t, url)
	assert.Equal(t, FillRed, status.Fill)
	assert.Equal(t, "FB000202", status.Text)
}

func TestOperateDispatchFailure(t *testing.T) {
	url, tc, _, done := newTestAdapters(t)
	defer done()
	tc.add = func(ctx context.Context, sessionID uuid.UUID, registryID string, resource bnapi.RawJSON) (bool, error) {
		return false, fmt.Errorf("pop")
	}

	res := postJSON(t, url+"/flows/flow1/operate", `{"$class":"org.acme.Member","email":"a@b.com"}`)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	errRes := decodeError(t, res)
	assert.Equal(t, "FB000503", errRes.Code)
	assert.Regexp(t, "FB000503.*pop", errRes.Error)

	status := getStatus(t, url)
	assert.Equal(t, FillRed, status.Fill)
	assert.Equal(t, "FB000503", status.Text)
	assert.NotNil(t, status.At)
}

func TestOperateUnknownFlow(t *testing.T) {
	url, _, _, done := newTestAdapters(t)
	defer done()

	res := postJSON(t, url+"/flows/somebodyelse/operate", `{"$class":"org.acme.Member","email":"a@b.com"}`)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	errRes := decodeError(t, res)
	assert.Equal(t, "FB000900", errRes.Code)
	assert.Regexp(t, "FB000900.*somebodyelse", errRes.Error)
}

func TestOperateMethodNotAllowed(t *testing.T) {
	url, _, _, done := newTestAdapters(t)
	defer done()

	res, err := http.Get(url + "/flows/flow1/operate")
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func TestResolveRoundTrip(t *testing.T) {
	url, tc, _, done := newTestAdapters(t)
	defer done()
	tc.get = func(ctx context.Context, sessionID uuid.UUID, registryID string, resourceID string) (bnapi.RawJSON, error) {
		assert.Equal(t, "a@b.com", resourceID)
		// the node hands fields back in its own order
		return bnapi.RawJSON(`{"balance":1234,"email":"a@b.com","$class":"org.acme.Member"}`), nil
	}

	res := postJSON(t, url+"/flows/flow1/resolve", `{"modelName":"org.acme.Member","id":"a@b.com"}`)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	var resource map[string]interface{}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&resource))
	assert.Equal(t, "org.acme.Member", resource["$class"])
	assert.Equal(t, "a@b.com", resource["email"])

	status := getStatus(t, url)
	assert.Equal(t, FillGreen, status.Fill)
	assert.Equal(t, "connected", status.Text)
}

func TestResolveNotFound(t *testing.T) {
	url, _, _, done := newTestAdapters(t)
	defer done()

	res := postJSON(t, url+"/flows/flow1/resolve", `{"modelName":"org.acme.Member","id":"missing@x.com"}`)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	errRes := decodeError(t, res)
	assert.Equal(t, "FB000502", errRes.Code)
	assert.Regexp(t, "FB000502.*org.acme.Member.*missing@x.com", errRes.Error)
}

func TestResolveBadPayload(t *testing.T) {
	url, tc, _, done := newTestAdapters(t)
	defer done()

	res := postJSON(t, url+"/flows/flow1/resolve", `{"modelName":"org.acme.Member"}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "FB000204", decodeError(t, res).Code)
	assert.Equal(t, int32(0), atomic.LoadInt32(&tc.connects))
}

func TestList(t *testing.T) {
	url, tc, _, done := newTestAdapters(t)
	defer done()
	tc.list = func(ctx context.Context, sessionID uuid.UUID, registryID string, limit int) ([]bnapi.RawJSON, error) {
		assert.Equal(t, 2, limit)
		return []bnapi.RawJSON{
			bnapi.RawJSON(`{"vin":"VIN-1","$class":"org.acme.Vehicle","owner":"a@b.com"}`),
			bnapi.RawJSON(`{"vin":"VIN-2","$class":"org.acme.Vehicle","owner":"c@d.com"}`),
		}, nil
	}

	res := postJSON(t, url+"/flows/flow1/list", `{"modelName":"org.acme.Vehicle","limit":2}`)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	var resources []map[string]interface{}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&resources))
	require.Len(t, resources, 2)
	assert.Equal(t, "VIN-1", resources[0]["vin"])
	assert.Equal(t, "VIN-2", resources[1]["vin"])
}

func TestListDefaultLimit(t *testing.T) {
	url, tc, _, done := newTestAdapters(t)
	defer done()
	tc.list = func(ctx context.Context, sessionID uuid.UUID, registryID string, limit int) ([]bnapi.RawJSON, error) {
		assert.Equal(t, DefaultListLimit, limit)
		return []bnapi.RawJSON{}, nil
	}

	res := postJSON(t, url+"/flows/flow1/list", `{"modelName":"org.acme.Vehicle"}`)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	var resources []interface{}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&resources))
	assert.Empty(t, resources)
	assert.Equal(t, int32(1), atomic.LoadInt32(&tc.lists))
}

func TestListBadLimit(t *testing.T) {
	url, _, _, done := newTestAdapters(t)
	defer done()

	res := postJSON(t, url+"/flows/flow1/list", `{"modelName":"org.acme.Vehicle","limit":-1}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "FB000904", decodeError(t, res).Code)
}

func TestStatusLifecycle(t *testing.T) {
	url, _, _, done := newTestAdapters(t)
	defer done()

	// Nothing has happened yet, so the indicator mirrors the session state
	status := getStatus(t, url)
	assert.Equal(t, "flow1", status.Name)
	assert.Equal(t, "test flow", status.Description)
	assert.Equal(t, "conn1", status.Connection)
	assert.Equal(t, bnapi.SessionStateDisconnected.Enum(), status.State)
	assert.Equal(t, FillGrey, status.Fill)
	assert.Equal(t, "disconnected", status.Text)
	assert.Nil(t, status.SessionID)
	assert.Nil(t, status.At)

	res := postJSON(t, url+"/flows/flow1/operate", `{"$class":"org.acme.Member","email":"a@b.com"}`)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	status = getStatus(t, url)
	assert.Equal(t, bnapi.SessionStateConnected.Enum(), status.State)
	assert.Equal(t, "acme-network", status.Network)
	assert.NotNil(t, status.SessionID)
	assert.NotNil(t, status.ConnectedAt)
	assert.Equal(t, FillGreen, status.Fill)
	assert.Equal(t, "connected", status.Text)
	assert.NotNil(t, status.At)
}

func TestStatusMethodNotAllowed(t *testing.T) {
	url, _, _, done := newTestAdapters(t)
	defer done()

	res := postJSON(t, url+"/flows/flow1/status", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}
