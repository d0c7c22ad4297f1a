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

// Package adapters serves the flow-facing API. Each configured flow gets a
// FlowAdapter bound to its connection's session and dispatcher, addressed
// as /flows/{flow}/... on the shared API router.
package adapters

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/kaleido-io/flowbridge/internal/dispatch"
	"github.com/kaleido-io/flowbridge/internal/inflight"
	"github.com/kaleido-io/flowbridge/internal/metrics"
	"github.com/kaleido-io/flowbridge/internal/msgs"
	"github.com/kaleido-io/flowbridge/internal/payload"
	"github.com/kaleido-io/flowbridge/internal/router"
	"github.com/kaleido-io/flowbridge/internal/session"
	"github.com/kaleido-io/flowbridge/pkg/bnapi"
	"github.com/kaleido-io/flowbridge/pkg/bnclient"
	"github.com/kaleido-io/flowbridge/pkg/confutil"
	"github.com/kaleido-io/flowbridge/pkg/flowconf"
	"github.com/kaleido-io/flowbridge/pkg/log"
)

// DefaultListLimit bounds a listing when the caller does not supply one.
const DefaultListLimit = 100

// Status indicator colors, matching what flow host UIs render as the dot
// next to a node.
const (
	FillGreen  = "green"
	FillYellow = "yellow"
	FillRed    = "red"
	FillGrey   = "grey"
)

// ErrorResponse is the structured body every failed adapter call returns.
type ErrorResponse struct {
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

// AdapterSet routes flow-scoped requests to the adapter for the named flow.
type AdapterSet struct {
	adapters map[string]*FlowAdapter
}

func NewAdapterSet() *AdapterSet {
	return &AdapterSet{adapters: make(map[string]*FlowAdapter)}
}

func (as *AdapterSet) Add(fa *FlowAdapter) {
	as.adapters[fa.conf.Name] = fa
}

func (as *AdapterSet) Get(flowName string) *FlowAdapter {
	return as.adapters[flowName]
}

func (as *AdapterSet) InstallRoutes(r router.Router) {
	r.HandleFunc("/flows/{flow}/operate", as.handler((*FlowAdapter).handleOperate))
	r.HandleFunc("/flows/{flow}/resolve", as.handler((*FlowAdapter).handleResolve))
	r.HandleFunc("/flows/{flow}/list", as.handler((*FlowAdapter).handleList))
	r.HandleFunc("/flows/{flow}/status", as.handler((*FlowAdapter).handleStatus))
	r.HandleFunc("/flows/{flow}/events", as.handler((*FlowAdapter).handleEvents))
}

func (as *AdapterSet) Close() {
	for _, fa := range as.adapters {
		fa.Close()
	}
}

func (as *AdapterSet) handler(h func(*FlowAdapter, http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		flowName := mux.Vars(req)["flow"]
		fa := as.adapters[flowName]
		if fa == nil {
			writeError(req.Context(), w, i18n.NewError(req.Context(), msgs.MsgAdapterUnknownFlow, flowName))
			return
		}
		h(fa, w, req)
	}
}

// FlowAdapter is the serving half of one configured flow. Operations go
// through the connection's dispatcher, and every outcome updates the status
// indicator the flow host displays for this flow.
type FlowAdapter struct {
	bgCtx       context.Context
	conf        *flowconf.FlowAdapterConfig
	sessions    *session.Manager
	dispatcher  *dispatch.Dispatcher
	client      bnclient.BusinessNetworkClient
	metrics     metrics.FlowMetrics
	wsUpgrader  *websocket.Upgrader
	sendTimeout time.Duration

	indicatorLock sync.Mutex
	fill          string
	text          string
	at            *bnapi.Timestamp

	eventLock sync.Mutex
	sequence  uint64
	pending   []*bnapi.NetworkEvent
	acks      *inflight.InflightManager[string, bool]
}

func NewFlowAdapter(bgCtx context.Context, conf *flowconf.FlowAdapterConfig, wsConf *flowconf.APIServerConfigWS, sessions *session.Manager, dispatcher *dispatch.Dispatcher, client bnclient.BusinessNetworkClient, m metrics.FlowMetrics) *FlowAdapter {
	return &FlowAdapter{
		bgCtx:      log.WithLogField(bgCtx, "flow", conf.Name),
		conf:       conf,
		sessions:   sessions,
		dispatcher: dispatcher,
		client:     client,
		metrics:    m,
		wsUpgrader: &websocket.Upgrader{
			ReadBufferSize:  int(confutil.ByteSize(wsConf.ReadBufferSize, 0, *flowconf.APIServerWSDefaults.ReadBufferSize)),
			WriteBufferSize: int(confutil.ByteSize(wsConf.WriteBufferSize, 0, *flowconf.APIServerWSDefaults.WriteBufferSize)),
		},
		sendTimeout: confutil.DurationMin(wsConf.SendTimeout, 0, *flowconf.APIServerWSDefaults.SendTimeout),
		acks:        inflight.NewInflightManager[string, bool](func(s string) (string, error) { return s, nil }),
	}
}

func (fa *FlowAdapter) Name() string {
	return fa.conf.Name
}

func (fa *FlowAdapter) Close() {
	fa.acks.Close()
}

func (fa *FlowAdapter) handleOperate(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	startTime := time.Now()
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	data, err := io.ReadAll(req.Body)
	if err != nil {
		fa.operationFailed(ctx, w, "operate", startTime, i18n.NewError(ctx, msgs.MsgAdapterBodyReadFailed, err))
		return
	}

	operation := req.URL.Query().Get("mode")
	var result *bnapi.OperationResult
	switch operation {
	case "", dispatch.OperationCreate:
		operation = dispatch.OperationCreate
		result, err = fa.dispatcher.Create(ctx, data)
	case dispatch.OperationUpdate:
		result, err = fa.dispatcher.Update(ctx, data)
	default:
		fa.operationFailed(ctx, w, "operate", startTime, i18n.NewError(ctx, msgs.MsgAdapterInvalidMode, operation))
		return
	}
	if err != nil {
		fa.operationFailed(ctx, w, operation, startTime, err)
		return
	}
	fa.operationSucceeded(operation)
	writeJSON(ctx, w, http.StatusOK, result)
}

func (fa *FlowAdapter) handleResolve(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	startTime := time.Now()
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	data, err := io.ReadAll(req.Body)
	if err != nil {
		fa.operationFailed(ctx, w, dispatch.OperationRetrieve, startTime, i18n.NewError(ctx, msgs.MsgAdapterBodyReadFailed, err))
		return
	}
	retrieve, err := payload.ParseRetrieve(ctx, data)
	if err != nil {
		fa.operationFailed(ctx, w, dispatch.OperationRetrieve, startTime, err)
		return
	}
	resource, err := fa.dispatcher.Retrieve(ctx, retrieve.ModelName, retrieve.ID)
	if err != nil {
		fa.operationFailed(ctx, w, dispatch.OperationRetrieve, startTime, err)
		return
	}
	fa.operationSucceeded(dispatch.OperationRetrieve)
	writeJSON(ctx, w, http.StatusOK, resource)
}

func (fa *FlowAdapter) handleList(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	startTime := time.Now()
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	data, err := io.ReadAll(req.Body)
	if err != nil {
		fa.operationFailed(ctx, w, dispatch.OperationList, startTime, i18n.NewError(ctx, msgs.MsgAdapterBodyReadFailed, err))
		return
	}
	list, err := payload.ParseList(ctx, data)
	if err != nil {
		fa.operationFailed(ctx, w, dispatch.OperationList, startTime, err)
		return
	}
	limit := list.Limit
	if limit == 0 {
		limit = DefaultListLimit
	}
	resources, err := fa.dispatcher.List(ctx, list.ModelName, limit)
	if err != nil {
		fa.operationFailed(ctx, w, dispatch.OperationList, startTime, err)
		return
	}
	fa.operationSucceeded(dispatch.OperationList)
	writeJSON(ctx, w, http.StatusOK, resources)
}

func (fa *FlowAdapter) handleStatus(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	if req.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	status := &bnapi.FlowStatus{
		Name:        fa.conf.Name,
		Description: fa.conf.Description,
	}
	fa.sessions.Status(status)
	fa.fillIndicator(status)
	writeJSON(ctx, w, http.StatusOK, status)
}

func (fa *FlowAdapter) operationSucceeded(operation string) {
	fa.metrics.IncOperation(fa.conf.Name, operation, metrics.OutcomeSuccess)
	fa.setIndicator(FillGreen, "connected")
}

func (fa *FlowAdapter) operationFailed(ctx context.Context, w http.ResponseWriter, operation string, startTime time.Time, err error) {
	if ctx.Err() == context.DeadlineExceeded {
		err = i18n.WrapError(ctx, err, msgs.MsgHTTPRequestTimeout, time.Since(startTime).Round(time.Millisecond))
	}
	fa.metrics.IncOperation(fa.conf.Name, operation, metrics.OutcomeFailure)
	fa.setIndicator(FillRed, indicatorText(err))
	log.L(ctx).Errorf("%s failed on flow '%s': %s", operation, fa.conf.Name, err)
	writeError(ctx, w, err)
}

// indicatorText is the short label shown against a red status dot, the
// message code when we have one.
func indicatorText(err error) string {
	if ffErr, isFFE := err.(i18n.FFError); isFFE {
		return string(ffErr.MessageKey())
	}
	return "error"
}

func (fa *FlowAdapter) setIndicator(fill, text string) {
	now := bnapi.TimestampNow()
	fa.indicatorLock.Lock()
	defer fa.indicatorLock.Unlock()
	fa.fill = fill
	fa.text = text
	fa.at = &now
}

// fillIndicator reports the last recorded indicator change, or derives one
// from the session state when nothing has happened on this flow yet.
func (fa *FlowAdapter) fillIndicator(status *bnapi.FlowStatus) {
	fa.indicatorLock.Lock()
	defer fa.indicatorLock.Unlock()
	if fa.at == nil {
		switch bnapi.SessionState(status.State) {
		case bnapi.SessionStateConnected:
			status.Fill, status.Text = FillGreen, "connected"
		case bnapi.SessionStateConnecting:
			status.Fill, status.Text = FillYellow, "connecting"
		default:
			status.Fill, status.Text = FillGrey, "disconnected"
		}
		return
	}
	status.Fill = fa.fill
	status.Text = fa.text
	status.At = fa.at
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.L(ctx).Errorf("Failed to write response: %s", err)
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	resp := &ErrorResponse{Error: err.Error()}
	if ffErr, isFFE := err.(i18n.FFError); isFFE {
		status = ffErr.HTTPStatus()
		resp.Code = string(ffErr.MessageKey())
	}
	writeJSON(ctx, w, status, resp)
}
