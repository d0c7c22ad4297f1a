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
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/kaleido-io/flowbridge/internal/msgs"
	"github.com/kaleido-io/flowbridge/pkg/bnapi"
	"github.com/kaleido-io/flowbridge/pkg/flowconf"
	"github.com/kaleido-io/flowbridge/pkg/log"
	"github.com/kaleido-io/flowbridge/pkg/wsclient"
)

type Subscription interface {
	LocalID() uuid.UUID // does not change through reconnects
	Notifications() chan RPCSubscriptionNotification
	Unsubscribe(ctx context.Context) ErrorRPC
}

type RPCSubscriptionNotification interface {
	GetResult() bnapi.RawJSON
	GetCurrentSubID() string
	Ack(ctx context.Context) error
	Nack(ctx context.Context) error
}

// NewWSClient validates the configuration up front, returning a JSON/RPC client
// that will connect over websockets when Connect is called
func NewWSClient(ctx context.Context, conf *flowconf.WSClientConfig) (WSClient, error) {
	if _, _, err := wsclient.ValidateConfig(ctx, conf); err != nil {
		return nil, err
	}
	return WrapWSConfig(conf), nil
}

// WrapWSConfig defers validation of the config to Connect
func WrapWSConfig(conf *flowconf.WSClientConfig) WSClient {
	return &wsRPCClient{
		wsConf:             *conf,
		calls:              make(map[string]chan *RPCResponse),
		configuredSubs:     make(map[uuid.UUID]*sub),
		pendingSubsByReqID: make(map[string]*sub),
		activeSubsBySubID:  make(map[string]*sub),
	}
}

type wsRPCClient struct {
	mux                sync.Mutex
	wsConf             flowconf.WSClientConfig
	client             wsclient.WSClient
	connected          chan struct{}
	requestCounter     int64
	calls              map[string]chan *RPCResponse
	configuredSubs     map[uuid.UUID]*sub
	pendingSubsByReqID map[string]*sub
	activeSubsBySubID  map[string]*sub
}

// sub is created when a subscription is configured, and survives reconnects to the
// server. Each time the connection is re-established the subscribe request is replayed,
// and the server-assigned subscription ID in currentSubID moves on.
type sub struct {
	rc             *wsRPCClient
	ctx            context.Context
	cancelCtx      context.CancelFunc
	localID        uuid.UUID
	conf           SubscriptionConfig
	params         []interface{}
	pendingReqID   string
	currentSubID   string
	newSubResponse chan ErrorRPC
	notifications  chan RPCSubscriptionNotification
}

type subNotification struct {
	sub    *sub
	result bnapi.RawJSON
}

type subscriptionParams struct {
	Subscription bnapi.RawJSON `json:"subscription"`
	Result       bnapi.RawJSON `json:"result"`
}

func (rc *wsRPCClient) Connect(ctx context.Context) error {
	client, err := wsclient.New(ctx, &rc.wsConf, nil, rc.handleReconnect)
	if err != nil {
		return err
	}
	connected := make(chan struct{})
	rc.mux.Lock()
	rc.client = client
	rc.connected = connected
	rc.mux.Unlock()

	if err := client.Connect(); err != nil {
		return err
	}
	go rc.receiveLoop(ctx)
	return rc.waitConnected(ctx, connected)
}

func (rc *wsRPCClient) waitConnected(ctx context.Context, connected chan struct{}) error {
	select {
	case <-connected:
		return nil
	case <-ctx.Done():
		return i18n.NewError(ctx, msgs.MsgContextCanceled)
	}
}

func (rc *wsRPCClient) Close() {
	rc.mux.Lock()
	wsc := rc.client
	rc.mux.Unlock()
	if wsc != nil {
		wsc.Close()
	}
}

func (rc *wsRPCClient) allocateRequestID(req *RPCRequest) string {
	reqID := fmt.Sprintf(`%.9d`, atomic.AddInt64(&rc.requestCounter, 1))
	req.ID = bnapi.RawJSON(`"` + reqID + `"`)
	return reqID
}

func (rc *wsRPCClient) CallRPC(ctx context.Context, result interface{}, method string, params ...interface{}) ErrorRPC {
	rpcReq, rpcErr := buildRequest(ctx, method, params)
	if rpcErr != nil {
		return rpcErr
	}
	reqID, resChannel := rc.addInflightRequest(rpcReq)
	rpcStartTime := time.Now()

	jsonInput, _ := json.Marshal(rpcReq)
	log.L(ctx).Debugf("RPC[%s] --> %s", reqID, rpcReq.Method)
	log.L(ctx).Tracef("RPC[%s] INPUT: %s", reqID, jsonInput)
	if err := rc.client.Send(ctx, jsonInput); err != nil {
		rc.removeInflightRequest(reqID)
		return NewRPCError(ctx, RPCCodeInternalError, msgs.MsgRPCClientRequestFailed, err)
	}
	return rc.waitResponse(ctx, result, reqID, rpcReq, rpcStartTime, resChannel)
}

func (rc *wsRPCClient) waitResponse(ctx context.Context, result interface{}, reqID string, rpcReq *RPCRequest, rpcStartTime time.Time, resChannel chan *RPCResponse) ErrorRPC {
	select {
	case rpcRes := <-resChannel:
		if rpcRes.Error != nil && rpcRes.Error.Code != 0 {
			log.L(ctx).Errorf("RPC[%s] <-- ERROR: %s", reqID, rpcRes.Error.Message)
			return rpcRes.Error
		}
		log.L(ctx).Infof("RPC[%s] <-- %s OK (%.2fms)", reqID, rpcReq.Method, float64(time.Since(rpcStartTime))/float64(time.Millisecond))
		if result != nil {
			if err := json.Unmarshal(rpcRes.Result.Bytes(), result); err != nil {
				err = i18n.NewError(ctx, msgs.MsgRPCClientResultParseFailed, result, err)
				return WrapRPCError(RPCCodeParseError, err)
			}
		}
		return nil
	case <-ctx.Done():
		rc.removeInflightRequest(reqID)
		return NewRPCError(ctx, RPCCodeInternalError, msgs.MsgContextCanceled)
	}
}

func (rc *wsRPCClient) addInflightRequest(req *RPCRequest) (string, chan *RPCResponse) {
	rc.mux.Lock()
	defer rc.mux.Unlock()
	reqID := rc.allocateRequestID(req)
	resChannel := make(chan *RPCResponse, 1)
	rc.calls[reqID] = resChannel
	return reqID, resChannel
}

func (rc *wsRPCClient) removeInflightRequest(reqID string) {
	rc.mux.Lock()
	defer rc.mux.Unlock()
	delete(rc.calls, reqID)
}

// deliverCallResponse never blocks - the inflight channels have a buffer of one response,
// and anything delivered after the first response wins is dropped
func (rc *wsRPCClient) deliverCallResponse(resChannel chan *RPCResponse, rpcRes *RPCResponse) {
	select {
	case resChannel <- rpcRes:
	default:
	}
}

func (rc *wsRPCClient) Subscribe(ctx context.Context, conf SubscriptionConfig, params ...interface{}) (Subscription, ErrorRPC) {
	s, errChannel := rc.addConfiguredSub(ctx, conf, params)

	if err := rc.sendSubscribe(ctx, rc.client, s); err != nil {
		rc.removeSubscription(s)
		if rpcErr, ok := err.(ErrorRPC); ok {
			return nil, rpcErr
		}
		return nil, NewRPCError(ctx, RPCCodeInternalError, msgs.MsgRPCClientRequestFailed, err)
	}

	select {
	case rpcErr := <-errChannel:
		if rpcErr != nil {
			rc.removeSubscription(s)
			return nil, rpcErr
		}
	case <-ctx.Done():
		rc.removeSubscription(s)
		return nil, NewRPCError(ctx, RPCCodeInternalError, msgs.MsgContextCanceled)
	}
	return s, nil
}

func (rc *wsRPCClient) addConfiguredSub(ctx context.Context, conf SubscriptionConfig, params []interface{}) (*sub, chan ErrorRPC) {
	rc.mux.Lock()
	defer rc.mux.Unlock()
	s := &sub{
		rc:             rc,
		conf:           conf,
		localID:        uuid.New(),
		params:         params,
		newSubResponse: make(chan ErrorRPC, 1),
		notifications:  make(chan RPCSubscriptionNotification),
	}
	s.ctx, s.cancelCtx = context.WithCancel(ctx)
	rc.configuredSubs[s.localID] = s
	return s, s.newSubResponse
}

func (rc *wsRPCClient) sendSubscribe(ctx context.Context, w wsclient.WSClient, s *sub) error {
	req, rpcErr := buildRequest(ctx, s.conf.SubscribeMethod, s.params)
	if rpcErr != nil {
		return rpcErr
	}
	reqID := rc.allocateRequestID(req)
	rc.mux.Lock()
	s.pendingReqID = reqID
	rc.pendingSubsByReqID[reqID] = s
	rc.mux.Unlock()
	jsonInput, _ := json.Marshal(req)
	log.L(ctx).Debugf("RPC[%s] --> %s", reqID, req.Method)
	return w.Send(ctx, jsonInput)
}

func (rc *wsRPCClient) removeSubscription(s *sub) {
	rc.mux.Lock()
	defer rc.mux.Unlock()
	delete(rc.configuredSubs, s.localID)
	if s.pendingReqID != "" {
		delete(rc.pendingSubsByReqID, s.pendingReqID)
	}
	if s.currentSubID != "" {
		delete(rc.activeSubsBySubID, s.currentSubID)
	}
	s.cancelCtx()
	if s.notifications != nil {
		close(s.notifications)
	}
}

func (rc *wsRPCClient) Subscriptions() []Subscription {
	rc.mux.Lock()
	defer rc.mux.Unlock()
	subs := make([]Subscription, 0, len(rc.configuredSubs))
	for _, s := range rc.configuredSubs {
		subs = append(subs, s)
	}
	return subs
}

func (rc *wsRPCClient) UnsubscribeAll(ctx context.Context) ErrorRPC {
	for _, s := range rc.Subscriptions() {
		if rpcErr := s.Unsubscribe(ctx); rpcErr != nil {
			return rpcErr
		}
	}
	return nil
}

// handleReconnect runs after each connect/reconnect of the underlying websocket.
// In-flight calls cannot be correlated on the new connection, so they are failed
// back to their callers, and the subscribe requests for all configured
// subscriptions are replayed with new request IDs.
func (rc *wsRPCClient) handleReconnect(ctx context.Context, w wsclient.WSClient) error {
	rc.mux.Lock()
	inflightCalls := rc.calls
	rc.calls = make(map[string]chan *RPCResponse)
	subs := make([]*sub, 0, len(rc.configuredSubs))
	for _, s := range rc.configuredSubs {
		subs = append(subs, s)
	}
	rc.mux.Unlock()

	for reqID, inflight := range inflightCalls {
		rc.deliverCallResponse(inflight, RPCErrorResponse(
			i18n.NewError(ctx, msgs.MsgRPCClientReconnected),
			bnapi.RawJSON(`"`+reqID+`"`),
			RPCCodeInternalError,
		))
	}

	for _, s := range subs {
		if err := rc.sendSubscribe(ctx, w, s); err != nil {
			return err
		}
	}

	rc.mux.Lock()
	connected := rc.connected
	rc.connected = nil
	rc.mux.Unlock()
	if connected != nil {
		close(connected)
	}
	return nil
}

func (rc *wsRPCClient) receiveLoop(ctx context.Context) {
	l := log.L(ctx)
	for {
		message, ok := <-rc.client.Receive()
		if !ok {
			l.Debugf("RPC websocket closed")
			return
		}
		l.Tracef("RPC <-- %s", message)
		var rpcRes *RPCResponse
		if err := json.Unmarshal(message, &rpcRes); err != nil {
			l.Errorf("RPC <-- deserialization error on '%s': %s", message, err)
			continue
		}
		switch {
		case rpcRes.Method != "":
			// Subscription notifications are the only requests that flow from server to client
			rc.handleSubscriptionNotification(ctx, rpcRes)
		default:
			reqID := rpcRes.ID.StringValue()
			rc.mux.Lock()
			pendingSub := rc.pendingSubsByReqID[reqID]
			delete(rc.pendingSubsByReqID, reqID)
			inflightCall, isCall := rc.calls[reqID]
			delete(rc.calls, reqID)
			rc.mux.Unlock()
			switch {
			case pendingSub != nil:
				rc.handleSubscriptionConfirm(ctx, pendingSub, rpcRes)
			case isCall:
				rc.deliverCallResponse(inflightCall, rpcRes)
			default:
				l.Errorf("RPC <-- ERROR: Unable to process received message: %s", message)
			}
		}
	}
}

func (rc *wsRPCClient) handleSubscriptionNotification(ctx context.Context, rpcRes *RPCResponse) {
	var subParams subscriptionParams
	if rpcRes.Params != nil {
		_ = json.Unmarshal(rpcRes.Params.Bytes(), &subParams)
	}
	subID := subParams.Subscription.StringValue()
	rc.mux.Lock()
	s := rc.activeSubsBySubID[subID]
	rc.mux.Unlock()
	if s == nil {
		log.L(ctx).Warnf("Received subscription event for untracked subscription '%s'", subID)
		return
	}
	select {
	case s.notifications <- &subNotification{sub: s, result: subParams.Result}:
	case <-s.ctx.Done():
		log.L(ctx).Warnf("Notification dropped for closing subscription %s", s.localID)
	}
}

func (rc *wsRPCClient) handleSubscriptionConfirm(ctx context.Context, s *sub, rpcRes *RPCResponse) {
	if rpcRes.Error != nil && rpcRes.Error.Code != 0 {
		log.L(ctx).Errorf("RPC[%s] <-- subscribe failed: %s", s.pendingReqID, rpcRes.Error.Message)
		rc.deliverSubResponse(s, rpcRes.Error)
		return
	}
	subID := rpcRes.Result.StringValue()
	if subID == "" {
		rc.deliverSubResponse(s, NewRPCError(ctx, RPCCodeInternalError, msgs.MsgRPCClientInvalidSubID))
		return
	}
	rc.mux.Lock()
	s.pendingReqID = ""
	s.currentSubID = subID
	rc.activeSubsBySubID[subID] = s
	rc.mux.Unlock()
	log.L(ctx).Infof("Subscription %s confirmed by server as '%s'", s.localID, subID)
	rc.deliverSubResponse(s, nil)
}

// deliverSubResponse is non-blocking, as confirmations replayed on reconnect have
// no Subscribe caller waiting for them
func (rc *wsRPCClient) deliverSubResponse(s *sub, rpcErr ErrorRPC) {
	select {
	case s.newSubResponse <- rpcErr:
	default:
	}
}

func (s *sub) LocalID() uuid.UUID {
	return s.localID
}

func (s *sub) Notifications() chan RPCSubscriptionNotification {
	return s.notifications
}

func (s *sub) Unsubscribe(ctx context.Context) ErrorRPC {
	var unsubscribed bool
	rpcErr := s.rc.CallRPC(ctx, &unsubscribed, s.conf.UnsubscribeMethod, s.currentSubID)
	// Whatever the result, the subscription is removed and its notification channel closed
	s.rc.removeSubscription(s)
	if rpcErr != nil {
		return rpcErr
	}
	if !unsubscribed {
		return NewRPCError(ctx, RPCCodeInternalError, msgs.MsgRPCClientUnsubscribeFailed, s.currentSubID)
	}
	log.L(ctx).Infof("Unsubscribed %s (subID=%s)", s.localID, s.currentSubID)
	return nil
}

func (s *sub) sendAckNack(ctx context.Context, method string) error {
	req, rpcErr := buildRequest(ctx, method, []interface{}{s.currentSubID})
	if rpcErr != nil {
		return rpcErr
	}
	reqID := s.rc.allocateRequestID(req)
	jsonInput, _ := json.Marshal(req)
	log.L(ctx).Debugf("RPC[%s] --> %s", reqID, method)
	return s.rc.client.Send(ctx, jsonInput)
}

func (n *subNotification) GetResult() bnapi.RawJSON {
	return n.result
}

func (n *subNotification) GetCurrentSubID() string {
	return n.sub.currentSubID
}

// Ack confirms delivery of the notification back to the server, so the event stream
// can move past it. No response is awaited.
func (n *subNotification) Ack(ctx context.Context) error {
	return n.sub.sendAckNack(ctx, n.sub.conf.AckMethod)
}

// Nack rejects the notification, requesting redelivery
func (n *subNotification) Nack(ctx context.Context) error {
	return n.sub.sendAckNack(ctx, n.sub.conf.NackMethod)
}
