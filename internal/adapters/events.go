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
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/kaleido-io/flowbridge/internal/model"
	"github.com/kaleido-io/flowbridge/internal/msgs"
	"github.com/kaleido-io/flowbridge/internal/session"
	"github.com/kaleido-io/flowbridge/pkg/bnapi"
	"github.com/kaleido-io/flowbridge/pkg/log"
)

// eventAck is the message a subscriber sends back for each delivered event.
type eventAck struct {
	EventID string `json:"eventId"`
}

// handleEvents upgrades the request to a WebSocket and streams business
// network events to the flow host. Delivery is at least once: each event
// must be acked before the next is sent, and events delivered on an earlier
// connection that were never acked are redelivered on reconnect.
func (fa *FlowAdapter) handleEvents(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	if !fa.conf.Events.Enabled {
		writeError(ctx, w, i18n.NewError(ctx, msgs.MsgAdapterEventsNotEnabled, fa.conf.Name))
		return
	}
	arts, err := fa.sessions.EnsureConnected(ctx)
	if err != nil {
		fa.setIndicator(FillRed, indicatorText(err))
		log.L(ctx).Errorf("Event stream connect failed: %s", err)
		writeError(ctx, w, err)
		return
	}
	conn, err := fa.wsUpgrader.Upgrade(w, req, nil)
	if err != nil {
		log.L(ctx).Errorf("WebSocket upgrade failed: %s", err)
		return
	}
	fa.runEventStream(conn, arts)
}

func (fa *FlowAdapter) runEventStream(conn *websocket.Conn, arts *session.Artifacts) {
	// The stream belongs to the adapter, not to the upgrade request
	ctx, cancelCtx := context.WithCancel(log.WithLogField(fa.bgCtx, "wsconn", bnapi.ShortID()))
	defer cancelCtx()
	defer func() { _ = conn.Close() }()

	go fa.readAcks(ctx, cancelCtx, conn)

	log.L(ctx).Infof("Event stream connected")
	fa.setIndicator(FillGreen, "connected")

	if err := fa.streamEvents(ctx, conn, arts); err != nil {
		log.L(ctx).Errorf("Event stream closed: %s", err)
	}
	fa.setIndicator(FillRed, "disconnected")
	log.L(ctx).Infof("Event stream disconnected")
}

func (fa *FlowAdapter) streamEvents(ctx context.Context, conn *websocket.Conn, arts *session.Artifacts) error {
	// Anything delivered on an earlier connection but never acked goes first
	for _, event := range fa.pendingEvents() {
		if err := fa.deliver(ctx, conn, event); err != nil {
			return err
		}
	}

	sub, err := fa.client.BNet().SubscribeEvents(ctx, arts.SessionID)
	if err != nil {
		return i18n.WrapError(ctx, err, msgs.MsgAdapterEventStreamFailed, fa.conf.Name)
	}
	defer func() { _ = sub.Unsubscribe(fa.bgCtx) }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case notification, ok := <-sub.Notifications():
			if !ok {
				return i18n.NewError(ctx, msgs.MsgAdapterEventStreamFailed, fa.conf.Name)
			}
			event := fa.addPending(notification.GetResult())
			if err := fa.deliver(ctx, conn, event); err != nil {
				return err
			}
			// The host acked, so the node no longer needs to hold the event
			if err := notification.Ack(ctx); err != nil {
				log.L(ctx).Warnf("Failed to ack event %s to the node: %s", event.EventID, err)
			}
		}
	}
}

// deliver sends one event and holds the stream until the subscriber acks it.
// The event stays pending until the ack lands, so a dropped connection
// leaves it queued for the next one.
func (fa *FlowAdapter) deliver(ctx context.Context, conn *websocket.Conn, event *bnapi.NetworkEvent) error {
	ack := fa.acks.AddInflight(ctx, event.EventID)
	defer ack.Cancel()
	_ = conn.SetWriteDeadline(time.Now().Add(fa.sendTimeout))
	if err := conn.WriteJSON(event); err != nil {
		return err
	}
	log.L(ctx).Debugf("Delivered event %s class=%s seq=%d", event.EventID, event.Class, event.Sequence)
	if _, err := ack.Wait(); err != nil {
		return err
	}
	fa.removePending(event.EventID)
	fa.metrics.IncEvent(fa.conf.Name)
	return nil
}

func (fa *FlowAdapter) readAcks(ctx context.Context, cancelCtx context.CancelFunc, conn *websocket.Conn) {
	defer cancelCtx()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.L(ctx).Debugf("Event stream read ended: %s", err)
			return
		}
		var ack eventAck
		ackErr := json.Unmarshal(data, &ack)
		if ackErr == nil && ack.EventID == "" {
			ackErr = i18n.NewError(ctx, msgs.MsgAdapterEventAckInvalid, "missing eventId")
		} else if ackErr != nil {
			ackErr = i18n.NewError(ctx, msgs.MsgAdapterEventAckInvalid, ackErr)
		}
		if ackErr != nil {
			log.L(ctx).Errorf("Closing event stream: %s", ackErr)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseProtocolError, ackErr.Error()),
				time.Now().Add(fa.sendTimeout))
			return
		}
		if req := fa.acks.GetInflight(ack.EventID); req != nil {
			req.Complete(true)
		} else {
			log.L(ctx).Warnf("Ack for unknown event '%s'", ack.EventID)
		}
	}
}

func (fa *FlowAdapter) addPending(payload bnapi.RawJSON) *bnapi.NetworkEvent {
	class, _ := payload.ToMap()[model.ClassField].(string)
	fa.eventLock.Lock()
	defer fa.eventLock.Unlock()
	fa.sequence++
	event := &bnapi.NetworkEvent{
		EventID:  uuid.New().String(),
		Class:    class,
		Sequence: fa.sequence,
		Payload:  payload,
		Received: bnapi.TimestampNow(),
	}
	fa.pending = append(fa.pending, event)
	return event
}

func (fa *FlowAdapter) pendingEvents() []*bnapi.NetworkEvent {
	fa.eventLock.Lock()
	defer fa.eventLock.Unlock()
	return append([]*bnapi.NetworkEvent{}, fa.pending...)
}

func (fa *FlowAdapter) removePending(eventID string) {
	fa.eventLock.Lock()
	defer fa.eventLock.Unlock()
	for i, event := range fa.pending {
		if event.EventID == eventID {
			fa.pending = append(fa.pending[0:i], fa.pending[i+1:]...)
			return
		}
	}
}
