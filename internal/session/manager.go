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

package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/kaleido-io/flowbridge/internal/model"
	"github.com/kaleido-io/flowbridge/internal/msgs"
	"github.com/kaleido-io/flowbridge/pkg/bnapi"
	"github.com/kaleido-io/flowbridge/pkg/bnclient"
	"github.com/kaleido-io/flowbridge/pkg/flowconf"
	"github.com/kaleido-io/flowbridge/pkg/log"
)

// Artifacts are the products of a successful connect, cached on the manager
// for the life of the session. All fields are immutable once built, so
// callers use them without any further locking.
type Artifacts struct {
	SessionID  uuid.UUID
	Definition *bnapi.NetworkDefinition
	Model      *model.TypeModel
	Serializer *model.Serializer
}

// connectAttempt is shared by every caller waiting on one in-flight connect.
// The driver goroutine sets the outcome fields before closing done, and
// waiters only read them after done is closed.
type connectAttempt struct {
	done      chan struct{}
	artifacts *Artifacts
	err       error
}

// Manager drives the session state machine for one named connection.
//
// The connection parameters are fixed at construction. Flows that need to
// act as different participants are configured with separate connections,
// and get separate managers, so one caller can never overwrite the
// credentials of a connect already in flight for another.
type Manager struct {
	bgCtx  context.Context
	name   string
	conf   *flowconf.ConnectionConfig
	client bnclient.BusinessNetworkClient

	lock        sync.Mutex
	state       bnapi.SessionState
	closed      bool
	attempt     *connectAttempt // only set while connecting
	artifacts   *Artifacts      // only set while connected
	connectedAt *bnapi.Timestamp
}

func NewManager(bgCtx context.Context, name string, conf *flowconf.ConnectionConfig, client bnclient.BusinessNetworkClient) *Manager {
	return &Manager{
		bgCtx:  log.WithLogField(bgCtx, "connection", name),
		name:   name,
		conf:   conf,
		client: client,
		state:  bnapi.SessionStateDisconnected,
	}
}

// EnsureConnected returns the artifacts of the live session, establishing
// the session on first use.
//
// While a connect is in flight all arriving callers wait on that one
// attempt, so the node sees a single bnet_connect however many requests
// pile up behind it. The connect itself runs against the manager's
// background context. A caller whose own context expires gives up waiting,
// but the attempt carries on so later callers can still join its result.
func (m *Manager) EnsureConnected(ctx context.Context) (*Artifacts, error) {
	startTime := time.Now()

	m.lock.Lock()
	if m.closed {
		m.lock.Unlock()
		return nil, i18n.NewError(ctx, msgs.MsgSessionClosed, m.name)
	}
	if m.state == bnapi.SessionStateConnected {
		artifacts := m.artifacts
		m.lock.Unlock()
		return artifacts, nil
	}
	attempt := m.attempt
	if attempt == nil {
		attempt = &connectAttempt{done: make(chan struct{})}
		m.attempt = attempt
		m.state = bnapi.SessionStateConnecting
		go m.connect(attempt)
	}
	m.lock.Unlock()

	select {
	case <-attempt.done:
		return attempt.artifacts, attempt.err
	case <-ctx.Done():
		return nil, i18n.NewError(ctx, msgs.MsgSessionConnectWaitCancelled, time.Since(startTime).Round(time.Millisecond), m.name)
	}
}

func (m *Manager) connect(attempt *connectAttempt) {
	ctx := m.bgCtx
	log.L(ctx).Infof("Connecting to business network '%s' as participant '%s'", m.conf.BusinessNetworkIdentifier, m.conf.ParticipantID)
	result, err := m.client.BNet().Connect(ctx, &bnapi.ConnectRequest{
		ConnectionProfile: m.conf.ConnectionProfile,
		NetworkName:       m.conf.BusinessNetworkIdentifier,
		ParticipantID:     m.conf.ParticipantID,
		Secret:            m.conf.ParticipantPassword,
	})
	var artifacts *Artifacts
	if err == nil {
		artifacts, err = m.buildArtifacts(ctx, result)
	}

	m.lock.Lock()
	m.attempt = nil
	if err != nil {
		m.state = bnapi.SessionStateDisconnected
		attempt.err = i18n.WrapError(ctx, err, msgs.MsgSessionConnectFailed, m.conf.BusinessNetworkIdentifier)
		log.L(ctx).Errorf("Connect failed: %s", err)
	} else {
		now := bnapi.TimestampNow()
		m.state = bnapi.SessionStateConnected
		m.artifacts = artifacts
		m.connectedAt = &now
		attempt.artifacts = artifacts
		log.L(ctx).Infof("Connected to business network '%s' session=%s", artifacts.Definition.Name, artifacts.SessionID)
	}
	m.lock.Unlock()
	close(attempt.done)
}

// The network definition returned by the node becomes the typed model and
// serializer used for every dispatch on this session.
func (m *Manager) buildArtifacts(ctx context.Context, result *bnapi.ConnectResult) (*Artifacts, error) {
	if result == nil || result.Network == nil {
		return nil, i18n.NewError(ctx, msgs.MsgSessionEmptyDefinition, m.conf.BusinessNetworkIdentifier)
	}
	typeModel, err := model.NewTypeModel(ctx, result.Network)
	if err != nil {
		return nil, err
	}
	return &Artifacts{
		SessionID:  result.SessionID,
		Definition: result.Network,
		Model:      typeModel,
		Serializer: model.NewSerializer(typeModel),
	}, nil
}

// Name returns the connection name this manager serves.
func (m *Manager) Name() string {
	return m.name
}

// State returns the current state of the session.
func (m *Manager) State() bnapi.SessionState {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.state
}

// Status fills in the session owned fields of a flow status report.
func (m *Manager) Status(status *bnapi.FlowStatus) {
	m.lock.Lock()
	defer m.lock.Unlock()
	status.Connection = m.name
	status.State = m.state.Enum()
	if m.state == bnapi.SessionStateConnected {
		sessionID := m.artifacts.SessionID
		status.SessionID = &sessionID
		status.Network = m.artifacts.Definition.Name
		status.ConnectedAt = m.connectedAt
	}
}

// Close prevents any further connect attempts. There is no disconnect to
// send to the node. Closing the transport at shutdown ends the session.
func (m *Manager) Close() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.closed = true
}
