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

package bnapi

import (
	"github.com/google/uuid"
)

// The lifecycle state of a session with a business network node
type SessionState string

const (
	SessionStateDisconnected SessionState = "disconnected"
	SessionStateConnecting   SessionState = "connecting"
	SessionStateConnected    SessionState = "connected"
)

func (ss SessionState) Enum() Enum[SessionState] {
	return Enum[SessionState](ss)
}

func (ss SessionState) Options() []string {
	return []string{
		string(SessionStateDisconnected),
		string(SessionStateConnecting),
		string(SessionStateConnected),
	}
}

func (ss SessionState) Default() string {
	return string(SessionStateDisconnected)
}

// The credentials used to establish a session with a business network node
type ConnectRequest struct {
	ConnectionProfile string `json:"connectionProfile"` // the name of the connection profile held by the node
	NetworkName       string `json:"networkName"`       // the business network to join
	ParticipantID     string `json:"participantId"`     // the identity to act as
	Secret            string `json:"secret,omitempty"`  // the enrollment secret for the identity
}

type ConnectResult struct {
	SessionID uuid.UUID          `json:"sessionId"`
	Network   *NetworkDefinition `json:"network"`
}

// A snapshot of the connection state of a single configured flow
type FlowStatus struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Connection  string             `json:"connection"`
	State       Enum[SessionState] `json:"state"`
	SessionID   *uuid.UUID         `json:"sessionId,omitempty"`   // only set while connected
	Network     string             `json:"network,omitempty"`     // the business network name reported by the node
	ConnectedAt *Timestamp         `json:"connectedAt,omitempty"` // time the current session was established
	Fill        string             `json:"fill"`                  // status indicator color for the flow host UI
	Text        string             `json:"text"`                  // short status indicator label
	At          *Timestamp         `json:"at,omitempty"`          // when the indicator last changed
}
