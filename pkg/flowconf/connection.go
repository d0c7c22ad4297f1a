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

package flowconf

import (
	"github.com/kaleido-io/flowbridge/pkg/confutil"
)

// ConnectionConfig fully describes one business network connection, including
// the identity that will be used for every operation dispatched through it.
// The identity fields are fixed for the life of the process - flows wanting a
// different identity must declare a separate named connection.
type ConnectionConfig struct {
	ConnectionProfile         string `json:"connectionProfile"`
	BusinessNetworkIdentifier string `json:"businessNetworkIdentifier"`
	ParticipantID             string `json:"participantId"`
	ParticipantPassword       string `json:"participantPassword"`
	// the JSON/RPC endpoint of the business network node
	Endpoint HTTPClientConfig `json:"endpoint"`
	// optional WebSocket endpoint, required only when a flow subscribes to events
	WSEndpoint *WSClientConfig `json:"wsEndpoint,omitempty"`
	// caching of resolved registry handles per declared type
	RegistryCache CacheConfig `json:"registryCache"`
}

var ConnectionDefaults = &ConnectionConfig{
	RegistryCache: CacheConfig{
		Capacity: confutil.P(100),
	},
}
