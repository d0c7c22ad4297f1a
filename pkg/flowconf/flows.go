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

// FlowAdapterConfig binds one named flow to a connection. Multiple flows can
// name the same connection and share its session.
type FlowAdapterConfig struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Connection  string `json:"connection"`
	// event streaming to this flow over the API server's WebSocket
	Events EventStreamConfig `json:"events"`
}

type EventStreamConfig struct {
	Enabled bool `json:"enabled"`
}
