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

const DefaultAPIPort = 8171

// APIServerConfig is the HTTP server the flow host calls into, including the
// WebSocket upgrade settings for event streams served on the same listener.
type APIServerConfig struct {
	HTTPServerConfig `json:",inline"`
	WS               APIServerConfigWS `json:"ws"`
}

type APIServerConfigWS struct {
	ReadBufferSize  *string `json:"readBufferSize"`
	WriteBufferSize *string `json:"writeBufferSize"`
	SendTimeout     *string `json:"sendTimeout"`
}

var APIServerWSDefaults = APIServerConfigWS{
	ReadBufferSize:  confutil.P("64KB"),
	WriteBufferSize: confutil.P("64KB"),
	SendTimeout:     confutil.P("15s"),
}
