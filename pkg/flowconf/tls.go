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

type TLSConfig struct {
	Enabled bool `json:"enabled"`
	// Paths to the CA, certificate and key files on disk
	CAFile   string `json:"caFile,omitempty"`
	CertFile string `json:"certFile,omitempty"`
	KeyFile  string `json:"keyFile,omitempty"`
	// Inline PEM alternatives to the file options
	CA   string `json:"ca,omitempty"`
	Cert string `json:"cert,omitempty"`
	Key  string `json:"key,omitempty"`
	// Server-side mTLS enforcement
	ClientAuth bool `json:"clientAuth,omitempty"`
	// Regular expressions to match against attributes of the subject DN of the peer certificate
	RequiredDNAttributes   map[string]string `json:"requiredDNAttributes,omitempty"`
	InsecureSkipHostVerify bool              `json:"insecureSkipHostVerify,omitempty"`
}
