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

// A reference to the registry that stores instances of a single declared type
type RegistryHandle struct {
	RegistryID string                `json:"registryId"` // assigned by the node, opaque to the client
	Kind       Enum[DeclarationKind] `json:"kind"`
	TypeName   string                `json:"typeName"` // the fully qualified class name the registry stores
}

// Returned by the node when a transaction is accepted for processing
type SubmitResult struct {
	TransactionID uuid.UUID `json:"transactionId"`
}

// A summary of a completed registry or transaction operation on the flow API
type OperationResult struct {
	Operation     string     `json:"operation"`
	Class         string     `json:"class"`
	ResourceID    string     `json:"resourceId,omitempty"`
	TransactionID *uuid.UUID `json:"transactionId,omitempty"` // only set for transaction submission
}

// An event emitted by the business network, delivered on the event stream
type NetworkEvent struct {
	EventID  string    `json:"eventId"`
	Class    string    `json:"class"`
	Sequence uint64    `json:"sequence"` // monotonically increasing per subscription
	Payload  RawJSON   `json:"payload,omitempty"`
	Received Timestamp `json:"received,omitempty"`
}

// Error codes returned by business network nodes in JSON-RPC error responses,
// beyond the standard JSON-RPC set
const (
	RPCCodeNotFound     int64 = -32040
	RPCCodeUnknownType  int64 = -32041
	RPCCodeUnauthorized int64 = -32042
)
