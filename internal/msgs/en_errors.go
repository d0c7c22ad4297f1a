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

package msgs

import (
	"fmt"
	"strings"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"golang.org/x/text/language"
)

const bridgePrefix = "FB00"

var registered = false
var ffe = func(key, translation string, statusHint ...int) i18n.ErrorMessageKey {
	if !registered {
		i18n.RegisterPrefix(bridgePrefix, "FlowBridge")
		registered = true
	}
	if !strings.HasPrefix(key, bridgePrefix) {
		panic(fmt.Errorf("must have prefix '%s': %s", bridgePrefix, key))
	}
	return i18n.FFE(language.AmericanEnglish, key, translation, statusHint...)
}

var (

	// Config FB0001XX
	MsgConfigFileMissing            = ffe("FB000100", "Config file not found at path: %s")
	MsgConfigFileReadError          = ffe("FB000101", "Failed to read config file %s with error: %s")
	MsgConfigFileParseError         = ffe("FB000102", "Failed to parse config file %s with error: %s")
	MsgConfigConnectionMissingField = ffe("FB000103", "Connection '%s' missing required field '%s'")
	MsgConfigNoConnections          = ffe("FB000104", "No connections defined in configuration")
	MsgConfigFlowMissingName        = ffe("FB000105", "Flow adapter at index %d missing name")
	MsgConfigFlowDuplicateName      = ffe("FB000106", "Duplicate flow adapter name '%s'")
	MsgConfigFlowUnknownConnection  = ffe("FB000107", "Flow adapter '%s' references unknown connection '%s'")
	MsgConfigConnectionMissingURL   = ffe("FB000108", "Connection '%s' missing endpoint URL")
	MsgConfigFlowEventsNeedWS       = ffe("FB000109", "Flow adapter '%s' has events enabled but connection '%s' has no wsEndpoint")

	// Payload validation FB0002XX
	MsgPayloadInvalidJSON        = ffe("FB000200", "Invalid JSON payload: %s", 400)
	MsgPayloadNotObject          = ffe("FB000201", "Operation payload must be a JSON object", 400)
	MsgPayloadMissingClass       = ffe("FB000202", "Operation payload missing required '$class' field", 400)
	MsgRetrieveMissingModelName  = ffe("FB000203", "Retrieve request missing required 'modelName' field", 400)
	MsgRetrieveMissingResourceID = ffe("FB000204", "Retrieve request missing required 'id' field", 400)

	// Session FB0003XX
	MsgSessionConnectFailed        = ffe("FB000300", "Connection to business network '%s' failed")
	MsgSessionClosed               = ffe("FB000301", "Session for connection '%s' is closed")
	MsgSessionConnectWaitCancelled = ffe("FB000302", "Request cancelled after %s waiting for connection '%s'")
	MsgSessionEmptyDefinition      = ffe("FB000303", "Business network '%s' returned an empty network definition")

	// Type model FB0004XX
	MsgModelUnknownClass         = ffe("FB000400", "Resource type '%s' is not defined in business network '%s'", 400)
	MsgModelMissingIdentifier    = ffe("FB000401", "Resource of type '%s' missing identifying field '%s'", 400)
	MsgModelDuplicateDeclaration = ffe("FB000402", "Duplicate declaration '%s' in network definition")
	MsgModelResourceReadFailed   = ffe("FB000403", "Failed to deserialize resource of type '%s': %s", 400)
	MsgModelIdentifierNotString  = ffe("FB000404", "Identifying field '%s' of type '%s' must be a non-empty string", 400)

	// Dispatch FB0005XX
	MsgDispatchUnsupportedType      = ffe("FB000500", "Resource type '%s' is declared as '%s' and cannot be dispatched", 400)
	MsgDispatchUnsupportedOperation = ffe("FB000501", "Operation '%s' is not supported for transaction type '%s'", 400)
	MsgDispatchResourceNotFound     = ffe("FB000502", "No resource of type '%s' found with identifier '%s'", 404)
	MsgDispatchOperationFailed      = ffe("FB000503", "Operation '%s' failed for resource type '%s' identifier '%s'")
	MsgDispatchRegistryUnavailable  = ffe("FB000504", "Failed to resolve %s registry for type '%s'")
	MsgDispatchSubmitFailed         = ffe("FB000505", "Failed to submit transaction of type '%s'")
	MsgDispatchRetrieveUndeclared   = ffe("FB000506", "Cannot retrieve instances of type '%s': not declared in business network '%s'", 400)
	MsgDispatchListFailed           = ffe("FB000507", "Failed to list resources of type '%s'")

	// RPC client FB0006XX
	MsgRPCClientInvalidURL        = ffe("FB000600", "Invalid URL: '%s'")
	MsgRPCClientNoConnection      = ffe("FB000601", "No connection established. Use HTTP() or WebSocket() to connect the client")
	MsgRPCClientResultParseFailed = ffe("FB000602", "Failed to parse result (expected=%T): %s")
	MsgRPCClientInvalidParam      = ffe("FB000603", "Invalid parameter at position %d for method %s: %s")
	MsgRPCClientUnsubscribeFailed = ffe("FB000604", "Unsubscribe of subscription '%s' returned failure")
	MsgRPCClientInvalidSubID      = ffe("FB000605", "Subscription response missing identifier")
	MsgRPCClientWebSocketRequired = ffe("FB000606", "WebSocket connection required for subscriptions")
	MsgRPCClientRequestFailed     = ffe("FB000607", "Backend RPC request failed: %s")
	MsgRPCClientReconnected       = ffe("FB000608", "WebSocket reconnected during JSON/RPC call")

	// WebSocket client FB0007XX
	MsgWSClientInvalidWebSocketURL = ffe("FB000700", "Invalid WebSocket URL: %s")
	MsgWSClientConnectFailed       = ffe("FB000701", "WebSocket connect failed")
	MsgWSClientClosing             = ffe("FB000702", "WebSocket closing")
	MsgWSClientHeartbeatTimeout    = ffe("FB000703", "WebSocket heartbeat timed out after %.2fms")
	MsgWSClientSendTimedOut        = ffe("FB000704", "WebSocket send timed out")

	// HTTP server FB0008XX
	MsgHTTPServerStartFailed    = ffe("FB000800", "Failed to start %s server")
	MsgHTTPServerMissingPort    = ffe("FB000801", "HTTP server port must be specified for %s")
	MsgHTTPRequestTimeout       = ffe("FB000802", "Request exceeded timeout of %s", 408)
	MsgJSONRPCUnsupportedMethod = ffe("FB000803", "method not supported %s")
	MsgHTTPServerNoWSUpgrade    = ffe("FB000804", "HTTP server response writer %T does not support WebSocket upgrade")

	// Flow adapters FB0009XX
	MsgAdapterUnknownFlow       = ffe("FB000900", "No flow adapter named '%s'", 404)
	MsgAdapterBodyReadFailed    = ffe("FB000901", "Failed to read request body: %s", 400)
	MsgAdapterInvalidMode       = ffe("FB000902", "Invalid operate mode '%s' (expected 'create' or 'update')", 400)
	MsgAdapterEventsNotEnabled  = ffe("FB000903", "Flow adapter '%s' does not have events enabled", 404)
	MsgAdapterInvalidLimit      = ffe("FB000904", "Invalid list limit '%v'", 400)
	MsgAdapterEventAckInvalid   = ffe("FB000905", "Invalid event acknowledgement: %s")
	MsgAdapterEventStreamFailed = ffe("FB000906", "Event stream for flow '%s' failed")

	// Bridge lifecycle FB0010XX
	MsgBridgeInitFailed           = ffe("FB001000", "FlowBridge initialization failed")
	MsgBridgeAlreadyStarted       = ffe("FB001001", "FlowBridge already started")
	MsgBridgeDebugServerFailed    = ffe("FB001002", "Debug server failed to start")
	MsgBridgeMetricsServerFailed  = ffe("FB001003", "Metrics server failed to start")
	MsgBridgeAPIServerFailed      = ffe("FB001004", "API server failed to start")
	MsgBridgeConnectionInitFailed = ffe("FB001005", "Connection '%s' failed to initialize")

	// TLS FB0011XX
	MsgTLSInvalidCAFile             = ffe("FB001100", "Invalid CA certificates file")
	MsgTLSConfigFailed              = ffe("FB001101", "Failed to initialize TLS configuration")
	MsgTLSInvalidKeyPairFiles       = ffe("FB001102", "Invalid certificate and key pair files")
	MsgTLSInvalidTLSDnMatcherRegexp = ffe("FB001103", "Invalid regexp '%s' for requiredDNAttributes field '%s': %s")
	MsgTLSInvalidTLSDnMatcherAttr   = ffe("FB001104", "Unknown DN attribute '%s'")
	MsgTLSInvalidTLSDnChain         = ffe("FB001105", "Cannot match subject distinguished name as cert chain is not verified")
	MsgTLSInvalidTLSDnMismatch      = ffe("FB001106", "Certificate subject does not meet requirements")

	// Inflight FB0012XX
	MsgInflightRequestCancelled = ffe("FB001200", "Request cancelled after %s")

	// Types FB0013XX
	MsgContextCanceled       = ffe("FB001300", "Context canceled")
	MsgTypesUnmarshalNil     = ffe("FB001301", "UnmarshalJSON on nil pointer")
	MsgTypesEnumValueInvalid = ffe("FB001302", "Value must be one of %s")
	MsgTypesRestoreFailed    = ffe("FB001303", "Failed to restore type '%T' into '%T'")
	MsgTypesTimeParseFail    = ffe("FB001304", "Cannot parse time as RFC3339, Unix, or UnixNano: '%s'")

	// Command line FB0014XX
	MsgCmdInvalidOutputType = ffe("FB001400", "Invalid output format '%s' (expected 'json' or 'yaml')")
)
