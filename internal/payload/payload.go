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

// Package payload holds the pure shape checks that run before any network
// activity. A request that fails here never costs a connect.
package payload

import (
	"context"
	"encoding/json"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/kaleido-io/flowbridge/internal/model"
	"github.com/kaleido-io/flowbridge/internal/msgs"
	"github.com/kaleido-io/flowbridge/pkg/bnapi"
	"github.com/kaleido-io/flowbridge/pkg/flowconf"
)

// Operate is a validated create/update payload. Resource is the original
// JSON, untouched, so the serializer sees exactly what the caller sent.
type Operate struct {
	Class    string
	Resource bnapi.RawJSON
}

// Retrieve is a validated retrieval request.
type Retrieve struct {
	ModelName string `json:"modelName"`
	ID        string `json:"id"`
}

// List is a validated listing request. A zero limit means the caller left
// the bound to the server.
type List struct {
	ModelName string `json:"modelName"`
	Limit     int    `json:"limit,omitempty"`
}

// ValidateConnection checks the four parameters every session needs are
// present, reporting the first omission in declaration order.
func ValidateConnection(ctx context.Context, name string, conf *flowconf.ConnectionConfig) error {
	checks := []struct {
		field string
		value string
	}{
		{"connectionProfile", conf.ConnectionProfile},
		{"businessNetworkIdentifier", conf.BusinessNetworkIdentifier},
		{"participantId", conf.ParticipantID},
		{"participantPassword", conf.ParticipantPassword},
	}
	for _, check := range checks {
		if check.value == "" {
			return i18n.NewError(ctx, msgs.MsgConfigConnectionMissingField, name, check.field)
		}
	}
	return nil
}

// ParseOperate confirms a create/update payload is a JSON object carrying a
// non-empty $class discriminator.
func ParseOperate(ctx context.Context, data bnapi.RawJSON) (*Operate, error) {
	obj, err := parseObject(ctx, data)
	if err != nil {
		return nil, err
	}
	class, isString := obj[model.ClassField].(string)
	if !isString || class == "" {
		return nil, i18n.NewError(ctx, msgs.MsgPayloadMissingClass)
	}
	return &Operate{Class: class, Resource: data}, nil
}

// ParseRetrieve confirms a retrieval request names both the type and the
// identifier to fetch.
func ParseRetrieve(ctx context.Context, data bnapi.RawJSON) (*Retrieve, error) {
	obj, err := parseObject(ctx, data)
	if err != nil {
		return nil, err
	}
	modelName, _ := obj["modelName"].(string)
	if modelName == "" {
		return nil, i18n.NewError(ctx, msgs.MsgRetrieveMissingModelName)
	}
	id, _ := obj["id"].(string)
	if id == "" {
		return nil, i18n.NewError(ctx, msgs.MsgRetrieveMissingResourceID)
	}
	return &Retrieve{ModelName: modelName, ID: id}, nil
}

// ParseList confirms a listing request names the type, with an optional
// non-negative whole-number limit.
func ParseList(ctx context.Context, data bnapi.RawJSON) (*List, error) {
	obj, err := parseObject(ctx, data)
	if err != nil {
		return nil, err
	}
	modelName, _ := obj["modelName"].(string)
	if modelName == "" {
		return nil, i18n.NewError(ctx, msgs.MsgRetrieveMissingModelName)
	}
	list := &List{ModelName: modelName}
	if rawLimit, hasLimit := obj["limit"]; hasLimit {
		limit, isNumber := rawLimit.(float64)
		if !isNumber || limit < 0 || limit != float64(int(limit)) {
			return nil, i18n.NewError(ctx, msgs.MsgAdapterInvalidLimit, rawLimit)
		}
		list.Limit = int(limit)
	}
	return list, nil
}

func parseObject(ctx context.Context, data bnapi.RawJSON) (map[string]interface{}, error) {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, i18n.NewError(ctx, msgs.MsgPayloadInvalidJSON, err)
	}
	obj, isObject := raw.(map[string]interface{})
	if !isObject {
		return nil, i18n.NewError(ctx, msgs.MsgPayloadNotObject)
	}
	return obj, nil
}
