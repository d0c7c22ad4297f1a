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

package model

import (
	"context"
	"testing"

	"github.com/kaleido-io/flowbridge/pkg/bnapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromJSONAsset(t *testing.T) {
	tm := newTestModel(t)
	s := NewSerializer(tm)

	r, err := s.FromJSON(context.Background(), bnapi.RawJSON(`{
		"$class": "net.biz.digitalPropertyNetwork.LandTitle",
		"titleId": "TITLE-001",
		"information": "A nice house"
	}`))
	require.NoError(t, err)
	assert.Equal(t, "net.biz.digitalPropertyNetwork.LandTitle", r.Class)
	assert.Equal(t, "TITLE-001", r.ID)
	assert.Same(t, tm.Resolve("net.biz.digitalPropertyNetwork.LandTitle"), r.Declaration)
}

func TestFromJSONParticipant(t *testing.T) {
	s := NewSerializer(newTestModel(t))

	r, err := s.FromJSON(context.Background(), bnapi.RawJSON(`{
		"$class": "net.biz.digitalPropertyNetwork.Person",
		"personId": "PID-1",
		"firstName": "Fred",
		"lastName": "Bloggs"
	}`))
	require.NoError(t, err)
	assert.Equal(t, "PID-1", r.ID)
	assert.Equal(t, bnapi.DeclarationKindParticipant.Enum(), r.Declaration.Kind)
}

func TestFromJSONTransactionNoIdentifier(t *testing.T) {
	s := NewSerializer(newTestModel(t))

	r, err := s.FromJSON(context.Background(), bnapi.RawJSON(`{
		"$class": "net.biz.digitalPropertyNetwork.RegisterPropertyForSale",
		"title": "TITLE-001",
		"seller": "PID-1"
	}`))
	require.NoError(t, err)
	assert.Empty(t, r.ID)
}

func TestFromJSONUnknownClass(t *testing.T) {
	s := NewSerializer(newTestModel(t))

	_, err := s.FromJSON(context.Background(), bnapi.RawJSON(`{"$class": "org.acme.Unknown", "id": "1"}`))
	require.Regexp(t, "FB000400.*org.acme.Unknown.*digitalproperty-network", err)
}

func TestFromJSONMissingClass(t *testing.T) {
	s := NewSerializer(newTestModel(t))

	_, err := s.FromJSON(context.Background(), bnapi.RawJSON(`{"titleId": "TITLE-001"}`))
	require.Regexp(t, "FB000202", err)

	_, err = s.FromJSON(context.Background(), bnapi.RawJSON(`{"$class": 12345}`))
	require.Regexp(t, "FB000202", err)

	_, err = s.FromJSON(context.Background(), bnapi.RawJSON(`null`))
	require.Regexp(t, "FB000202", err)
}

func TestFromJSONBadJSON(t *testing.T) {
	s := NewSerializer(newTestModel(t))

	_, err := s.FromJSON(context.Background(), bnapi.RawJSON(`!not json`))
	require.Regexp(t, "FB000200", err)

	_, err = s.FromJSON(context.Background(), bnapi.RawJSON(`["an","array"]`))
	require.Regexp(t, "FB000200", err)
}

func TestFromJSONIdentifierMissing(t *testing.T) {
	s := NewSerializer(newTestModel(t))

	_, err := s.FromJSON(context.Background(), bnapi.RawJSON(`{
		"$class": "net.biz.digitalPropertyNetwork.LandTitle",
		"information": "no title id"
	}`))
	require.Regexp(t, "FB000401.*LandTitle.*titleId", err)
}

func TestFromJSONIdentifierNotString(t *testing.T) {
	s := NewSerializer(newTestModel(t))

	_, err := s.FromJSON(context.Background(), bnapi.RawJSON(`{
		"$class": "net.biz.digitalPropertyNetwork.LandTitle",
		"titleId": 42
	}`))
	require.Regexp(t, "FB000404.*titleId", err)

	_, err = s.FromJSON(context.Background(), bnapi.RawJSON(`{
		"$class": "net.biz.digitalPropertyNetwork.LandTitle",
		"titleId": ""
	}`))
	require.Regexp(t, "FB000404.*titleId", err)
}

func TestToJSONCanonical(t *testing.T) {
	s := NewSerializer(newTestModel(t))

	r, err := s.FromJSON(context.Background(), bnapi.RawJSON(`{
		"titleId": "TITLE-001",
		"$class": "net.biz.digitalPropertyNetwork.LandTitle",
		"detail": {"z": 9007199254740993, "a": true}
	}`))
	require.NoError(t, err)

	canonical, err := s.ToJSON(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t,
		`{"$class":"net.biz.digitalPropertyNetwork.LandTitle","detail":{"a":true,"z":9007199254740993},"titleId":"TITLE-001"}`,
		canonical.String())
}

func TestToJSONDeterministicAcrossFieldOrder(t *testing.T) {
	s := NewSerializer(newTestModel(t))
	ctx := context.Background()

	r1, err := s.FromJSON(ctx, bnapi.RawJSON(`{"$class":"net.biz.digitalPropertyNetwork.Person","personId":"PID-1","firstName":"Fred"}`))
	require.NoError(t, err)
	r2, err := s.FromJSON(ctx, bnapi.RawJSON(`{"firstName":"Fred","personId":"PID-1","$class":"net.biz.digitalPropertyNetwork.Person"}`))
	require.NoError(t, err)

	j1, err := s.ToJSON(ctx, r1)
	require.NoError(t, err)
	j2, err := s.ToJSON(ctx, r2)
	require.NoError(t, err)
	assert.Equal(t, j1.String(), j2.String())
}

func TestToJSONBadFields(t *testing.T) {
	s := NewSerializer(newTestModel(t))

	_, err := s.ToJSON(context.Background(), &Resource{
		Class:  "org.acme.Broken",
		Fields: bnapi.RawJSON(`!`),
	})
	require.Regexp(t, "FB000403.*org.acme.Broken", err)
}
