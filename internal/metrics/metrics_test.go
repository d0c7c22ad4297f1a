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

package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestInitMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := InitMetrics(context.Background(), registry)
	assert.NotNil(t, metrics)

	metrics.IncOperation("flow1", "create", OutcomeSuccess)
	metrics.IncOperation("flow1", "create", OutcomeSuccess)
	metrics.IncOperation("flow1", "retrieve", OutcomeFailure)

	metrics.IncEvent("flow1")
	metrics.IncEvent("flow1")
	metrics.IncEvent("flow1")

	metricFamilies, err := registry.Gather()
	assert.NoError(t, err, "Unexpected error gathering metrics")

	// Families come back sorted by name
	assert.Equal(t, metricFamilies[0].GetName(), "flowbridge_events_total")
	assert.Equal(t, metricFamilies[0].GetMetric()[0].GetCounter().GetValue(), float64(3))
	assert.Equal(t, metricFamilies[0].GetMetric()[0].GetLabel()[0].GetValue(), "flow1")

	assert.Equal(t, metricFamilies[1].GetName(), "flowbridge_operations_total")
	assert.Equal(t, metricFamilies[1].GetMetric()[0].GetCounter().GetValue(), float64(2))
	assert.Equal(t, metricFamilies[1].GetMetric()[0].GetLabel()[1].GetValue(), "create")
	assert.Equal(t, metricFamilies[1].GetMetric()[0].GetLabel()[2].GetValue(), OutcomeSuccess)
	assert.Equal(t, metricFamilies[1].GetMetric()[1].GetCounter().GetValue(), float64(1))
	assert.Equal(t, metricFamilies[1].GetMetric()[1].GetLabel()[1].GetValue(), "retrieve")
	assert.Equal(t, metricFamilies[1].GetMetric()[1].GetLabel()[2].GetValue(), OutcomeFailure)
}
