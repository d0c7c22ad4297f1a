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

	"github.com/prometheus/client_golang/prometheus"
)

type FlowMetrics interface {
	IncOperation(flow, operation, outcome string)
	IncEvent(flow string)
}

var METRICS_SUBSYSTEM = "flowbridge"

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

type flowMetrics struct {
	operations *prometheus.CounterVec
	events     *prometheus.CounterVec
}

func InitMetrics(ctx context.Context, registry *prometheus.Registry) *flowMetrics {
	metrics := &flowMetrics{}

	metrics.operations = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "operations_total",
		Help: "Flow operations dispatched to a business network", Subsystem: METRICS_SUBSYSTEM}, []string{"flow", "operation", "outcome"})
	metrics.events = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "events_total",
		Help: "Business network events delivered to subscribers", Subsystem: METRICS_SUBSYSTEM}, []string{"flow"})

	registry.MustRegister(metrics.operations)
	registry.MustRegister(metrics.events)
	return metrics
}

func (fm *flowMetrics) IncOperation(flow, operation, outcome string) {
	labels := prometheus.Labels{"flow": flow, "operation": operation, "outcome": outcome}
	fm.operations.With(labels).Inc()
}

func (fm *flowMetrics) IncEvent(flow string) {
	labels := prometheus.Labels{"flow": flow}
	fm.events.With(labels).Inc()
}
