// Copyright 2024 The sink-pg Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "resolver_tasks_in_flight",
		Help: "the number of resolver tasks currently holding a concurrency permit",
	})
	tasksRetried = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resolver_tasks_retried_total",
		Help: "the number of times a resolver task was rescheduled after a failed download",
	})
)

type engineMetrics struct{}

func newEngineMetrics() *engineMetrics { return &engineMetrics{} }

func (*engineMetrics) taskStarted()  { tasksInFlight.Inc() }
func (*engineMetrics) taskFinished() { tasksInFlight.Dec() }
func (*engineMetrics) retried()      { tasksRetried.Inc() }
