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

package loader

import (
	"time"

	"github.com/eureka-network/sink-pg/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	flushDurations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "loader_flush_duration_seconds",
		Help:    "the length of time it took to flush a batch of buffered operations",
		Buckets: metrics.LatencyBuckets,
	})
	flushErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loader_flush_errors_total",
		Help: "the number of times a flush failed",
	})
)

type loaderMetrics struct{}

func newLoaderMetrics() *loaderMetrics { return &loaderMetrics{} }

func (*loaderMetrics) observe(d time.Duration, err error) {
	flushDurations.Observe(d.Seconds())
	if err != nil {
		flushErrors.Inc()
	}
}
