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

// Package metrics holds shared Prometheus helpers used by every
// component's own metrics file.
package metrics

// LatencyBuckets is used by every duration histogram in the sink.
var LatencyBuckets = []float64{
	.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60,
}

// SchemaLabels is attached to metrics scoped to one target schema/table.
var SchemaLabels = []string{"schema", "table"}

// SchemeLabels is attached to metrics scoped to a downloader's URI scheme.
var SchemeLabels = []string{"scheme"}

// ManifestLabels is attached to metrics scoped to a parser manifest.
var ManifestLabels = []string{"manifest"}
