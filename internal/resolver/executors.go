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

import "github.com/eureka-network/sink-pg/internal/parserhost"

// ExecutorRegistry is the simplest possible Executors implementation: a
// fixed map built once at startup, one Executor per manifest known to
// the sink's configuration.
type ExecutorRegistry struct {
	byManifest map[string]*parserhost.Executor
}

// NewExecutorRegistry returns a registry over byManifest. The caller
// retains ownership of each Executor and is responsible for calling Run
// on it.
func NewExecutorRegistry(byManifest map[string]*parserhost.Executor) *ExecutorRegistry {
	return &ExecutorRegistry{byManifest: byManifest}
}

// For implements Executors.
func (r *ExecutorRegistry) For(manifest string) (parserExecutor, bool) {
	e, ok := r.byManifest[manifest]
	if !ok {
		return nil, false
	}
	return e, true
}
