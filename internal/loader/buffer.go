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
	"sync"

	"github.com/eureka-network/sink-pg/internal/dbops"
	"github.com/pkg/errors"
)

// ErrPrimaryKeyAlreadyScheduled is returned by insert when a pending
// operation already exists for (table, pk): at most one mutation per
// row may be buffered between flushes.
var ErrPrimaryKeyAlreadyScheduled = errors.New("primary key already scheduled in this flush window")

// buffer accumulates operations per table, keyed by the row's primary
// key value, until Flush applies and clears it. At most one pending
// operation may exist per (table, primary key) at a time.
type buffer struct {
	mu      sync.Mutex
	entries map[string]map[string]dbops.Operation
	count   int
}

func newBuffer() *buffer {
	return &buffer{entries: map[string]map[string]dbops.Operation{}}
}

func (b *buffer) insert(table, pk string, op dbops.Operation) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rows, ok := b.entries[table]
	if !ok {
		rows = map[string]dbops.Operation{}
		b.entries[table] = rows
	}
	if _, exists := rows[pk]; exists {
		return errors.WithStack(ErrPrimaryKeyAlreadyScheduled)
	}
	rows[pk] = op
	b.count++
	return nil
}

func (b *buffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// snapshot returns a shallow copy of the buffered operations for
// Flush to iterate without holding the lock across database calls.
func (b *buffer) snapshot() map[string]map[string]dbops.Operation {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]map[string]dbops.Operation, len(b.entries))
	for table, rows := range b.entries {
		cp := make(map[string]dbops.Operation, len(rows))
		for pk, op := range rows {
			cp[pk] = op
		}
		out[table] = cp
	}
	return out
}

// reset clears every buffered operation.
func (b *buffer) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = map[string]map[string]dbops.Operation{}
	b.count = 0
}
