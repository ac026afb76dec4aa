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
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

// Querier is implemented by *pgxpool.Pool, pgx.Tx, and pgxmock's pool
// mock, so tests can exercise Store without a live database.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists ResolveTask state so that the resolver can resume
// after a restart without losing or duplicating pending work.
type Store struct {
	pool Querier
}

// NewStore returns a Store backed by pool. SetupSchema must be called
// once before use against a fresh database.
func NewStore(pool Querier) *Store {
	return &Store{pool: pool}
}

// SetupSchema creates the resolver_tasks table if it does not exist.
func (s *Store) SetupSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS resolver_tasks (
	uri               TEXT NOT NULL,
	manifest          TEXT NOT NULL,
	handler           TEXT NOT NULL,
	max_retries       INTEGER NOT NULL,
	wait_before_retry INTEGER NOT NULL,
	num_retries       INTEGER NOT NULL DEFAULT 0,
	state             INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (uri, manifest)
)`)
	return errors.Wrap(err, "creating resolver_tasks table")
}

// LoadQueued returns every task that has not reached a terminal state,
// for the resolver to resume processing on startup.
func (s *Store) LoadQueued(ctx context.Context) ([]Task, error) {
	rows, err := s.pool.Query(ctx, `
SELECT uri, manifest, handler, max_retries, wait_before_retry, num_retries, state
FROM resolver_tasks
WHERE state = $1`, int32(TaskQueued))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.URI, &t.Manifest, &t.Handler, &t.MaxRetries,
			&t.WaitBeforeRetry, &t.NumRetries, &t.State); err != nil {
			return nil, errors.WithStack(err)
		}
		tasks = append(tasks, t)
	}
	return tasks, errors.WithStack(rows.Err())
}

// AddTask durably inserts a new task. It returns false, without error,
// if a task with the same (uri, manifest) already exists: duplicate
// submissions are silently dropped rather than re-queued or versioned.
func (s *Store) AddTask(ctx context.Context, t Task) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
INSERT INTO resolver_tasks (uri, manifest, handler, max_retries, wait_before_retry, num_retries, state)
VALUES ($1, $2, $3, $4, $5, 0, $6)
ON CONFLICT (uri, manifest) DO NOTHING`,
		t.URI, t.Manifest, t.Handler, t.MaxRetries, t.WaitBeforeRetry, int32(TaskQueued))
	if err != nil {
		return false, errors.WithStack(err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateRetryCounter persists the task's current retry count.
func (s *Store) UpdateRetryCounter(ctx context.Context, t Task) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE resolver_tasks SET num_retries = $1 WHERE uri = $2 AND manifest = $3`,
		t.NumRetries, t.URI, t.Manifest)
	return errors.WithStack(err)
}

// UpdateTaskState persists the task's current state.
func (s *Store) UpdateTaskState(ctx context.Context, t Task, state TaskState) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE resolver_tasks SET state = $1 WHERE uri = $2 AND manifest = $3`,
		int32(state), t.URI, t.Manifest)
	return errors.WithStack(err)
}
