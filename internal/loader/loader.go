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
	"context"
	"fmt"
	"os"
	"time"

	"github.com/eureka-network/sink-pg/internal/dbops"
	"github.com/eureka-network/sink-pg/internal/sqlvalue"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Cursor identifies how far one output module's stream has been
// consumed.
type Cursor struct {
	Value    string
	BlockNum int64
	BlockID  string
}

// Pool is the slice of *pgxpool.Pool the loader needs: statement
// execution plus transactions. Narrowing to an interface lets tests
// exercise Flush against pgxmock instead of a live database.
type Pool interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Loader buffers row operations for one target schema and flushes them,
// together with a cursor checkpoint, inside a single transaction.
type Loader struct {
	pool    Pool
	schema  string
	buf     *buffer
	tables  map[string]*TableCatalog
	metrics *loaderMetrics
}

// New returns a Loader bound to schema. LoadTables must be called
// before Insert or Flush.
func New(pool Pool, schema string) *Loader {
	return &Loader{
		pool:    pool,
		schema:  schema,
		buf:     newBuffer(),
		metrics: newLoaderMetrics(),
	}
}

// cursorsTable returns the cursors table name qualified with this
// Loader's schema, so it can never resolve against the connection's
// default search_path instead.
func (l *Loader) cursorsTable() string {
	return l.schema + "." + CursorTableName
}

// SetupSchema ensures the target schema exists, applies the
// user-provided DDL file, then ensures the cursors table exists.
func (l *Loader) SetupSchema(ctx context.Context, ddlPath string) error {
	if _, err := l.pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", l.schema)); err != nil {
		return errors.Wrap(err, "creating schema")
	}

	ddl, err := os.ReadFile(ddlPath)
	if err != nil {
		return errors.Wrap(err, "reading schema file")
	}
	if _, err := l.pool.Exec(ctx, string(ddl)); err != nil {
		return errors.Wrap(err, "applying schema file")
	}
	_, err = l.pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id        TEXT NOT NULL CONSTRAINT cursors_pk PRIMARY KEY,
	cursor    TEXT,
	block_num BIGINT,
	block_id  TEXT
)`, l.cursorsTable()))
	return errors.Wrap(err, "creating cursors table")
}

// LoadTables introspects the schema's tables, validating the cursors
// table's shape.
func (l *Loader) LoadTables(ctx context.Context) error {
	tables, err := loadCatalog(ctx, l.pool, l.schema)
	if err != nil {
		return err
	}
	l.tables = tables
	return nil
}

// HasTable reports whether table is known to this Loader.
func (l *Loader) HasTable(table string) bool {
	_, ok := l.tables[table]
	return ok
}

// PrimaryKeyColumn returns the primary key column name of table.
func (l *Loader) PrimaryKeyColumn(table string) (string, bool) {
	t, ok := l.tables[table]
	if !ok {
		return "", false
	}
	return t.PrimaryKey, true
}

// Insert buffers an insert operation for table, keyed by pkValue.
// pkValue is parsed into the table's primary-key column type and
// merged into data under that column name before the operation is
// built. Returns ErrPrimaryKeyAlreadyScheduled, without mutating the
// buffer, if a pending operation already exists for (table, pkValue).
func (l *Loader) Insert(table, pkValue string, data map[string]sqlvalue.Value) error {
	t, ok := l.tables[table]
	if !ok {
		return errors.Errorf("insert into unknown table %s", table)
	}

	pkType, ok := t.Columns[t.PrimaryKey]
	if !ok {
		return errors.Errorf("table %s has no catalog entry for its primary key %s", table, t.PrimaryKey)
	}
	pkVal, err := sqlvalue.Parse(pkType, pkValue)
	if err != nil {
		return errors.Wrapf(err, "parsing primary key value for %s", table)
	}

	columns := make(map[string]sqlvalue.Value, len(data)+1)
	for name, v := range data {
		columns[name] = v
	}
	columns[t.PrimaryKey] = pkVal

	op := dbops.Operation{
		Kind:    dbops.Insert,
		Schema:  l.schema,
		Table:   table,
		Columns: columns,
	}
	return l.buf.insert(table, pkValue, op)
}

// BufferedCount returns the number of distinct rows currently buffered.
func (l *Loader) BufferedCount() int {
	return l.buf.len()
}

// GetCursor returns the last-checkpointed cursor for outputModuleHash.
// The second return value is false if no cursor has been recorded yet.
func (l *Loader) GetCursor(ctx context.Context, outputModuleHash string) (Cursor, bool, error) {
	var c Cursor
	row := l.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT cursor, block_num, block_id FROM %s WHERE id = $1`, l.cursorsTable()), outputModuleHash)
	if err := row.Scan(&c.Value, &c.BlockNum, &c.BlockID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cursor{}, false, nil
		}
		return Cursor{}, false, errors.WithStack(err)
	}
	return c, true, nil
}

// Flush applies every buffered operation and upserts the cursor
// checkpoint inside one read-write transaction. On any error the
// transaction is rolled back and the buffer is left untouched, so a
// subsequent Flush retries the same batch of rows.
func (l *Loader) Flush(ctx context.Context, outputModuleHash string, cursor Cursor) (err error) {
	start := time.Now()
	defer func() {
		l.metrics.observe(time.Since(start), err)
	}()

	snapshot := l.buf.snapshot()

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "beginning flush transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.WithError(rbErr).Warn("rollback after failed flush also failed")
			}
		}
	}()

	rows := 0
	for table, ops := range snapshot {
		for _, op := range ops {
			query, args, buildErr := op.Build()
			if buildErr != nil {
				return errors.Wrapf(buildErr, "building statement for %s", table)
			}
			if _, execErr := tx.Exec(ctx, query, args...); execErr != nil {
				return errors.Wrapf(execErr, "executing statement for %s", table)
			}
			rows++
		}
	}

	if _, err = tx.Exec(ctx, fmt.Sprintf(`
INSERT INTO %s (id, cursor, block_num, block_id)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET cursor = $2, block_num = $3, block_id = $4`, l.cursorsTable()),
		outputModuleHash, cursor.Value, cursor.BlockNum, cursor.BlockID); err != nil {
		return errors.Wrap(err, "upserting cursor")
	}

	if err = tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "committing flush transaction")
	}

	l.buf.reset()
	log.WithFields(log.Fields{
		"output_module_hash": outputModuleHash,
		"rows":               rows,
		"block_num":          cursor.BlockNum,
	}).Debug("flushed buffered operations")
	return nil
}
