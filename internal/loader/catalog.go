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

// Package loader materializes buffered row changes into the target
// schema and maintains the per-output cursor checkpoint, transactionally.
package loader

import (
	"context"

	"github.com/eureka-network/sink-pg/internal/sqlvalue"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

// TableCatalog is one target table's column types and primary key, as
// introspected from the database's own catalog.
type TableCatalog struct {
	Columns    map[string]sqlvalue.Type
	PrimaryKey string
}

// Querier is implemented by pgxpool.Pool, pgxpool.Conn and pgx.Tx. It
// mirrors the teacher's StagingQuerier interface, narrowed to the calls
// this package issues.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// loadTableNamesQuery enumerates every column of every table in schema.
const loadTableNamesQuery = `
SELECT
    table_name,
    column_name,
    data_type
FROM information_schema.columns
WHERE table_schema = $1
ORDER BY table_name, column_name`

// primaryKeyQuery returns the primary key column(s) of one table.
const primaryKeyQuery = `
SELECT a.attname
FROM pg_index i
JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
WHERE i.indrelid = ($1 || '.' || $2)::regclass
AND i.indisprimary`

// loadCatalog introspects every table in schema, validating the
// "cursors" table's shape along the way.
func loadCatalog(ctx context.Context, q Querier, schema string) (map[string]*TableCatalog, error) {
	rows, err := q.Query(ctx, loadTableNamesQuery, schema)
	if err != nil {
		return nil, errors.Wrap(err, "listing columns")
	}
	defer rows.Close()

	tables := make(map[string]*TableCatalog)
	for rows.Next() {
		var tableName, columnName, dataType string
		if err := rows.Scan(&tableName, &columnName, &dataType); err != nil {
			return nil, errors.WithStack(err)
		}
		typ, err := sqlvalue.ParseType(dataType)
		if err != nil {
			return nil, errors.Wrapf(err, "table %s column %s", tableName, columnName)
		}
		t, ok := tables[tableName]
		if !ok {
			t = &TableCatalog{Columns: map[string]sqlvalue.Type{}}
			tables[tableName] = t
		}
		t.Columns[columnName] = typ
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	for name, t := range tables {
		pk, err := primaryKeyColumns(ctx, q, schema, name)
		if err != nil {
			return nil, errors.Wrapf(err, "primary key of %s", name)
		}
		if len(pk) == 0 {
			return nil, errors.Errorf("table %s has no primary key", name)
		}
		// Only the first primary key column is tracked, matching the
		// source's documented single-column assumption.
		t.PrimaryKey = pk[0]

		if name == CursorTableName {
			if err := validateCursorTable(t); err != nil {
				return nil, err
			}
		}
	}

	return tables, nil
}

func primaryKeyColumns(ctx context.Context, q Querier, schema, table string) ([]string, error) {
	rows, err := q.Query(ctx, primaryKeyQuery, schema, table)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.WithStack(err)
		}
		cols = append(cols, name)
	}
	return cols, errors.WithStack(rows.Err())
}

// CursorTableName is the table that holds the per-output checkpoint.
const CursorTableName = "cursors"

// ErrInvalidCursorTable is returned when an existing "cursors" table
// does not have exactly the shape this sink requires.
var ErrInvalidCursorTable = errors.New("cursors table has an unexpected shape")

func validateCursorTable(t *TableCatalog) error {
	if len(t.Columns) != 4 {
		return errors.WithStack(ErrInvalidCursorTable)
	}
	want := map[string]sqlvalue.Type{
		"id":        sqlvalue.Text,
		"cursor":    sqlvalue.Text,
		"block_num": sqlvalue.BigInt,
		"block_id":  sqlvalue.Text,
	}
	for name, typ := range want {
		got, ok := t.Columns[name]
		if !ok {
			return errors.Wrapf(ErrInvalidCursorTable, "missing column %s", name)
		}
		if got != typ {
			return errors.Wrapf(ErrInvalidCursorTable, "column %s has type %s, want %s", name, got, typ)
		}
	}
	if t.PrimaryKey != "id" {
		return errors.Wrapf(ErrInvalidCursorTable, "primary key is %s, want id", t.PrimaryKey)
	}
	return nil
}
