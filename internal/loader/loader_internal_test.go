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
	"errors"
	"os"
	"testing"

	"github.com/eureka-network/sink-pg/internal/sqlvalue"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func testTables() map[string]*TableCatalog {
	return map[string]*TableCatalog{
		"t": {
			Columns: map[string]sqlvalue.Type{
				"id": sqlvalue.Text,
				"n":  sqlvalue.Integer,
			},
			PrimaryKey: "id",
		},
	}
}

func TestInsertRejectsDuplicatePrimaryKey(t *testing.T) {
	l := &Loader{buf: newBuffer(), schema: "public", tables: testTables(), metrics: newLoaderMetrics()}

	n, err := sqlvalue.Parse(sqlvalue.Integer, "3")
	require.NoError(t, err)

	require.NoError(t, l.Insert("t", "A", map[string]sqlvalue.Value{"n": n}))
	err = l.Insert("t", "A", map[string]sqlvalue.Value{"n": n})
	require.ErrorIs(t, err, ErrPrimaryKeyAlreadyScheduled)
	require.Equal(t, 1, l.BufferedCount())
}

func TestInsertRejectsUnknownTable(t *testing.T) {
	l := &Loader{buf: newBuffer(), schema: "public", tables: testTables(), metrics: newLoaderMetrics()}
	err := l.Insert("missing", "A", map[string]sqlvalue.Value{})
	require.Error(t, err)
}

func TestFlushAppliesBufferedRowsAndUpsertsCursor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	l := New(mock, "public")
	l.tables = testTables()

	n, err := sqlvalue.Parse(sqlvalue.Integer, "3")
	require.NoError(t, err)
	require.NoError(t, l.Insert("t", "A", map[string]sqlvalue.Value{"n": n}))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO public.t").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO public.cursors").
		WithArgs("module1", "x", int64(100), "b1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = l.Flush(context.Background(), "module1", Cursor{Value: "x", BlockNum: 100, BlockID: "b1"})
	require.NoError(t, err)
	require.Equal(t, 0, l.BufferedCount())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFlushQualifiesCursorsTableWithNonPublicSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	l := New(mock, "tenant_a")
	l.tables = testTables()

	n, err := sqlvalue.Parse(sqlvalue.Integer, "3")
	require.NoError(t, err)
	require.NoError(t, l.Insert("t", "A", map[string]sqlvalue.Value{"n": n}))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO tenant_a.t").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO tenant_a.cursors").
		WithArgs("module1", "x", int64(100), "b1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = l.Flush(context.Background(), "module1", Cursor{Value: "x", BlockNum: 100, BlockID: "b1"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetupSchemaCreatesSchemaAndQualifiesCursorsTable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	l := New(mock, "tenant_a")

	mock.ExpectExec("CREATE SCHEMA IF NOT EXISTS tenant_a").
		WillReturnResult(pgxmock.NewResult("CREATE SCHEMA", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS tenant_a").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS tenant_a.cursors").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	ddl := t.TempDir() + "/schema.sql"
	require.NoError(t, os.WriteFile(ddl, []byte("CREATE TABLE IF NOT EXISTS tenant_a.t (id TEXT PRIMARY KEY)"), 0o644))

	require.NoError(t, l.SetupSchema(context.Background(), ddl))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCursorQualifiesCursorsTable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	l := New(mock, "tenant_a")

	rows := pgxmock.NewRows([]string{"cursor", "block_num", "block_id"}).
		AddRow("x", int64(100), "b1")
	mock.ExpectQuery("SELECT cursor, block_num, block_id FROM tenant_a.cursors").
		WithArgs("module1").
		WillReturnRows(rows)

	c, ok, err := l.GetCursor(context.Background(), "module1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Cursor{Value: "x", BlockNum: 100, BlockID: "b1"}, c)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFlushLeavesBufferIntactOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	l := New(mock, "public")
	l.tables = testTables()

	n, err := sqlvalue.Parse(sqlvalue.Integer, "3")
	require.NoError(t, err)
	require.NoError(t, l.Insert("t", "A", map[string]sqlvalue.Value{"n": n}))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO public.t").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	_ = l.Flush(context.Background(), "module1", Cursor{Value: "x", BlockNum: 100, BlockID: "b1"})
	require.Equal(t, 1, l.BufferedCount())
}
