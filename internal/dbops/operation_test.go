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

package dbops_test

import (
	"testing"

	"github.com/eureka-network/sink-pg/internal/dbops"
	"github.com/eureka-network/sink-pg/internal/sqlvalue"
	"github.com/stretchr/testify/require"
)

func TestBuildKeepsColumnsAndArgsAligned(t *testing.T) {
	test, err := sqlvalue.Parse(sqlvalue.Text, "test")
	require.NoError(t, err)
	state, err := sqlvalue.Parse(sqlvalue.Integer, "1")
	require.NoError(t, err)

	op := dbops.Operation{
		Kind:   dbops.Insert,
		Schema: "manifest",
		Table:  "table",
		Columns: map[string]sqlvalue.Value{
			"test":  test,
			"state": state,
		},
	}
	query, args, err := op.Build()
	require.NoError(t, err)
	require.Equal(t, "INSERT INTO manifest.table (state, test) VALUES ($1, $2)", query)
	require.Equal(t, []any{int64(1), "test"}, args)
}

func TestBuildRejectsUpdateAndDelete(t *testing.T) {
	for _, k := range []dbops.Kind{dbops.Update, dbops.Delete} {
		_, _, err := dbops.Operation{Kind: k, Columns: map[string]sqlvalue.Value{}}.Build()
		require.ErrorIs(t, err, dbops.ErrUnimplemented)
	}
}

func TestBuildRejectsEmptyOperation(t *testing.T) {
	_, _, err := dbops.Operation{Kind: dbops.Insert}.Build()
	require.Error(t, err)
}
