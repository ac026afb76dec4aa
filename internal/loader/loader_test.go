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

package loader_test

import (
	"testing"

	"github.com/eureka-network/sink-pg/internal/loader"
	"github.com/eureka-network/sink-pg/internal/sqlvalue"
	"github.com/stretchr/testify/require"
)

func TestValidateCursorTableColumns(t *testing.T) {
	good := map[string]sqlvalue.Type{
		"id":        sqlvalue.Text,
		"cursor":    sqlvalue.Text,
		"block_num": sqlvalue.BigInt,
		"block_id":  sqlvalue.Text,
	}
	cat := &loader.TableCatalog{Columns: good, PrimaryKey: "id"}
	require.NoError(t, loader.ValidateCursorTableForTest(cat))
}

func TestValidateCursorTableRejectsWrongColumnCount(t *testing.T) {
	cat := &loader.TableCatalog{
		Columns: map[string]sqlvalue.Type{
			"id":     sqlvalue.Text,
			"cursor": sqlvalue.Text,
		},
		PrimaryKey: "id",
	}
	err := loader.ValidateCursorTableForTest(cat)
	require.ErrorIs(t, err, loader.ErrInvalidCursorTable)
}

func TestValidateCursorTableRejectsWrongPrimaryKey(t *testing.T) {
	good := map[string]sqlvalue.Type{
		"id":        sqlvalue.Text,
		"cursor":    sqlvalue.Text,
		"block_num": sqlvalue.BigInt,
		"block_id":  sqlvalue.Text,
	}
	cat := &loader.TableCatalog{Columns: good, PrimaryKey: "cursor"}
	err := loader.ValidateCursorTableForTest(cat)
	require.ErrorIs(t, err, loader.ErrInvalidCursorTable)
}

func TestValidateCursorTableRejectsWrongBlockNumType(t *testing.T) {
	bad := map[string]sqlvalue.Type{
		"id":        sqlvalue.Text,
		"cursor":    sqlvalue.Text,
		"block_num": sqlvalue.Text,
		"block_id":  sqlvalue.Text,
	}
	cat := &loader.TableCatalog{Columns: bad, PrimaryKey: "id"}
	err := loader.ValidateCursorTableForTest(cat)
	require.ErrorIs(t, err, loader.ErrInvalidCursorTable)
}
