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

// Package dbops builds the parameter-bound statements that apply a
// single buffered row change to the target schema.
package dbops

import (
	"fmt"
	"sort"
	"strings"

	"github.com/eureka-network/sink-pg/internal/sqlvalue"
	"github.com/pkg/errors"
)

// Kind identifies the operation carried by a record change.
type Kind int

// The operation kinds a row change can carry. Only Insert is fully
// implemented: Update and Delete compile, and are rejected with
// ErrUnimplemented at Build time, since no SPEC_FULL.md scenario
// exercises either against this sink's append-only target schemas.
const (
	Insert Kind = iota
	Update
	Delete
)

// ErrUnimplemented is returned by Build for operation kinds the sink
// does not yet apply.
var ErrUnimplemented = errors.New("operation kind not implemented")

// Operation is one buffered row change: a table name plus the column
// values to write, keyed by column name.
type Operation struct {
	Kind    Kind
	Schema  string
	Table   string
	Columns map[string]sqlvalue.Value
}

// Build returns a parameter-bound INSERT statement and its positional
// arguments, in a stable column order.
//
// The source's equivalent (operation.rs's build_query) interpolated
// literals directly into the query string and, while assembling the
// column/value lists from the same map in two separate passes, dropped
// the first key off one of the two lists before joining them — so the
// column list and the value list could walk out of step whenever a
// table had more than one column. Building both lists from a single
// sorted pass, and binding every value as a parameter instead of a
// literal, fixes both the column/value misalignment and the SQL
// injection hazard in one pass.
func (o Operation) Build() (query string, args []any, err error) {
	if o.Kind != Insert {
		return "", nil, errors.WithStack(ErrUnimplemented)
	}
	if len(o.Columns) == 0 {
		return "", nil, errors.New("operation has no columns")
	}

	names := make([]string, 0, len(o.Columns))
	for name := range o.Columns {
		names = append(names, name)
	}
	sort.Strings(names)

	placeholders := make([]string, len(names))
	args = make([]any, len(names))
	for i, name := range names {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = o.Columns[name].Arg()
	}

	query = fmt.Sprintf(
		"INSERT INTO %s.%s (%s) VALUES (%s)",
		o.Schema, o.Table, strings.Join(names, ", "), strings.Join(placeholders, ", "),
	)
	return query, args, nil
}

// BuildLiteral renders the statement with inline SQL literals instead
// of bound parameters. It exists only for diagnostics and tests: no
// runtime code path executes a literal-rendered statement against the
// database.
func (o Operation) BuildLiteral() (string, error) {
	if o.Kind != Insert {
		return "", errors.WithStack(ErrUnimplemented)
	}
	names := make([]string, 0, len(o.Columns))
	for name := range o.Columns {
		names = append(names, name)
	}
	sort.Strings(names)

	literals := make([]string, len(names))
	for i, name := range names {
		lit, err := o.Columns[name].RenderSQLLiteral()
		if err != nil {
			return "", errors.Wrapf(err, "rendering column %s", name)
		}
		literals[i] = lit
	}

	return fmt.Sprintf(
		"INSERT INTO %s.%s (%s) VALUES (%s)",
		o.Schema, o.Table, strings.Join(names, ", "), strings.Join(literals, ", "),
	), nil
}
