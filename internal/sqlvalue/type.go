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

// Package sqlvalue implements the closed set of column types the sink
// understands, and the conversion between the textual representation
// reported by the catalog and a typed, parameter-bindable Go value.
package sqlvalue

import (
	"strings"

	"github.com/pkg/errors"
)

// Type is the closed set of column types a target table's columns may
// carry. Several catalog-reported type names collapse onto the same
// Type: the aliasing happens once, in ParseType, so the rest of the sink
// never has to reason about dialect spelling.
type Type int

// The supported column types. Ordering has no meaning beyond grouping
// related kinds together.
const (
	Unknown Type = iota
	Boolean
	SmallInt
	Integer
	BigInt
	Float
	Double
	Numeric
	Text
	Binary
	Date
	Time
	Timestamp
	Interval
)

// ErrIntervalUnsupported is returned by ParseType when a catalog column
// is declared as an interval. Interval columns cannot be represented as
// a scalar Go value we can safely render or bind, so tables carrying one
// are rejected at load time instead of failing on first write.
var ErrIntervalUnsupported = errors.New("interval columns are not supported")

// ParseType maps a catalog-reported type name (as returned by
// information_schema.columns.data_type) onto a Type, collapsing
// known aliases.
func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bool", "boolean":
		return Boolean, nil
	case "int2", "smallint", "smallserial":
		return SmallInt, nil
	case "int4", "int", "integer", "serial":
		return Integer, nil
	case "int8", "bigint", "bigserial":
		return BigInt, nil
	case "float4", "real":
		return Float, nil
	case "float8", "double precision":
		return Double, nil
	case "decimal", "numeric":
		return Numeric, nil
	case "text", "varchar", "character varying", "char", "character",
		"tinytext", "mediumtext", "longtext":
		return Text, nil
	case "binary", "bytea", "tinyblob", "blob", "mediumblob", "longblob",
		"varbinary", "bit":
		return Binary, nil
	case "date":
		return Date, nil
	case "time", "time without time zone":
		return Time, nil
	case "timestamp", "timestamp without time zone", "timestamptz",
		"timestamp with time zone":
		return Timestamp, nil
	case "interval":
		return Interval, errors.WithStack(ErrIntervalUnsupported)
	default:
		return Unknown, errors.Errorf("unrecognized column type %q", name)
	}
}

// String implements fmt.Stringer.
func (t Type) String() string {
	switch t {
	case Boolean:
		return "boolean"
	case SmallInt:
		return "smallint"
	case Integer:
		return "integer"
	case BigInt:
		return "bigint"
	case Float:
		return "float"
	case Double:
		return "double"
	case Numeric:
		return "numeric"
	case Text:
		return "text"
	case Binary:
		return "binary"
	case Date:
		return "date"
	case Time:
		return "time"
	case Timestamp:
		return "timestamp"
	case Interval:
		return "interval"
	default:
		return "unknown"
	}
}
