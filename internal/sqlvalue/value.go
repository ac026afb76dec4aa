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

package sqlvalue

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Value is a typed column value, ready either to be rendered as a SQL
// literal for diagnostics or bound as a query parameter.
type Value struct {
	Type Type
	// raw holds the parsed Go representation: bool, int64, float64,
	// string (for Numeric/Text/Date/Time/Timestamp), or []byte (Binary).
	raw any
}

// Parse converts the textual representation of a column value, as
// carried on the wire, into a typed Value. Parse never renders SQL: it
// only validates that text is well-formed for kind.
func Parse(kind Type, text string) (Value, error) {
	switch kind {
	case Boolean:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, errors.Wrapf(err, "parsing boolean %q", text)
		}
		return Value{Type: kind, raw: b}, nil
	case SmallInt, Integer, BigInt:
		bitSize := 64
		switch kind {
		case SmallInt:
			bitSize = 16
		case Integer:
			bitSize = 32
		}
		n, err := strconv.ParseInt(text, 10, bitSize)
		if err != nil {
			return Value{}, errors.Wrapf(err, "parsing integer %q", text)
		}
		return Value{Type: kind, raw: n}, nil
	case Float, Double:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, errors.Wrapf(err, "parsing float %q", text)
		}
		return Value{Type: kind, raw: f}, nil
	case Numeric:
		// Numeric is kept as its canonical decimal string: converting
		// through float64 would silently lose precision.
		if _, err := strconv.ParseFloat(text, 64); err != nil {
			return Value{}, errors.Wrapf(err, "parsing numeric %q", text)
		}
		return Value{Type: kind, raw: text}, nil
	case Text:
		return Value{Type: kind, raw: text}, nil
	case Date, Time, Timestamp:
		layout := "2006-01-02"
		switch kind {
		case Time:
			layout = "15:04:05"
		case Timestamp:
			layout = "2006-01-02 15:04:05"
		}
		if _, err := time.Parse(layout, text); err != nil {
			return Value{}, errors.Wrapf(err, "parsing %s %q", kind, text)
		}
		return Value{Type: kind, raw: text}, nil
	case Binary:
		return Value{Type: kind, raw: []byte(text)}, nil
	case Interval:
		return Value{}, errors.WithStack(ErrIntervalUnsupported)
	default:
		return Value{}, errors.Errorf("cannot parse value of type %s", kind)
	}
}

// Arg returns the Go value to pass as a positional query argument to a
// parameter-bound statement. This is the only path writes take: no
// caller should ever format a Value into a query string directly.
func (v Value) Arg() any {
	return v.raw
}

// RenderSQLLiteral renders the value as a SQL literal, for diagnostics
// and test assertions only. Binary values are rendered as a bracketed
// list of decimal byte values, matching the source renderer's choice
// over a hex literal.
func (v Value) RenderSQLLiteral() (string, error) {
	switch v.Type {
	case Boolean:
		if v.raw.(bool) {
			return "true", nil
		}
		return "false", nil
	case SmallInt, Integer, BigInt:
		return strconv.FormatInt(v.raw.(int64), 10), nil
	case Float, Double:
		return strconv.FormatFloat(v.raw.(float64), 'g', -1, 64), nil
	case Numeric:
		return v.raw.(string), nil
	case Text:
		return quoteSQLString(v.raw.(string)), nil
	case Binary:
		b := v.raw.([]byte)
		parts := make([]string, len(b))
		for i, c := range b {
			parts[i] = strconv.Itoa(int(c))
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case Date:
		return quoteSQLString(v.raw.(string)), nil
	case Time:
		return quoteSQLString(v.raw.(string)), nil
	case Timestamp:
		return quoteSQLString(v.raw.(string)), nil
	case Interval:
		return "", errors.WithStack(ErrIntervalUnsupported)
	default:
		return "", errors.Errorf("cannot render value of type %s", v.Type)
	}
}

func quoteSQLString(s string) string {
	return fmt.Sprintf("'%s'", strings.ReplaceAll(s, "'", "''"))
}
