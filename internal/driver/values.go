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

package driver

import (
	"strconv"

	"github.com/eureka-network/sink-pg/internal/sqlvalue"
	"github.com/eureka-network/sink-pg/internal/stream"
	"github.com/pkg/errors"
)

// errUnsupportedFieldValue is returned for Value kinds this sink
// cannot faithfully represent as a relational column.
var errUnsupportedFieldValue = errors.New("field value kind is not representable as a column")

const maxInt64 = uint64(1<<63 - 1)
const maxInt32 = uint32(1<<31 - 1)

// fieldValueToSQLValue converts one decoded stream.Value into the
// sqlvalue.Value the loader buffers. Unsigned values are range-checked
// before reinterpretation rather than silently wrapped on overflow.
func fieldValueToSQLValue(v stream.Value) (sqlvalue.Value, error) {
	switch v.Kind {
	case stream.ValueInt32:
		return sqlvalue.Parse(sqlvalue.Integer, strconv.FormatInt(int64(v.Int32), 10))
	case stream.ValueUint32:
		if v.Uint32 > maxInt32 {
			return sqlvalue.Value{}, errors.Errorf("uint32 value %d overflows signed integer", v.Uint32)
		}
		return sqlvalue.Parse(sqlvalue.Integer, strconv.FormatInt(int64(v.Uint32), 10))
	case stream.ValueInt64:
		return sqlvalue.Parse(sqlvalue.BigInt, strconv.FormatInt(v.Int64, 10))
	case stream.ValueUint64:
		if v.Uint64 > maxInt64 {
			return sqlvalue.Value{}, errors.Errorf("uint64 value %d overflows signed bigint", v.Uint64)
		}
		return sqlvalue.Parse(sqlvalue.BigInt, strconv.FormatInt(int64(v.Uint64), 10))
	case stream.ValueBigdecimal:
		return sqlvalue.Parse(sqlvalue.Numeric, v.Bigdecimal)
	case stream.ValueBigint:
		return sqlvalue.Parse(sqlvalue.BigInt, v.Bigint)
	case stream.ValueString:
		return sqlvalue.Parse(sqlvalue.Text, v.String)
	case stream.ValueBytes:
		return sqlvalue.Parse(sqlvalue.Binary, string(v.Bytes))
	case stream.ValueBool:
		if v.Bool {
			return sqlvalue.Parse(sqlvalue.Boolean, "true")
		}
		return sqlvalue.Parse(sqlvalue.Boolean, "false")
	case stream.ValueOffchaindata:
		return sqlvalue.Parse(sqlvalue.Text, v.Offchaindata.URI)
	case stream.ValueArray:
		return sqlvalue.Value{}, errors.WithStack(errUnsupportedFieldValue)
	default:
		return sqlvalue.Value{}, errors.Wrapf(errUnsupportedFieldValue, "kind %d", v.Kind)
	}
}
