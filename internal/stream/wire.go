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

package stream

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// RecordChanges field numbers.
const (
	fieldChangesEntries = 1
)

// RecordChange field numbers.
const (
	fieldChangeRecord    = 1
	fieldChangeID        = 2
	fieldChangeOrdinal   = 3
	fieldChangeOperation = 4
	fieldChangeFields    = 5
)

// Field field numbers.
const (
	fieldFieldName     = 1
	fieldFieldNewValue = 2
	fieldFieldOldValue = 3
)

// Value field numbers, one per oneof case plus its selector.
const (
	fieldValueInt32        = 1
	fieldValueUint32       = 2
	fieldValueInt64        = 3
	fieldValueUint64       = 4
	fieldValueBigdecimal   = 5
	fieldValueBigint       = 6
	fieldValueString       = 7
	fieldValueBytes        = 8
	fieldValueBool         = 9
	fieldValueArray        = 10
	fieldValueOffchaindata = 11
)

// Offchaindata field numbers.
const (
	fieldOffchainURI             = 1
	fieldOffchainHandler         = 2
	fieldOffchainMaxRetries      = 3
	fieldOffchainWaitBeforeRetry = 4
)

// DecodeRecordChanges parses the Value bytes of a MapOutput whose type
// URL identifies this sink's expected schema.
func DecodeRecordChanges(buf []byte) (RecordChanges, error) {
	var out RecordChanges
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return RecordChanges{}, errors.WithStack(protowire.ParseError(n))
		}
		buf = buf[n:]

		switch num {
		case fieldChangesEntries:
			inner, n, err := consumeBytes(buf, typ)
			if err != nil {
				return RecordChanges{}, err
			}
			change, err := decodeRecordChange(inner)
			if err != nil {
				return RecordChanges{}, err
			}
			out.Changes = append(out.Changes, change)
			buf = buf[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return RecordChanges{}, errors.WithStack(protowire.ParseError(n))
			}
			buf = buf[n:]
		}
	}
	return out, nil
}

func decodeRecordChange(buf []byte) (RecordChange, error) {
	var c RecordChange
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return RecordChange{}, errors.WithStack(protowire.ParseError(n))
		}
		buf = buf[n:]

		switch num {
		case fieldChangeRecord:
			s, n, err := consumeString(buf, typ)
			if err != nil {
				return RecordChange{}, err
			}
			c.Record, buf = s, buf[n:]
		case fieldChangeID:
			s, n, err := consumeString(buf, typ)
			if err != nil {
				return RecordChange{}, err
			}
			c.ID, buf = s, buf[n:]
		case fieldChangeOrdinal:
			if typ != protowire.VarintType {
				return RecordChange{}, errors.New("expected varint ordinal")
			}
			u, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return RecordChange{}, errors.WithStack(protowire.ParseError(n))
			}
			c.Ordinal, buf = u, buf[n:]
		case fieldChangeOperation:
			if typ != protowire.VarintType {
				return RecordChange{}, errors.New("expected varint operation")
			}
			u, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return RecordChange{}, errors.WithStack(protowire.ParseError(n))
			}
			c.Operation, buf = OperationKind(u), buf[n:]
		case fieldChangeFields:
			inner, n, err := consumeBytes(buf, typ)
			if err != nil {
				return RecordChange{}, err
			}
			f, err := decodeField(inner)
			if err != nil {
				return RecordChange{}, err
			}
			c.Fields = append(c.Fields, f)
			buf = buf[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return RecordChange{}, errors.WithStack(protowire.ParseError(n))
			}
			buf = buf[n:]
		}
	}
	return c, nil
}

func decodeField(buf []byte) (Field, error) {
	var f Field
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return Field{}, errors.WithStack(protowire.ParseError(n))
		}
		buf = buf[n:]

		switch num {
		case fieldFieldName:
			s, n, err := consumeString(buf, typ)
			if err != nil {
				return Field{}, err
			}
			f.Name, buf = s, buf[n:]
		case fieldFieldNewValue:
			inner, n, err := consumeBytes(buf, typ)
			if err != nil {
				return Field{}, err
			}
			v, err := decodeValue(inner)
			if err != nil {
				return Field{}, err
			}
			f.NewValue, buf = &v, buf[n:]
		case fieldFieldOldValue:
			inner, n, err := consumeBytes(buf, typ)
			if err != nil {
				return Field{}, err
			}
			v, err := decodeValue(inner)
			if err != nil {
				return Field{}, err
			}
			f.OldValue, buf = &v, buf[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return Field{}, errors.WithStack(protowire.ParseError(n))
			}
			buf = buf[n:]
		}
	}
	return f, nil
}

func decodeValue(buf []byte) (Value, error) {
	num, typ, n := protowire.ConsumeTag(buf)
	if n < 0 {
		return Value{}, errors.WithStack(protowire.ParseError(n))
	}
	buf = buf[n:]

	v := Value{Kind: ValueKind(num)}
	switch num {
	case fieldValueInt32, fieldValueUint32, fieldValueInt64, fieldValueUint64, fieldValueBool:
		if typ != protowire.VarintType {
			return Value{}, errors.New("expected varint value")
		}
		u, n := protowire.ConsumeVarint(buf)
		if n < 0 {
			return Value{}, errors.WithStack(protowire.ParseError(n))
		}
		switch num {
		case fieldValueInt32:
			v.Int32 = int32(u)
		case fieldValueUint32:
			v.Uint32 = uint32(u)
		case fieldValueInt64:
			v.Int64 = int64(u)
		case fieldValueUint64:
			v.Uint64 = u
		case fieldValueBool:
			v.Bool = u != 0
		}
	case fieldValueBigdecimal, fieldValueBigint, fieldValueString:
		s, _, err := consumeString(buf, typ)
		if err != nil {
			return Value{}, err
		}
		switch num {
		case fieldValueBigdecimal:
			v.Bigdecimal = s
		case fieldValueBigint:
			v.Bigint = s
		case fieldValueString:
			v.String = s
		}
	case fieldValueBytes:
		b, _, err := consumeBytes(buf, typ)
		if err != nil {
			return Value{}, err
		}
		v.Bytes = append([]byte(nil), b...)
	case fieldValueArray:
		inner, _, err := consumeBytes(buf, typ)
		if err != nil {
			return Value{}, err
		}
		elems, err := decodeValueArray(inner)
		if err != nil {
			return Value{}, err
		}
		v.Array = elems
	case fieldValueOffchaindata:
		inner, _, err := consumeBytes(buf, typ)
		if err != nil {
			return Value{}, err
		}
		od, err := decodeOffchaindata(inner)
		if err != nil {
			return Value{}, err
		}
		v.Offchaindata = od
	default:
		return Value{}, errors.Errorf("unknown value kind %d", num)
	}
	return v, nil
}

// decodeValueArray treats the inner bytes as a sequence of
// length-delimited Value messages, each re-using field number 1.
func decodeValueArray(buf []byte) ([]Value, error) {
	var out []Value
	for len(buf) > 0 {
		_, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, errors.WithStack(protowire.ParseError(n))
		}
		buf = buf[n:]
		inner, n, err := consumeBytes(buf, typ)
		if err != nil {
			return nil, err
		}
		v, err := decodeValue(inner)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		buf = buf[n:]
	}
	return out, nil
}

func decodeOffchaindata(buf []byte) (Offchaindata, error) {
	var od Offchaindata
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return Offchaindata{}, errors.WithStack(protowire.ParseError(n))
		}
		buf = buf[n:]

		switch num {
		case fieldOffchainURI:
			s, n, err := consumeString(buf, typ)
			if err != nil {
				return Offchaindata{}, err
			}
			od.URI, buf = s, buf[n:]
		case fieldOffchainHandler:
			s, n, err := consumeString(buf, typ)
			if err != nil {
				return Offchaindata{}, err
			}
			od.Handler, buf = s, buf[n:]
		case fieldOffchainMaxRetries:
			if typ != protowire.VarintType {
				return Offchaindata{}, errors.New("expected varint max_retries")
			}
			u, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return Offchaindata{}, errors.WithStack(protowire.ParseError(n))
			}
			od.MaxRetries, buf = int32(u), buf[n:]
		case fieldOffchainWaitBeforeRetry:
			if typ != protowire.VarintType {
				return Offchaindata{}, errors.New("expected varint wait_before_retry")
			}
			u, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return Offchaindata{}, errors.WithStack(protowire.ParseError(n))
			}
			od.WaitBeforeRetry, buf = int32(u), buf[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return Offchaindata{}, errors.WithStack(protowire.ParseError(n))
			}
			buf = buf[n:]
		}
	}
	return od, nil
}

func consumeString(buf []byte, typ protowire.Type) (string, int, error) {
	b, n, err := consumeBytes(buf, typ)
	return string(b), n, err
}

func consumeBytes(buf []byte, typ protowire.Type) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, errors.New("expected length-delimited field")
	}
	b, n := protowire.ConsumeBytes(buf)
	if n < 0 {
		return nil, 0, errors.WithStack(protowire.ParseError(n))
	}
	return b, n, nil
}
