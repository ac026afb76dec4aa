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

// Package parserhost runs one sandboxed wasm module per manifest,
// dispatching downloaded off-chain content to it and collecting the
// rows it produces.
//
// The messages exchanged with the wasm module follow the wire shapes a
// .proto-generated OffchainDataContent/OffchainDataRecords pair would
// produce, but are hand-encoded with protowire's low-level primitives:
// compiling .proto files is out of scope for this sink, and protowire
// is the one piece of the full protobuf-go stack that does not require
// codegen.
package parserhost

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/pkg/errors"
)

// content field numbers.
const (
	fieldContentURI      = 1
	fieldContentManifest = 2
	fieldContentBody     = 3
)

// records field numbers.
const (
	fieldRecordsURI      = 1
	fieldRecordsManifest = 2
	fieldRecordsEntries  = 3
)

// record field numbers.
const (
	fieldRecordName   = 1
	fieldRecordFields = 2
)

// field field numbers.
const (
	fieldFieldName  = 1
	fieldFieldValue = 2
)

// value oneof field numbers, matching substreams-sink's Value.Typed oneof.
const (
	valString     = 1
	valInt32      = 2
	valInt64      = 3
	valUint32     = 4
	valUint64     = 5
	valBool       = 6
	valBytes      = 7
	valBigdecimal = 8
	valOffchain   = 9
	valArray      = 10
)

// Content is the message passed into the wasm handler function.
type Content struct {
	URI      string
	Manifest string
	Body     string
}

// EncodeContent serializes c using length-delimited protobuf wire
// primitives.
func EncodeContent(c Content) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, fieldContentURI, protowire.BytesType)
	buf = protowire.AppendString(buf, c.URI)
	buf = protowire.AppendTag(buf, fieldContentManifest, protowire.BytesType)
	buf = protowire.AppendString(buf, c.Manifest)
	buf = protowire.AppendTag(buf, fieldContentBody, protowire.BytesType)
	buf = protowire.AppendString(buf, c.Body)
	return buf
}

// FieldValue is the decoded oneof value of one record field. Exactly
// one of the typed accessors is meaningful, selected by Kind.
type FieldValue struct {
	Kind       int32
	String     string
	Int64      int64
	Uint64     uint64
	Bool       bool
	Bytes      []byte
	Bigdecimal string
}

// Unsupported reports whether this value's kind cannot be written to a
// relational column (Offchaindata, Array): the source rejects both
// outright rather than attempting a lossy representation.
func (v FieldValue) Unsupported() bool {
	return v.Kind == valOffchain || v.Kind == valArray
}

// Field is one column name/value pair within a Record.
type Field struct {
	Name  string
	Value FieldValue
}

// Record is one row the wasm module wants written to `record` under
// `manifest`.
type Record struct {
	Table  string
	Fields []Field
}

// Records is the message the wasm module's `output` host import
// receives.
type Records struct {
	URI      string
	Manifest string
	Records  []Record
}

// DecodeRecords parses buf as a Records message.
func DecodeRecords(buf []byte) (Records, error) {
	var out Records
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return Records{}, errors.WithStack(protowire.ParseError(n))
		}
		buf = buf[n:]

		switch num {
		case fieldRecordsURI:
			s, n, err := consumeString(buf, typ)
			if err != nil {
				return Records{}, err
			}
			out.URI, buf = s, buf[n:]
		case fieldRecordsManifest:
			s, n, err := consumeString(buf, typ)
			if err != nil {
				return Records{}, err
			}
			out.Manifest, buf = s, buf[n:]
		case fieldRecordsEntries:
			inner, n, err := consumeBytes(buf, typ)
			if err != nil {
				return Records{}, err
			}
			rec, err := decodeRecord(inner)
			if err != nil {
				return Records{}, err
			}
			out.Records = append(out.Records, rec)
			buf = buf[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return Records{}, errors.WithStack(protowire.ParseError(n))
			}
			buf = buf[n:]
		}
	}
	return out, nil
}

func decodeRecord(buf []byte) (Record, error) {
	var rec Record
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return Record{}, errors.WithStack(protowire.ParseError(n))
		}
		buf = buf[n:]

		switch num {
		case fieldRecordName:
			s, n, err := consumeString(buf, typ)
			if err != nil {
				return Record{}, err
			}
			rec.Table, buf = s, buf[n:]
		case fieldRecordFields:
			inner, n, err := consumeBytes(buf, typ)
			if err != nil {
				return Record{}, err
			}
			f, err := decodeField(inner)
			if err != nil {
				return Record{}, err
			}
			rec.Fields = append(rec.Fields, f)
			buf = buf[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return Record{}, errors.WithStack(protowire.ParseError(n))
			}
			buf = buf[n:]
		}
	}
	return rec, nil
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
		case fieldFieldValue:
			inner, n, err := consumeBytes(buf, typ)
			if err != nil {
				return Field{}, err
			}
			v, err := decodeValue(inner)
			if err != nil {
				return Field{}, err
			}
			f.Value, buf = v, buf[n:]
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

func decodeValue(buf []byte) (FieldValue, error) {
	num, typ, n := protowire.ConsumeTag(buf)
	if n < 0 {
		return FieldValue{}, errors.WithStack(protowire.ParseError(n))
	}
	buf = buf[n:]

	v := FieldValue{Kind: int32(num)}
	switch num {
	case valString, valBigdecimal:
		s, _, err := consumeString(buf, typ)
		if err != nil {
			return FieldValue{}, err
		}
		if num == valString {
			v.String = s
		} else {
			v.Bigdecimal = s
		}
	case valInt32, valInt64, valUint32, valUint64, valBool:
		if typ != protowire.VarintType {
			return FieldValue{}, errors.New("expected varint field")
		}
		u, n := protowire.ConsumeVarint(buf)
		if n < 0 {
			return FieldValue{}, errors.WithStack(protowire.ParseError(n))
		}
		switch num {
		case valInt32, valInt64:
			v.Int64 = int64(u)
		case valUint32, valUint64:
			v.Uint64 = u
		case valBool:
			v.Bool = u != 0
		}
	case valBytes:
		b, _, err := consumeBytes(buf, typ)
		if err != nil {
			return FieldValue{}, err
		}
		v.Bytes = append([]byte(nil), b...)
	case valOffchain, valArray:
		// Unsupported kinds: the payload is not decoded further, the
		// caller rejects the field via FieldValue.Unsupported.
	default:
		return FieldValue{}, errors.Errorf("unknown value kind %d", num)
	}
	return v, nil
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
