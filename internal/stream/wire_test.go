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

package stream_test

import (
	"testing"

	"github.com/eureka-network/sink-pg/internal/stream"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func appendValue(buf []byte, fieldNum int, build func([]byte) []byte) []byte {
	var v []byte
	v = build(v)
	buf = protowire.AppendTag(buf, protowire.Number(fieldNum), protowire.BytesType)
	buf = protowire.AppendBytes(buf, v)
	return buf
}

func TestDecodeRecordChangesParsesCreateWithIntField(t *testing.T) {
	var value []byte
	value = protowire.AppendTag(value, 1, protowire.VarintType) // Int32 oneof case
	value = protowire.AppendVarint(value, uint64(int32(3)))

	var field []byte
	field = protowire.AppendTag(field, 1, protowire.BytesType)
	field = protowire.AppendString(field, "n")
	field = appendValue(field, 2, func(b []byte) []byte { return append(b, value...) })

	var change []byte
	change = protowire.AppendTag(change, 1, protowire.BytesType)
	change = protowire.AppendString(change, "t")
	change = protowire.AppendTag(change, 2, protowire.BytesType)
	change = protowire.AppendString(change, "A")
	change = protowire.AppendTag(change, 3, protowire.VarintType)
	change = protowire.AppendVarint(change, 7)
	change = protowire.AppendTag(change, 4, protowire.VarintType)
	change = protowire.AppendVarint(change, uint64(stream.OperationCreate))
	change = protowire.AppendTag(change, 5, protowire.BytesType)
	change = protowire.AppendBytes(change, field)

	var buf []byte
	buf = protowire.AppendTag(buf, 1, protowire.BytesType)
	buf = protowire.AppendBytes(buf, change)

	decoded, err := stream.DecodeRecordChanges(buf)
	require.NoError(t, err)
	require.Len(t, decoded.Changes, 1)
	c := decoded.Changes[0]
	require.Equal(t, "t", c.Record)
	require.Equal(t, "A", c.ID)
	require.Equal(t, uint64(7), c.Ordinal)
	require.Equal(t, stream.OperationCreate, c.Operation)
	require.Len(t, c.Fields, 1)
	require.Equal(t, "n", c.Fields[0].Name)
	require.NotNil(t, c.Fields[0].NewValue)
	require.Equal(t, stream.ValueInt32, c.Fields[0].NewValue.Kind)
	require.Equal(t, int32(3), c.Fields[0].NewValue.Int32)
}
