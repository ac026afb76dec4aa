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

package parserhost_test

import (
	"testing"

	"github.com/eureka-network/sink-pg/internal/parserhost"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestEncodeContentRoundTripsThroughManualDecode(t *testing.T) {
	msg := parserhost.EncodeContent(parserhost.Content{
		URI:      "ipfs://abc",
		Manifest: "tokens",
		Body:     `{"name":"test"}`,
	})

	var uri, manifest, body string
	buf := msg
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		require.Greater(t, n, 0)
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeString(buf)
			require.Greater(t, n, 0)
			uri, buf = v, buf[n:]
		case 2:
			v, n := protowire.ConsumeString(buf)
			require.Greater(t, n, 0)
			manifest, buf = v, buf[n:]
		case 3:
			v, n := protowire.ConsumeString(buf)
			require.Greater(t, n, 0)
			body, buf = v, buf[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			require.GreaterOrEqual(t, n, 0)
			buf = buf[n:]
		}
	}
	require.Equal(t, "ipfs://abc", uri)
	require.Equal(t, "tokens", manifest)
	require.Equal(t, `{"name":"test"}`, body)
}

func TestDecodeRecordsRejectsUnsupportedFieldValue(t *testing.T) {
	// Build one Records message containing one Record with one Field
	// whose value is an Array (kind 10), by hand.
	var arrayValue []byte
	arrayValue = protowire.AppendTag(arrayValue, 10, protowire.BytesType)
	arrayValue = protowire.AppendString(arrayValue, "")

	var field []byte
	field = protowire.AppendTag(field, 1, protowire.BytesType)
	field = protowire.AppendString(field, "tags")
	field = protowire.AppendTag(field, 2, protowire.BytesType)
	field = protowire.AppendBytes(field, arrayValue)

	var record []byte
	record = protowire.AppendTag(record, 1, protowire.BytesType)
	record = protowire.AppendString(record, "items")
	record = protowire.AppendTag(record, 2, protowire.BytesType)
	record = protowire.AppendBytes(record, field)

	var records []byte
	records = protowire.AppendTag(records, 3, protowire.BytesType)
	records = protowire.AppendBytes(records, record)

	decoded, err := parserhost.DecodeRecords(records)
	require.NoError(t, err)
	require.Len(t, decoded.Records, 1)
	require.Len(t, decoded.Records[0].Fields, 1)
	require.True(t, decoded.Records[0].Fields[0].Value.Unsupported())
}
