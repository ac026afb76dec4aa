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
	"testing"

	"github.com/eureka-network/sink-pg/internal/sqlvalue"
	"github.com/eureka-network/sink-pg/internal/stream"
	"github.com/stretchr/testify/require"
)

func TestFieldValueToSQLValueInt32(t *testing.T) {
	v, err := fieldValueToSQLValue(stream.Value{Kind: stream.ValueInt32, Int32: -7})
	require.NoError(t, err)
	require.Equal(t, sqlvalue.Integer, v.Type)
	require.Equal(t, int64(-7), v.Arg())
}

func TestFieldValueToSQLValueUint32OverflowRejected(t *testing.T) {
	_, err := fieldValueToSQLValue(stream.Value{Kind: stream.ValueUint32, Uint32: 1<<31 + 5})
	require.Error(t, err)
}

func TestFieldValueToSQLValueUint64OverflowRejected(t *testing.T) {
	_, err := fieldValueToSQLValue(stream.Value{Kind: stream.ValueUint64, Uint64: 1 << 63})
	require.Error(t, err)
}

func TestFieldValueToSQLValueOffchaindataBecomesURIText(t *testing.T) {
	v, err := fieldValueToSQLValue(stream.Value{
		Kind:         stream.ValueOffchaindata,
		Offchaindata: stream.Offchaindata{URI: "ipfs://abc"},
	})
	require.NoError(t, err)
	require.Equal(t, sqlvalue.Text, v.Type)
	require.Equal(t, "ipfs://abc", v.Arg())
}

func TestFieldValueToSQLValueArrayRejected(t *testing.T) {
	_, err := fieldValueToSQLValue(stream.Value{Kind: stream.ValueArray})
	require.ErrorIs(t, err, errUnsupportedFieldValue)
}
