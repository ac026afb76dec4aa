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

// Package stream defines the message shapes the driver reads from the
// upstream gRPC transport. The transport client itself, and the
// substreams package/manifest machinery that produces these messages,
// are external collaborators consumed through the Client
// interface; this package only fixes the wire shapes and decodes them.
package stream

import "context"

// Clock identifies one block by id and height.
type Clock struct {
	ID     string
	Number uint64
}

// MapOutput is one named module's output payload for a block, still
// encoded as opaque protobuf bytes behind a type URL.
type MapOutput struct {
	Name     string
	TypeURL  string
	Value    []byte
}

// BlockScopedData is one message from the upstream stream: a block's
// clock, the cursor identifying the stream position immediately after
// this block, and every requested module's output for that block.
type BlockScopedData struct {
	Clock   Clock
	Cursor  string
	Outputs []MapOutput
}

// OperationKind mirrors the substreams database-change operation enum.
type OperationKind int32

// The operations a RecordChange can carry.
const (
	OperationUnset  OperationKind = 0
	OperationCreate OperationKind = 1
	OperationUpdate OperationKind = 2
	OperationDelete OperationKind = 3
)

// ValueKind selects which field of Value is meaningful.
type ValueKind int32

// The oneof cases of Value.
const (
	ValueUnset        ValueKind = 0
	ValueInt32        ValueKind = 1
	ValueUint32       ValueKind = 2
	ValueInt64        ValueKind = 3
	ValueUint64       ValueKind = 4
	ValueBigdecimal   ValueKind = 5
	ValueBigint       ValueKind = 6
	ValueString       ValueKind = 7
	ValueBytes        ValueKind = 8
	ValueBool         ValueKind = 9
	ValueArray        ValueKind = 10
	ValueOffchaindata ValueKind = 11
)

// Offchaindata describes one off-chain URI a field can point to, and
// the handling policy the resolver should apply to it.
type Offchaindata struct {
	URI             string
	Handler         string
	MaxRetries      int32
	WaitBeforeRetry int32
}

// Value is a tagged union over the field types a RecordChange can
// carry on the wire.
type Value struct {
	Kind         ValueKind
	Int32        int32
	Uint32       uint32
	Int64        int64
	Uint64       uint64
	Bigdecimal   string
	Bigint       string
	String       string
	Bytes        []byte
	Bool         bool
	Array        []Value
	Offchaindata Offchaindata
}

// Field is one named column within a RecordChange.
type Field struct {
	Name     string
	NewValue *Value
	OldValue *Value
}

// RecordChange is one row mutation: insert, update, or delete of one
// primary-keyed row of one table.
type RecordChange struct {
	Record    string
	ID        string
	Ordinal   uint64
	Operation OperationKind
	Fields    []Field
}

// RecordChanges is the decoded form of a MapOutput's Value bytes, for
// modules whose type URL identifies this sink's expected schema.
type RecordChanges struct {
	Changes []RecordChange
}

// Client is the out-of-scope gRPC transport collaborator: it yields a
// sequence of BlockScopedData messages starting from a persisted
// cursor, or from the beginning of the chain if cursor is empty.
type Client interface {
	Recv(ctx context.Context, cursor string) (<-chan BlockScopedData, <-chan error)
}
