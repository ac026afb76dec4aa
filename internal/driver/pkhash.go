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
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2s"
)

// derivePrimaryKey computes the surrogate primary key for one record
// change: the lowercase hex digest of BLAKE2s-256 over a fixed
// domain-separated string built from the change's natural id and
// ordinal. This value, not the upstream id, is what gets written to
// the table's configured primary-key column.
func derivePrimaryKey(id string, ordinal uint64) string {
	domain := fmt.Sprintf("bin.node.cli.PRIMARY_KEY_INSERT_INTO<%s_%d>", id, ordinal)
	sum := blake2s.Sum256([]byte(domain))
	return hex.EncodeToString(sum[:])
}
