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

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func complete() *Config {
	return &Config{
		FirehoseEndpoint:   "firehose.example.com:443",
		PackageFileName:    "pkg.spkg",
		ModuleName:         "db_out",
		StartBlock:         100,
		PostgresDSN:        "postgres://localhost/sink",
		Schema:             "public",
		SchemaFileName:     "schema.json",
		MaxConcurrentTasks: 48,
	}
}

func TestPreflightAcceptsCompleteConfig(t *testing.T) {
	require.NoError(t, complete().Preflight())
}

func TestPreflightRejectsMissingRequiredFields(t *testing.T) {
	c := complete()
	c.PostgresDSN = ""
	err := c.Preflight()
	require.Error(t, err)
	require.Contains(t, err.Error(), "postgresDSN")
}

func TestPreflightRequiresStartOrEndBlock(t *testing.T) {
	c := complete()
	c.StartBlock = 0
	c.EndBlock = 0
	require.Error(t, c.Preflight())
}

func TestPreflightAcceptsEndBlockOnlyRange(t *testing.T) {
	c := complete()
	c.StartBlock = 0
	c.EndBlock = 500
	require.NoError(t, c.Preflight())
}

func TestPreflightRejectsZeroConcurrency(t *testing.T) {
	c := complete()
	c.MaxConcurrentTasks = 0
	require.Error(t, c.Preflight())
}
