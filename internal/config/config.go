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

// Package config holds the sink's user-visible configuration: flags,
// an optional TOML file, and the preflight checks the teacher's own
// server.Config performs before the pipeline is allowed to start.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the complete set of knobs the sink accepts, via flag or
// TOML file. Flags always win over the file.
type Config struct {
	FirehoseEndpoint   string
	PackageFileName    string
	ModuleName         string
	StartBlock         int64
	EndBlock           uint64
	PostgresDSN        string
	Schema             string
	SchemaFileName     string
	IPFSClients        []string
	ResolveOffchain    bool
	MaxConcurrentTasks uint

	MetricsAddr            string
	LogLevel               string
	FlushTimeout           time.Duration
	ResolverRetryBaseDelay time.Duration
}

// Bind registers the flag for every field, mirroring the teacher's
// Config.Bind: defaults live here, next to the flag help text.
func (c *Config) Bind(flags *pflag.FlagSet) {
	flags.StringVar(&c.FirehoseEndpoint, "firehoseEndpoint", "", "address of the upstream firehose/substreams endpoint")
	flags.StringVar(&c.PackageFileName, "packageFileName", "", "path to the substreams package (.spkg)")
	flags.StringVar(&c.ModuleName, "moduleName", "", "name of the substreams output module to consume")
	flags.Int64Var(&c.StartBlock, "startBlock", 0, "first block to request from the upstream stream")
	flags.Uint64Var(&c.EndBlock, "endBlock", 0, "last block to request; 0 means stream indefinitely")
	flags.StringVar(&c.PostgresDSN, "postgresDSN", "", "connection string for the destination Postgres database")
	flags.StringVar(&c.Schema, "schema", "", "Postgres schema that holds the sink's application tables")
	flags.StringVar(&c.SchemaFileName, "schemaFileName", "", "path to the SQL DDL file that creates the application tables")
	flags.StringSliceVar(&c.IPFSClients, "ipfsClient", nil, "IPFS gateway base URL; may be repeated")
	flags.BoolVar(&c.ResolveOffchain, "resolveOffchainData", false, "download and parse off-chain data referenced by inserted rows")
	flags.UintVar(&c.MaxConcurrentTasks, "maxConcurrentResolverTasks", 48, "maximum off-chain downloads in flight at once")

	flags.StringVar(&c.MetricsAddr, "metricsAddr", ":9091", "address to serve Prometheus metrics on")
	flags.StringVar(&c.LogLevel, "logLevel", "info", "logrus level: trace, debug, info, warn, error")
	flags.DurationVar(&c.FlushTimeout, "flushTimeout", 30*time.Second, "timeout applied to each per-output flush transaction")
	flags.DurationVar(&c.ResolverRetryBaseDelay, "resolverRetryBaseDelay", time.Second, "loaded into the configuration but not read by the resolver; a task whose wait_before_retry is zero is retried without delay")
}

// Load reads path, if non-empty and present, into a viper instance and
// merges its values under flags that were not set on the command line.
// Flags set explicitly on the command line are never overridden by the
// file, matching the teacher's flag-wins convention.
func Load(c *Config, flags *pflag.FlagSet, path string) error {
	v := viper.New()
	v.SetConfigType("toml")
	if path == "" {
		path = "config/default.toml"
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if path == "config/default.toml" {
			return nil
		}
		return errors.Wrapf(err, "reading config file %s", path)
	}

	if err := v.BindPFlags(flags); err != nil {
		return errors.WithStack(err)
	}

	c.FirehoseEndpoint = v.GetString("firehoseEndpoint")
	c.PackageFileName = v.GetString("packageFileName")
	c.ModuleName = v.GetString("moduleName")
	c.StartBlock = v.GetInt64("startBlock")
	c.EndBlock = v.GetUint64("endBlock")
	c.PostgresDSN = v.GetString("postgresDSN")
	c.Schema = v.GetString("schema")
	c.SchemaFileName = v.GetString("schemaFileName")
	if clients := v.GetStringSlice("ipfsClient"); len(clients) > 0 {
		c.IPFSClients = clients
	}
	c.ResolveOffchain = v.GetBool("resolveOffchainData")
	c.MaxConcurrentTasks = v.GetUint("maxConcurrentResolverTasks")
	c.MetricsAddr = v.GetString("metricsAddr")
	c.LogLevel = v.GetString("logLevel")
	c.FlushTimeout = v.GetDuration("flushTimeout")
	c.ResolverRetryBaseDelay = v.GetDuration("resolverRetryBaseDelay")

	return nil
}

// Preflight rejects an incomplete configuration before any connection
// is attempted, per the required-field check on the enumerated options.
func (c *Config) Preflight() error {
	var missing []string
	if c.FirehoseEndpoint == "" {
		missing = append(missing, "firehoseEndpoint")
	}
	if c.PackageFileName == "" {
		missing = append(missing, "packageFileName")
	}
	if c.ModuleName == "" {
		missing = append(missing, "moduleName")
	}
	if c.SchemaFileName == "" {
		missing = append(missing, "schemaFileName")
	}
	if c.Schema == "" {
		missing = append(missing, "schema")
	}
	if c.PostgresDSN == "" {
		missing = append(missing, "postgresDSN")
	}
	if len(missing) > 0 {
		return errors.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.StartBlock == 0 && c.EndBlock == 0 {
		return errors.New("one of startBlock or endBlock must be set")
	}
	if c.MaxConcurrentTasks == 0 {
		return errors.New("maxConcurrentResolverTasks must be positive")
	}
	return nil
}
