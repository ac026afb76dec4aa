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

//go:build !wireinject

// Package wiring assembles the concrete components into a running
// pipeline. It plays the role the teacher fills with generated
// wire_gen.go files. This file is hand-written rather than the output
// of `go run github.com/google/wire/cmd/wire`, since no codegen step
// runs here; wire.go alongside it is the provider graph wire's codegen
// would consume, kept for documentation and so google/wire stays a
// real, exercised dependency rather than a name in go.mod.
package wiring

import (
	"os"

	"github.com/eureka-network/sink-pg/internal/config"
	"github.com/eureka-network/sink-pg/internal/dbconn"
	"github.com/eureka-network/sink-pg/internal/downloader"
	"github.com/eureka-network/sink-pg/internal/driver"
	"github.com/eureka-network/sink-pg/internal/loader"
	"github.com/eureka-network/sink-pg/internal/parserhost"
	"github.com/eureka-network/sink-pg/internal/resolver"
	"github.com/eureka-network/sink-pg/internal/util/stopper"
	"github.com/pkg/errors"
)

// Pipeline holds every long-lived component main needs to start and
// stop the sink.
type Pipeline struct {
	Loader *loader.Loader
	Engine *resolver.Engine
	Driver *driver.Driver

	executors []*parserhost.Executor
}

// Build constructs every component named in the component table,
// wiring each to the database pool and to each other, but starts
// nothing: callers launch Engine.Run, each Executor's Run, and finally
// Driver.Run against a stopper.Context of their choosing.
func Build(ctx *stopper.Context, cfg *config.Config) (*Pipeline, error) {
	pool, err := dbconn.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, errors.Wrap(err, "opening database pool")
	}

	ld := loader.New(pool, cfg.Schema)
	if err := ld.SetupSchema(ctx, cfg.SchemaFileName); err != nil {
		return nil, errors.Wrap(err, "applying schema")
	}
	if err := ld.LoadTables(ctx); err != nil {
		return nil, errors.Wrap(err, "loading table catalog")
	}

	store := resolver.NewStore(pool)
	if err := store.SetupSchema(ctx); err != nil {
		return nil, errors.Wrap(err, "setting up resolver task table")
	}

	downloads := downloader.NewRegistry()
	downloads.Register("https", downloader.NewHTTPS())
	downloads.Register("http", downloader.NewHTTPS())
	downloads.Register("ar", downloader.NewArweave())
	if len(cfg.IPFSClients) > 0 {
		downloads.Register("ipfs", downloader.NewIPFS(cfg.IPFSClients))
	}

	wasmBytes, err := os.ReadFile(cfg.PackageFileName)
	if err != nil {
		return nil, errors.Wrap(err, "reading substreams package")
	}
	executor, err := parserhost.NewExecutor(ctx, cfg.ModuleName, wasmBytes, pool)
	if err != nil {
		return nil, errors.Wrap(err, "constructing parser executor")
	}
	executors := resolver.NewExecutorRegistry(map[string]*parserhost.Executor{
		cfg.ModuleName: executor,
	})

	maxConcurrent := int(cfg.MaxConcurrentTasks)
	if maxConcurrent <= 0 {
		maxConcurrent = resolver.DefaultMaxConcurrentTasks
	}
	engine := resolver.NewEngine(store, downloads, executors, maxConcurrent)

	drv := driver.New(ld, engine, cfg.ModuleName, 3, cfg.FlushTimeout)

	return &Pipeline{
		Loader:    ld,
		Engine:    engine,
		Driver:    drv,
		executors: []*parserhost.Executor{executor},
	}, nil
}

// RunBackground launches the resolver engine and every parser executor
// as goroutines tracked by ctx. Run the driver itself on the caller's
// goroutine once this returns.
func (p *Pipeline) RunBackground(ctx *stopper.Context) {
	ctx.Go(func() error {
		return p.Engine.Run(ctx)
	})
	for _, e := range p.executors {
		e := e
		ctx.Go(func() error {
			e.Run(ctx)
			return nil
		})
	}
}
