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

// Command sink runs the pipeline: it reads configuration, builds the
// wiring graph, and drives the upstream stream until it ends or the
// process receives a termination signal.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eureka-network/sink-pg/internal/config"
	"github.com/eureka-network/sink-pg/internal/stream"
	"github.com/eureka-network/sink-pg/internal/util/stopper"
	"github.com/eureka-network/sink-pg/internal/wiring"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		log.WithError(err).Error("sink exited with error")
		os.Exit(1)
	}
}

func run() error {
	var cfg config.Config
	var configFile string

	flags := pflag.NewFlagSet("sink", pflag.ExitOnError)
	cfg.Bind(flags)
	flags.StringVar(&configFile, "config", "config/default.toml", "path to a TOML configuration file")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	if err := config.Load(&cfg, flags, configFile); err != nil {
		return err
	}
	if err := cfg.Preflight(); err != nil {
		return err
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	ctx := stopper.WithContext(context.Background())

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Info("shutdown requested, draining")
		ctx.Stop(30 * time.Second)
	}()

	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
	ctx.Go(func() error {
		<-ctx.Stopping()
		return metricsServer.Close()
	})
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Warn("metrics server stopped")
		}
	}()

	pipeline, err := wiring.Build(ctx, &cfg)
	if err != nil {
		return err
	}
	pipeline.RunBackground(ctx)

	client, err := dialStream(ctx, &cfg)
	if err != nil {
		return err
	}

	cursor, _, err := pipeline.Loader.GetCursor(ctx, cfg.ModuleName)
	if err != nil {
		return err
	}

	runErr := pipeline.Driver.Run(ctx, client, cursor.Value)
	ctx.Stop(30 * time.Second)
	if waitErr := ctx.Wait(); waitErr != nil && runErr == nil {
		runErr = waitErr
	}
	return runErr
}

// dialStream constructs the upstream stream.Client. Dialing the actual
// firehose/substreams gRPC transport and unpacking cfg.PackageFileName
// into a module request is outside the component table this sink
// implements (C1-C8 stop at the driver consuming a stream.Client); a
// deployment wires its own transport.Client implementation in here.
func dialStream(ctx *stopper.Context, cfg *config.Config) (stream.Client, error) {
	return nil, errors.Errorf("no stream.Client wired for endpoint %s; supply one in cmd/sink", cfg.FirehoseEndpoint)
}
