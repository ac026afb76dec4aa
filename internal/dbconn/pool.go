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

// Package dbconn opens the pgx connection pools shared by the loader
// and the resolver state store.
package dbconn

import (
	"context"
	"time"

	"github.com/eureka-network/sink-pg/internal/util/stopper"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Open establishes a pgxpool.Pool against dsn and registers a goroutine,
// tracked by ctx, that closes the pool once the Context begins stopping.
// The pool is pinged in a retry loop so that the sink can start up
// alongside a database container that is still booting.
func Open(ctx *stopper.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	ctx.Go(func() error {
		<-ctx.Stopping()
		pool.Close()
		return nil
	})

ping:
	if err := pool.Ping(ctx); err != nil {
		select {
		case <-ctx.Done():
			return nil, errors.WithStack(ctx.Err())
		case <-time.After(2 * time.Second):
			log.WithError(err).Info("waiting for database to become ready")
			goto ping
		}
	}

	return pool, nil
}

// OpenOnce is a convenience wrapper for callers that do not need a
// [stopper.Context]: the pool is closed when parent is canceled.
func OpenOnce(parent context.Context, dsn string) (*pgxpool.Pool, error) {
	stop := stopper.WithContext(parent)
	go func() {
		<-parent.Done()
		stop.Stop(0)
	}()
	return Open(stop, dsn)
}
