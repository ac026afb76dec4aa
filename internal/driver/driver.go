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

// Package driver reads the upstream stream, fingerprints primary keys,
// submits row inserts to the loader and off-chain jobs to the
// resolver, and flushes once per module output.
//
// Grounded on the HandleBlockScopedData/applyDatabaseChanges shape
// used throughout the substreams-sink-postgres family: decode one
// output's bytes, walk its changes, buffer them, then flush.
package driver

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/eureka-network/sink-pg/internal/loader"
	"github.com/eureka-network/sink-pg/internal/resolver"
	"github.com/eureka-network/sink-pg/internal/sqlvalue"
	"github.com/eureka-network/sink-pg/internal/stream"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Driver is the pipeline's entry point: it owns no resources of its
// own beyond its immediate fields, delegating storage to loader and
// off-chain scheduling to engine.
type Driver struct {
	loader       *loader.Loader
	engine       *resolver.Engine
	manifest     string
	flushRetries int
	flushTimeout time.Duration
}

// New returns a Driver. manifest names the schema off-chain tasks are
// scheduled against; flushRetries bounds the exponential-backoff retry
// applied to a failing Flush before the driver gives up and returns
// the error to its caller. A non-positive flushRetries selects 3, and
// a non-positive flushTimeout selects 30s.
func New(l *loader.Loader, engine *resolver.Engine, manifest string, flushRetries int, flushTimeout time.Duration) *Driver {
	if flushRetries <= 0 {
		flushRetries = 3
	}
	if flushTimeout <= 0 {
		flushTimeout = 30 * time.Second
	}
	return &Driver{loader: l, engine: engine, manifest: manifest, flushRetries: flushRetries, flushTimeout: flushTimeout}
}

// Run consumes client starting from cursor until the stream ends or
// ctx is canceled. On a clean stream end it requests the resolver
// engine to terminate and returns nil; the caller is responsible for
// waiting on the engine and parser executors to actually drain.
func (d *Driver) Run(ctx context.Context, client stream.Client, cursor string) error {
	data, errs := client.Recv(ctx, cursor)
	for {
		select {
		case msg, ok := <-data:
			if !ok {
				d.engine.Terminate()
				return nil
			}
			if err := d.handleBlockScopedData(ctx, msg); err != nil {
				return err
			}
		case err := <-errs:
			d.engine.Terminate()
			if err != nil {
				return errors.Wrap(err, "upstream stream")
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *Driver) handleBlockScopedData(ctx context.Context, data stream.BlockScopedData) error {
	for _, output := range data.Outputs {
		changes, err := stream.DecodeRecordChanges(output.Value)
		if err != nil {
			return errors.Wrapf(err, "decoding output %s", output.Name)
		}

		for _, change := range changes.Changes {
			if err := d.applyChange(ctx, change); err != nil {
				return errors.Wrapf(err, "applying change to %s", change.Record)
			}
		}

		cur := loader.Cursor{
			Value:    data.Cursor,
			BlockNum: int64(data.Clock.Number),
			BlockID:  data.Clock.ID,
		}
		if err := d.flushWithRetry(ctx, output.Name, cur); err != nil {
			return errors.Wrapf(err, "flushing output %s", output.Name)
		}
	}
	return nil
}

func (d *Driver) applyChange(ctx context.Context, change stream.RecordChange) error {
	switch change.Operation {
	case stream.OperationCreate:
		return d.applyCreate(ctx, change)
	default:
		log.WithFields(log.Fields{
			"table":     change.Record,
			"operation": change.Operation,
		}).Warn("operation not implemented, skipping change")
		return nil
	}
}

func (d *Driver) applyCreate(ctx context.Context, change stream.RecordChange) error {
	pk := derivePrimaryKey(change.ID, change.Ordinal)

	data := make(map[string]sqlvalue.Value, len(change.Fields))
	for _, f := range change.Fields {
		if f.NewValue == nil {
			continue
		}
		v, err := fieldValueToSQLValue(*f.NewValue)
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"table": change.Record,
				"field": f.Name,
			}).Warn("skipping field with unparseable value")
			continue
		}
		data[f.Name] = v

		if f.NewValue.Kind == stream.ValueOffchaindata {
			d.scheduleOffchainTask(ctx, f.NewValue.Offchaindata)
		}
	}

	if err := d.loader.Insert(change.Record, pk, data); err != nil {
		if errors.Is(err, loader.ErrPrimaryKeyAlreadyScheduled) {
			log.WithFields(log.Fields{"table": change.Record, "pk": pk}).
				Warn("primary key already scheduled this flush window, skipping change")
			return nil
		}
		return err
	}
	return nil
}

func (d *Driver) scheduleOffchainTask(ctx context.Context, od stream.Offchaindata) {
	task := resolver.Task{
		URI:             od.URI,
		Manifest:        d.manifest,
		Handler:         od.Handler,
		MaxRetries:      od.MaxRetries,
		WaitBeforeRetry: od.WaitBeforeRetry,
	}
	if err := d.engine.Submit(ctx, task); err != nil {
		log.WithError(err).WithField("uri", od.URI).Warn("failed to schedule off-chain task")
	}
}

func (d *Driver) flushWithRetry(ctx context.Context, outputName string, cur loader.Cursor) error {
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(d.flushRetries))
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		fctx, cancel := context.WithTimeout(ctx, d.flushTimeout)
		defer cancel()
		err := d.loader.Flush(fctx, outputName, cur)
		if err != nil {
			log.WithError(err).WithField("attempt", attempt).Warn("flush failed, retrying")
		}
		return err
	}, backoff.WithContext(policy, ctx))
}
