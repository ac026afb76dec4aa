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

package parserhost

import (
	"context"
	"strconv"

	"github.com/eureka-network/sink-pg/internal/dbops"
	"github.com/eureka-network/sink-pg/internal/sqlvalue"
	"github.com/eureka-network/sink-pg/internal/util/stopper"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// MaxContentSize bounds the message handed to a wasm module. A task
// whose downloaded content would exceed this, once wrapped in the wire
// message, is marked ContentTooBig instead of being handed to wasm.
const MaxContentSize = 1024 * 1024 // 1 MiB

// Job is one unit of work dispatched to an Executor.
type Job struct {
	URI      string
	Manifest string
	Handler  string
	Content  []byte

	// Done reports the job's terminal outcome: nil when the records the
	// module produced were inserted, or an error describing why the task
	// should be marked failed (a module that produces no records counts
	// as a parsing failure).
	Done func(error)
}

// Executor runs exactly one wasm module, sequentially, for one
// manifest. Each Executor owns its own wazero runtime and instance:
// wasm linear memory is not safe to share across concurrent callers.
type Executor struct {
	manifest string
	pool     *pgxpool.Pool
	runtime  wazero.Runtime
	module   api.Module
	memory   api.Memory
	jobs     chan Job

	// current is the Job being processed by the single in-flight Call;
	// safe to access without synchronization because jobs are
	// dispatched strictly one at a time by the loop in Run/drain.
	current Job
}

// NewExecutor compiles and instantiates the wasm module for manifest,
// registering the host imports the module expects.
func NewExecutor(ctx context.Context, manifest string, wasmBytes []byte, pool *pgxpool.Pool) (*Executor, error) {
	runtime := wazero.NewRuntime(ctx)

	e := &Executor{
		manifest: manifest,
		pool:     pool,
		runtime:  runtime,
		jobs:     make(chan Job, 1000),
	}

	builder := runtime.NewHostModuleBuilder("env")
	builder.NewFunctionBuilder().WithFunc(hostPrintln).Export("println")
	builder.NewFunctionBuilder().WithFunc(hostPrintln).Export("logger")
	builder.NewFunctionBuilder().WithFunc(e.hostOutput).Export("output")
	builder.NewFunctionBuilder().WithFunc(hostRegisterPanic).Export("register_panic")
	if _, err := builder.Instantiate(ctx); err != nil {
		return nil, errors.Wrap(err, "registering env host module")
	}

	loggerBuilder := runtime.NewHostModuleBuilder("logger")
	loggerBuilder.NewFunctionBuilder().WithFunc(hostPrintln).Export("println")
	if _, err := loggerBuilder.Instantiate(ctx); err != nil {
		return nil, errors.Wrap(err, "registering logger host module")
	}

	code, err := runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Wrap(err, "compiling wasm module")
	}
	mod, err := runtime.InstantiateModule(ctx, code, wazero.NewModuleConfig())
	if err != nil {
		return nil, errors.Wrap(err, "instantiating wasm module")
	}
	mem := mod.Memory()
	if mem == nil {
		return nil, errors.New("wasm module does not export memory")
	}

	e.module = mod
	e.memory = mem
	return e, nil
}

// Run drives the Executor's job loop until ctx begins stopping. Jobs
// already enqueued are drained before Run returns.
func (e *Executor) Run(ctx *stopper.Context) {
	ctx.Go(func() error {
		for {
			select {
			case job := <-e.jobs:
				e.process(ctx, job)
			case <-ctx.Stopping():
				return e.drain()
			}
		}
	})
}

func (e *Executor) drain() error {
	for {
		select {
		case job := <-e.jobs:
			e.process(context.Background(), job)
		default:
			e.runtime.Close(context.Background())
			return nil
		}
	}
}

// Submit enqueues a job for processing. It blocks if the job channel is
// full, applying backpressure to the resolver engine.
func (e *Executor) Submit(job Job) {
	e.jobs <- job
}

func (e *Executor) process(ctx context.Context, job Job) {
	reported := false
	done := job.Done
	job.Done = func(err error) {
		reported = true
		done(err)
	}
	e.current = job
	content := Content{URI: job.URI, Manifest: job.Manifest, Body: string(job.Content)}
	msg := EncodeContent(content)
	if len(msg) > MaxContentSize {
		job.Done(ErrContentTooBig)
		return
	}

	if err := e.memory.WriteUint32Le(0, uint32(len(msg))); err != nil {
		job.Done(errors.Wrap(err, "writing length prefix"))
		return
	}
	if !e.memory.Write(4, msg) {
		job.Done(errors.New("failed to write message to wasm memory"))
		return
	}

	fn := e.module.ExportedFunction(job.Handler)
	if fn == nil {
		job.Done(errors.Errorf("wasm module has no exported handler %q", job.Handler))
		return
	}
	if _, err := fn.Call(ctx, 4, uint64(len(msg))); err != nil {
		job.Done(errors.Wrap(err, "calling wasm handler"))
		return
	}
	// The module reports its own outcome via the output host import,
	// which invokes job.Done. A successful Call during which output()
	// reported nothing means the module produced no records, which is
	// reported as parsing-failed here.
	if !reported {
		job.Done(errParsingFailedNoRecords)
	}
}

// ErrContentTooBig is reported to Job.Done when the encoded message
// exceeds MaxContentSize.
var ErrContentTooBig = errors.New("content exceeds maximum size")

func hostPrintln(ctx context.Context, m api.Module, ptr, length uint32) {
	buf, ok := m.Memory().Read(ptr, length)
	if !ok {
		log.Debug("wasm logger called with out-of-bounds pointer")
		return
	}
	log.WithField("source", "wasm").Debug(string(buf))
}

func hostRegisterPanic(ctx context.Context, m api.Module, msgPtr, msgLen, filePtr, fileLen, line, column uint32) {
	msg, _ := m.Memory().Read(msgPtr, msgLen)
	file, _ := m.Memory().Read(filePtr, fileLen)
	log.WithFields(log.Fields{
		"file": string(file),
		"line": line,
		"col":  column,
	}).Warnf("wasm panic: %s", string(msg))
}

// hostOutput is bound per-Executor so it can reach back into the
// current job's Done callback and this manifest's connection pool.
//
// Because jobs are dispatched sequentially per Executor (never more
// than one in flight), the currently-processing Job is tracked on the
// Executor itself rather than threaded through wazero's call context.
func (e *Executor) hostOutput(ctx context.Context, m api.Module, ptr, length uint32) {
	buf, ok := m.Memory().Read(ptr, length)
	if !ok {
		log.Warn("wasm output called with out-of-bounds pointer")
		return
	}
	records, err := DecodeRecords(buf)
	if err != nil {
		log.WithError(err).Warn("failed to decode records from wasm output")
		return
	}

	if len(records.Records) == 0 {
		log.Debug("wasm module produced no records")
		e.current.Done(errParsingFailedNoRecords)
		return
	}

	for _, rec := range records.Records {
		if err := e.insertRecord(ctx, rec); err != nil {
			log.WithError(err).Warn("failed to insert record produced by wasm module")
			e.current.Done(err)
			return
		}
	}
	e.current.Done(nil)
}

// errParsingFailedNoRecords is reported when a wasm module's handler
// returns normally but calls output() with zero records.
var errParsingFailedNoRecords = errors.New("wasm module produced no records")

func (e *Executor) insertRecord(ctx context.Context, rec Record) error {
	cols := make(map[string]sqlvalue.Value, len(rec.Fields))
	for _, f := range rec.Fields {
		if f.Value.Unsupported() {
			return errors.Errorf("field %s has an unsupported value type", f.Name)
		}
		v, err := fieldToValue(f.Value)
		if err != nil {
			return errors.Wrapf(err, "field %s", f.Name)
		}
		cols[f.Name] = v
	}

	op := dbops.Operation{
		Kind:    dbops.Insert,
		Schema:  e.manifest,
		Table:   rec.Table,
		Columns: cols,
	}
	query, args, err := op.Build()
	if err != nil {
		return err
	}
	_, err = e.pool.Exec(ctx, query, args...)
	return errors.WithStack(err)
}

func fieldToValue(v FieldValue) (sqlvalue.Value, error) {
	switch v.Kind {
	case valString:
		return sqlvalue.Parse(sqlvalue.Text, v.String)
	case valInt32, valInt64:
		return sqlvalue.Parse(sqlvalue.BigInt, strconv.FormatInt(v.Int64, 10))
	case valUint32, valUint64:
		// The source's equivalent cast unsigned values to i32/i64 with
		// try_from, surfacing an error on overflow; we do the same
		// range check explicitly rather than silently wrapping.
		limit := maxInt64
		if v.Kind == valUint32 {
			limit = 1<<31 - 1
		}
		if v.Uint64 > limit {
			return sqlvalue.Value{}, errors.Errorf("unsigned value %d overflows signed limit %d", v.Uint64, limit)
		}
		return sqlvalue.Parse(sqlvalue.BigInt, strconv.FormatInt(int64(v.Uint64), 10))
	case valBool:
		if v.Bool {
			return sqlvalue.Parse(sqlvalue.Boolean, "true")
		}
		return sqlvalue.Parse(sqlvalue.Boolean, "false")
	case valBytes:
		return sqlvalue.Parse(sqlvalue.Binary, string(v.Bytes))
	case valBigdecimal:
		return sqlvalue.Parse(sqlvalue.Numeric, v.Bigdecimal)
	default:
		return sqlvalue.Value{}, errors.Errorf("unsupported value kind %d", v.Kind)
	}
}

const maxInt64 = uint64(1<<63 - 1)
