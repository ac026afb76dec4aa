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

package resolver

import (
	"context"
	"time"

	"github.com/eureka-network/sink-pg/internal/downloader"
	"github.com/eureka-network/sink-pg/internal/parserhost"
	"github.com/eureka-network/sink-pg/internal/util/stopper"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultMaxConcurrentTasks matches the spec's stated default for
// bounded resolver concurrency.
const DefaultMaxConcurrentTasks = 48

// message is the event-loop's internal mailbox type. It is unexported:
// callers only ever interact with Engine.Submit.
type message interface {
	isMessage()
}

type submitMessage struct{ task Task }
type retryMessage struct {
	task  Task
	delay time.Duration
}
type terminationMessage struct{}

func (submitMessage) isMessage()      {}
func (retryMessage) isMessage()       {}
func (terminationMessage) isMessage() {}

// parserExecutor is the slice of *parserhost.Executor the engine needs.
// Accepting the interface rather than the concrete type keeps the
// engine's scheduling logic testable without a real wasm runtime.
type parserExecutor interface {
	Submit(parserhost.Job)
}

// Executors resolves a manifest name to the parser executor responsible
// for it.
type Executors interface {
	For(manifest string) (parserExecutor, bool)
}

// Engine is the single event-loop goroutine that owns the resolver's
// delay queue and bounded worker semaphore. There is exactly one Engine
// per sink instance; it is not safe to share a Store between two
// Engines.
type Engine struct {
	store     *Store
	downloads *downloader.Registry
	executors Executors

	maxConcurrent int
	msgs          chan message
	sem           chan struct{}

	metrics *engineMetrics
}

// NewEngine returns an Engine. maxConcurrent bounds the number of
// in-flight download+parse tasks; zero or negative selects
// DefaultMaxConcurrentTasks.
func NewEngine(store *Store, downloads *downloader.Registry, executors Executors, maxConcurrent int) *Engine {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentTasks
	}
	return &Engine{
		store:         store,
		downloads:     downloads,
		executors:     executors,
		maxConcurrent: maxConcurrent,
		msgs:          make(chan message, 256),
		sem:           make(chan struct{}, maxConcurrent),
		metrics:       newEngineMetrics(),
	}
}

// Submit enqueues a brand-new task. Duplicate (uri, manifest) tasks are
// recorded once; later submissions silently do nothing.
func (e *Engine) Submit(ctx context.Context, task Task) error {
	added, err := e.store.AddTask(ctx, task)
	if err != nil {
		return err
	}
	if !added {
		log.WithFields(log.Fields{"uri": task.URI, "manifest": task.Manifest}).
			Debug("task already scheduled, dropping duplicate")
		return nil
	}
	e.msgs <- submitMessage{task: task}
	return nil
}

// Run loads any tasks left over from a previous run, then drives the
// event loop until ctx begins stopping. On shutdown, Run drains the
// delay queue and waits for every in-flight task to release its
// semaphore permit before returning: no task is abandoned mid-flight.
func (e *Engine) Run(ctx *stopper.Context) error {
	queue := newDelayQueue()

	queued, err := e.store.LoadQueued(ctx)
	if err != nil {
		return errors.Wrap(err, "loading queued resolver tasks")
	}
	for _, t := range queued {
		queue.Insert(t, 0)
	}

	stopping := false
	for {
		var timer <-chan time.Time
		if d, ok := queue.NextReady(); ok {
			if d < 0 {
				d = 0
			}
			timer = time.After(d)
		}

		select {
		case msg := <-e.msgs:
			switch m := msg.(type) {
			case submitMessage:
				queue.Insert(m.task, 0)
			case retryMessage:
				queue.Insert(m.task, m.delay)
			case terminationMessage:
				stopping = true
			}

		case <-timer:
			task := queue.Pop()
			e.dispatch(ctx, task)

		case <-ctx.Stopping():
			stopping = true
		}

		if stopping && queue.Len() == 0 {
			return e.drain()
		}
	}
}

// drain blocks until every permit has been returned to the semaphore,
// i.e. every in-flight task has finished.
func (e *Engine) drain() error {
	for i := 0; i < e.maxConcurrent; i++ {
		e.sem <- struct{}{}
	}
	return nil
}

// dispatch acquires a semaphore permit and starts processing task in a
// new goroutine. It does not block the event loop beyond acquiring the
// permit, which is itself bounded by maxConcurrent.
func (e *Engine) dispatch(ctx context.Context, task Task) {
	e.sem <- struct{}{}
	e.metrics.taskStarted()
	go func() {
		defer func() { <-e.sem }()
		defer e.metrics.taskFinished()
		e.process(ctx, task)
	}()
}

func (e *Engine) process(ctx context.Context, task Task) {
	log.WithFields(log.Fields{"uri": task.URI, "manifest": task.Manifest}).
		Trace("processing resolver task")

	dl, err := e.downloads.For(task.URI)
	if err != nil {
		e.fail(ctx, task, TaskUnknownURI, err)
		return
	}
	exec, ok := e.executors.For(task.Manifest)
	if !ok {
		e.fail(ctx, task, TaskUnknownParser, errors.Errorf("no parser registered for manifest %s", task.Manifest))
		return
	}

	content, err := dl.Download(ctx, task.URI)
	if err != nil {
		e.retryOrFail(ctx, task, err)
		return
	}

	done := make(chan error, 1)
	exec.Submit(parserhost.Job{
		URI:      task.URI,
		Manifest: task.Manifest,
		Handler:  task.Handler,
		Content:  content,
		Done:     func(err error) { done <- err },
	})

	var parseErr error
	select {
	case parseErr = <-done:
	case <-ctx.Done():
		return
	}

	if errors.Is(parseErr, parserhost.ErrContentTooBig) {
		e.fail(ctx, task, TaskContentTooBig, parseErr)
		return
	}
	if parseErr != nil {
		e.fail(ctx, task, TaskParsingFailed, parseErr)
		return
	}
	if err := e.store.UpdateTaskState(ctx, task, TaskFinished); err != nil {
		log.WithError(err).Warn("failed to persist finished task state")
	}
}

// retryOrFail schedules another attempt if the task has retries left,
// otherwise marks it permanently failed.
func (e *Engine) retryOrFail(ctx context.Context, task Task, cause error) {
	if !task.incrementRetryCounter() {
		e.fail(ctx, task, TaskDownloadFailed, cause)
		return
	}
	if err := e.store.UpdateRetryCounter(ctx, task); err != nil {
		log.WithError(err).Warn("failed to persist retry counter")
	}
	delay := time.Duration(task.WaitBeforeRetry) * time.Second
	log.WithFields(log.Fields{
		"uri":      task.URI,
		"attempt":  task.NumRetries,
		"max":      task.MaxRetries,
		"delay":    delay,
	}).Trace("scheduling resolver retry")
	e.metrics.retried()
	e.msgs <- retryMessage{task: task, delay: delay}
}

func (e *Engine) fail(ctx context.Context, task Task, state TaskState, cause error) {
	log.WithError(cause).WithFields(log.Fields{
		"uri":      task.URI,
		"manifest": task.Manifest,
		"state":    state,
	}).Warn("resolver task failed")
	if err := e.store.UpdateTaskState(ctx, task, state); err != nil {
		log.WithError(err).Warn("failed to persist failed task state")
	}
}

// Terminate requests an orderly shutdown of the event loop: the delay
// queue is drained and every in-flight task completes before Run
// returns. Terminate does not itself block; callers wait on Run's
// return (via the owning stopper.Context) to know the engine has
// stopped.
func (e *Engine) Terminate() {
	e.msgs <- terminationMessage{}
}
