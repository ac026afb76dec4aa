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

// Package stopper provides a context.Context that also tracks a group
// of cooperating goroutines, so that a caller can request a graceful
// stop and then wait (with a grace period) for every goroutine spawned
// through Go to actually return.
package stopper

import (
	"context"
	"sync"
	"time"
)

// A Context decorates a context.Context with goroutine bookkeeping.
// Goroutines launched with Go should select on Stopping() to begin an
// orderly shutdown, and on Done() to stop immediately once the grace
// period has elapsed.
type Context struct {
	context.Context

	cancel context.CancelFunc
	stop   chan struct{}
	once   sync.Once

	mu struct {
		sync.Mutex
		err  error
		wg   sync.WaitGroup
	}
}

// WithContext returns a new *Context derived from parent.
func WithContext(parent context.Context) *Context {
	inner, cancel := context.WithCancel(parent)
	return &Context{
		Context: inner,
		cancel:  cancel,
		stop:    make(chan struct{}),
	}
}

// Go launches fn in its own goroutine, tracked by the Context. The
// first non-nil error returned by any tracked goroutine is retained and
// returned by Wait.
func (c *Context) Go(fn func() error) {
	c.mu.wg.Add(1)
	go func() {
		defer c.mu.wg.Done()
		if err := fn(); err != nil {
			c.mu.Lock()
			if c.mu.err == nil {
				c.mu.err = err
			}
			c.mu.Unlock()
		}
	}()
}

// Stopping returns a channel that is closed once Stop has been called,
// signalling that goroutines should begin winding down.
func (c *Context) Stopping() <-chan struct{} {
	return c.stop
}

// Stop requests a graceful shutdown: Stopping() is closed immediately,
// and after grace elapses (or every tracked goroutine has returned,
// whichever comes first) the underlying context is canceled.
func (c *Context) Stop(grace time.Duration) {
	c.once.Do(func() { close(c.stop) })

	done := make(chan struct{})
	go func() {
		c.mu.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
	}
	c.cancel()
}

// Wait blocks until every goroutine launched with Go has returned, then
// returns the first error any of them reported, if any.
func (c *Context) Wait() error {
	c.mu.wg.Wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mu.err
}
