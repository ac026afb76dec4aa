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
	"container/heap"
	"time"
)

// delayQueue is a time-priority queue of tasks: Pop never returns a
// task before its scheduled time has elapsed. It plays the same role
// here as tokio's DelayQueue did in the source, implemented on top of
// container/heap since the standard library has no delay-queue type of
// its own.
type delayQueue struct {
	items delayHeap
}

type delayItem struct {
	task    Task
	readyAt time.Time
	index   int
}

type delayHeap []*delayItem

func (h delayHeap) Len() int            { return len(h) }
func (h delayHeap) Less(i, j int) bool  { return h[i].readyAt.Before(h[j].readyAt) }
func (h delayHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *delayHeap) Push(x any) {
	item := x.(*delayItem)
	item.index = len(*h)
	*h = append(*h, item)
}
func (h *delayHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

func newDelayQueue() *delayQueue {
	q := &delayQueue{}
	heap.Init(&q.items)
	return q
}

// Insert schedules task to become ready after delay elapses.
func (q *delayQueue) Insert(task Task, delay time.Duration) {
	heap.Push(&q.items, &delayItem{task: task, readyAt: time.Now().Add(delay)})
}

// Len returns the number of tasks still pending.
func (q *delayQueue) Len() int {
	return q.items.Len()
}

// NextReady returns the time until the earliest-scheduled task becomes
// ready, and whether the queue is non-empty. If the earliest task is
// already ready, the returned duration is zero or negative.
func (q *delayQueue) NextReady() (time.Duration, bool) {
	if q.items.Len() == 0 {
		return 0, false
	}
	return time.Until(q.items[0].readyAt), true
}

// Pop removes and returns the earliest-scheduled task, regardless of
// whether it has become ready yet. Callers should consult NextReady
// first.
func (q *delayQueue) Pop() Task {
	item := heap.Pop(&q.items).(*delayItem)
	return item.task
}
