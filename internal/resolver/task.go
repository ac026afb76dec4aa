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

// Package resolver schedules and retries the download and parsing of
// off-chain content referenced from on-chain rows.
package resolver

// TaskState is the durable lifecycle state of a ResolveTask. The
// numeric values are part of the persisted wire/storage format and must
// not be renumbered.
type TaskState int32

// The states a ResolveTask can occupy, in the order a well-behaved task
// would traverse them.
const (
	TaskQueued         TaskState = 0
	TaskUnknownURI     TaskState = 1
	TaskUnknownParser  TaskState = 2
	TaskDownloadFailed TaskState = 3
	TaskParsingFailed  TaskState = 4
	TaskContentTooBig  TaskState = 5
	TaskFinished       TaskState = 6
)

// String implements fmt.Stringer.
func (s TaskState) String() string {
	switch s {
	case TaskQueued:
		return "queued"
	case TaskUnknownURI:
		return "unknown_uri"
	case TaskUnknownParser:
		return "unknown_parser"
	case TaskDownloadFailed:
		return "download_failed"
	case TaskParsingFailed:
		return "parsing_failed"
	case TaskContentTooBig:
		return "content_too_big"
	case TaskFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Terminal reports whether a task in this state will never be retried.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskUnknownURI, TaskUnknownParser, TaskDownloadFailed,
		TaskParsingFailed, TaskContentTooBig, TaskFinished:
		return true
	default:
		return false
	}
}

// Task is a durable request to resolve one off-chain URI.
type Task struct {
	URI             string
	Manifest        string
	Handler         string
	MaxRetries      int32
	WaitBeforeRetry int32 // seconds
	NumRetries      int32
	State           TaskState
}

// Key identifies a Task for deduplication purposes.
func (t Task) Key() string {
	return t.Manifest + "\x00" + t.URI
}

// incrementRetryCounter reports whether another retry is allowed, and if
// so increments NumRetries in place.
func (t *Task) incrementRetryCounter() bool {
	if t.NumRetries >= t.MaxRetries {
		return false
	}
	t.NumRetries++
	return true
}
