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
	"errors"
	"testing"

	"github.com/eureka-network/sink-pg/internal/downloader"
	"github.com/eureka-network/sink-pg/internal/parserhost"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

type fakeDownloader struct {
	body []byte
	err  error
}

func (f fakeDownloader) Download(ctx context.Context, uri string) ([]byte, error) {
	return f.body, f.err
}

type fakeExecutor struct {
	result error
}

func (f fakeExecutor) Submit(job parserhost.Job) {
	job.Done(f.result)
}

type fakeExecutors map[string]parserExecutor

func (f fakeExecutors) For(manifest string) (parserExecutor, bool) {
	e, ok := f[manifest]
	return e, ok
}

func newTestEngine(t *testing.T, mock pgxmock.PgxPoolIface, downloads *downloader.Registry, execs Executors) *Engine {
	t.Helper()
	store := NewStore(mock)
	e := NewEngine(store, downloads, execs, 4)
	return e
}

func TestProcessMarksTaskFinishedOnSuccessfulParse(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE resolver_tasks SET state").
		WithArgs(int32(TaskFinished), "https://example.com/a.json", "tokens").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	downloads := downloader.NewRegistry()
	downloads.Register("https", fakeDownloader{body: []byte(`{}`)})

	execs := fakeExecutors{"tokens": fakeExecutor{result: nil}}

	e := newTestEngine(t, mock, downloads, execs)
	task := Task{URI: "https://example.com/a.json", Manifest: "tokens", Handler: "handle", MaxRetries: 3, WaitBeforeRetry: 5}

	e.process(context.Background(), task)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessMarksUnknownURIWithoutDownloading(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE resolver_tasks SET state").
		WithArgs(int32(TaskUnknownURI), "ftp://example.com/a.json", "tokens").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	downloads := downloader.NewRegistry() // nothing registered
	execs := fakeExecutors{"tokens": fakeExecutor{}}

	e := newTestEngine(t, mock, downloads, execs)
	task := Task{URI: "ftp://example.com/a.json", Manifest: "tokens"}

	e.process(context.Background(), task)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessMarksUnknownParser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE resolver_tasks SET state").
		WithArgs(int32(TaskUnknownParser), "https://example.com/a.json", "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	downloads := downloader.NewRegistry()
	downloads.Register("https", fakeDownloader{body: []byte(`{}`)})
	execs := fakeExecutors{} // no manifest registered

	e := newTestEngine(t, mock, downloads, execs)
	task := Task{URI: "https://example.com/a.json", Manifest: "missing"}

	e.process(context.Background(), task)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessMarksContentTooBig(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE resolver_tasks SET state").
		WithArgs(int32(TaskContentTooBig), "https://example.com/a.json", "tokens").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	downloads := downloader.NewRegistry()
	downloads.Register("https", fakeDownloader{body: []byte(`{}`)})
	execs := fakeExecutors{"tokens": fakeExecutor{result: parserhost.ErrContentTooBig}}

	e := newTestEngine(t, mock, downloads, execs)
	task := Task{URI: "https://example.com/a.json", Manifest: "tokens"}

	e.process(context.Background(), task)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRetryOrFailSchedulesRetryUntilExhausted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE resolver_tasks SET num_retries").
		WithArgs(int32(1), "https://example.com/a.json", "tokens").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	downloads := downloader.NewRegistry()
	execs := fakeExecutors{}
	e := newTestEngine(t, mock, downloads, execs)

	task := Task{URI: "https://example.com/a.json", Manifest: "tokens", MaxRetries: 2, WaitBeforeRetry: 1}
	e.retryOrFail(context.Background(), task, errors.New("connection refused"))

	require.NoError(t, mock.ExpectationsWereMet())

	select {
	case msg := <-e.msgs:
		retry, ok := msg.(retryMessage)
		require.True(t, ok)
		require.Equal(t, int32(1), retry.task.NumRetries)
	default:
		t.Fatal("expected a retryMessage to be enqueued")
	}

	// Once NumRetries has reached MaxRetries, the task is marked
	// DownloadFailed and no further retry is enqueued.
	exhausted := task
	exhausted.NumRetries = task.MaxRetries
	mock.ExpectExec("UPDATE resolver_tasks SET state").
		WithArgs(int32(TaskDownloadFailed), "https://example.com/a.json", "tokens").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	e.retryOrFail(context.Background(), exhausted, errors.New("connection refused"))

	require.NoError(t, mock.ExpectationsWereMet())
	require.Len(t, e.msgs, 0)
}
