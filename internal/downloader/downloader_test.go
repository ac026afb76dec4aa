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

package downloader_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/eureka-network/sink-pg/internal/downloader"
	"github.com/stretchr/testify/require"
)

func TestRegistryDispatchesByScheme(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	reg := downloader.NewRegistry()
	reg.Register("https", downloader.NewHTTPS())
	reg.Register("http", downloader.NewHTTPS())

	d, err := reg.For(srv.URL)
	require.NoError(t, err)
	body, err := d.Download(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "hello", string(body))
}

func TestRegistryRejectsUnknownScheme(t *testing.T) {
	reg := downloader.NewRegistry()
	_, err := reg.For("ftp://example.com/file")
	require.ErrorIs(t, err, downloader.ErrUnknownScheme)
}

func TestArweaveRewritesURI(t *testing.T) {
	// The transport's proxy hook sees the rewritten request URL and
	// then stops the request before anything is dialed, so the test
	// never reaches the real arweave.net host.
	var gotURL string
	client := &http.Client{Transport: &http.Transport{
		Proxy: func(r *http.Request) (*url.URL, error) {
			gotURL = r.URL.String()
			return nil, errors.New("stop before dialing")
		},
	}}

	a := &downloader.Arweave{HTTPS: &downloader.HTTPS{Client: client}}
	_, err := a.Download(context.Background(), "ar://abc123")
	require.Error(t, err)
	require.Equal(t, "https://arweave.net/abc123", gotURL)
}

func TestIPFSPostsToFirstGateway(t *testing.T) {
	var gotMethod, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte("content"))
	}))
	defer srv.Close()

	i := downloader.NewIPFS([]string{srv.URL})
	body, err := i.Download(context.Background(), "ipfs://QmExample")
	require.NoError(t, err)
	require.Equal(t, "content", string(body))
	require.Equal(t, http.MethodPost, gotMethod)
	require.Contains(t, gotQuery, "QmExample")
}
