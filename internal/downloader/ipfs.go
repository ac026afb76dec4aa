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

package downloader

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

// IPFS downloads content from one of a configured list of gateways by
// POSTing to the Kubo HTTP API's /api/v0/cat endpoint. Only the first
// configured gateway is ever used; a future extension point is to fail
// over to the remaining gateways on error, which the Gateways field
// exists to support without another config-shape change.
type IPFS struct {
	Gateways []string
	Client   *http.Client
}

// NewIPFS returns an IPFS downloader using the given gateway base URLs,
// e.g. "https://ipfs.example.com".
func NewIPFS(gateways []string) *IPFS {
	return &IPFS{Gateways: gateways, Client: &http.Client{Timeout: Timeout}}
}

// Download implements Downloader.
func (i *IPFS) Download(ctx context.Context, uri string) ([]byte, error) {
	if len(i.Gateways) == 0 {
		return nil, errors.New("no ipfs gateways configured")
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing uri %q", uri)
	}
	cid := parsed.Host
	if cid == "" {
		cid = parsed.Opaque
	}
	if cid == "" {
		return nil, errors.Errorf("ipfs uri %q has no cid", uri)
	}

	endpoint := i.Gateways[0] + "/api/v0/cat?arg=" + url.QueryEscape(cid)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	resp, err := i.Client.Do(req)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status %d fetching %s", resp.StatusCode, uri)
	}
	body, err := io.ReadAll(resp.Body)
	return body, errors.WithStack(err)
}
