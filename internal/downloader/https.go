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

	"github.com/pkg/errors"
)

// HTTPS downloads content with a plain GET request.
type HTTPS struct {
	Client *http.Client
}

// NewHTTPS returns an HTTPS downloader with the package's standard
// Timeout.
func NewHTTPS() *HTTPS {
	return &HTTPS{Client: &http.Client{Timeout: Timeout}}
}

// Download implements Downloader.
func (h *HTTPS) Download(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	resp, err := h.Client.Do(req)
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
