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
	"net/url"

	"github.com/pkg/errors"
)

// Arweave rewrites an ar://<id> URI onto the public arweave.net gateway
// and delegates the actual fetch to an HTTPS downloader.
type Arweave struct {
	HTTPS *HTTPS
}

// NewArweave returns an Arweave downloader using its own HTTPS client.
func NewArweave() *Arweave {
	return &Arweave{HTTPS: NewHTTPS()}
}

// Download implements Downloader.
func (a *Arweave) Download(ctx context.Context, uri string) ([]byte, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing uri %q", uri)
	}
	id := parsed.Host
	if id == "" {
		id = parsed.Opaque
	}
	if id == "" {
		return nil, errors.Errorf("arweave uri %q has no transaction id", uri)
	}
	return a.HTTPS.Download(ctx, "https://arweave.net/"+id)
}
