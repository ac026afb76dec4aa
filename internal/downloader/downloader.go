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

// Package downloader fetches off-chain content by URI scheme.
package downloader

import (
	"context"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

// Timeout bounds every download, regardless of scheme.
const Timeout = 5 * time.Second

// A Downloader fetches the raw bytes referenced by uri.
type Downloader interface {
	Download(ctx context.Context, uri string) ([]byte, error)
}

// ErrUnknownScheme is returned by Registry.For when no Downloader is
// registered for a URI's scheme.
var ErrUnknownScheme = errors.New("no downloader registered for scheme")

// Registry is a capability set of Downloaders keyed by URI scheme. It
// deliberately does not support inheritance or wildcard matching: a
// scheme is either registered or it isn't.
type Registry struct {
	byScheme map[string]Downloader
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byScheme: map[string]Downloader{}}
}

// Register associates scheme with d.
func (r *Registry) Register(scheme string, d Downloader) {
	r.byScheme[scheme] = d
}

// For returns the Downloader registered for uri's scheme.
func (r *Registry) For(uri string) (Downloader, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing uri %q", uri)
	}
	d, ok := r.byScheme[parsed.Scheme]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownScheme, "scheme %q", parsed.Scheme)
	}
	return d, nil
}
