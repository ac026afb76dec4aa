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

package loader

import (
	"context"
	"math/rand"

	"github.com/pkg/errors"
)

// Flusher is implemented by *Loader. It is the shape WithChaos
// decorates; the driver itself holds a concrete *Loader.
type Flusher interface {
	Flush(ctx context.Context, outputModuleHash string, cursor Cursor) error
}

// ErrChaos is the error injected by WithChaos.
var ErrChaos = errors.New("chaos")

// WithChaos wraps a Flusher so that a fraction of Flush calls fail
// with ErrChaos before ever reaching the database, so that code written
// against Flusher can be exercised against injected flush failures.
func WithChaos(delegate Flusher, prob float32) Flusher {
	if prob <= 0 {
		return delegate
	}
	return &chaosFlusher{delegate: delegate, prob: prob}
}

type chaosFlusher struct {
	delegate Flusher
	prob     float32
}

func (f *chaosFlusher) Flush(ctx context.Context, outputModuleHash string, cursor Cursor) error {
	if rand.Float32() < f.prob {
		return errors.WithMessage(ErrChaos, "Flush")
	}
	return f.delegate.Flush(ctx, outputModuleHash, cursor)
}
