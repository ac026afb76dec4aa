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

//go:build wireinject

package wiring

import (
	"github.com/eureka-network/sink-pg/internal/config"
	"github.com/eureka-network/sink-pg/internal/util/stopper"
	"github.com/google/wire"
)

// buildPipeline documents the provider graph Build implements by hand.
// It is excluded from ordinary builds by the wireinject tag above and
// exists only as the input `go run github.com/google/wire/cmd/wire`
// would consume to regenerate wire_gen.go, the same split the teacher
// uses between its own wireinject-tagged sources and their *_gen.go
// output.
func buildPipeline(ctx *stopper.Context, cfg *config.Config) (*Pipeline, error) {
	wire.Build(Build)
	return nil, nil
}
