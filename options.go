// Copyright 2025 Google LLC
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

package depsolve

import (
	"errors"
	"log/slog"

	"deps.dev/util/depsolve/catalog"
	"deps.dev/util/depsolve/genetic"
	"deps.dev/util/depsolve/requirements"
)

// DefaultInterpreters are the interpreter versions searched when none are
// given.
var DefaultInterpreters = []string{"3.8", "3.9", "3.10", "3.11", "3.12"}

// Option configures Solve.
type Option func(*options) error

type options struct {
	logger       *slog.Logger
	hard         catalog.HardConstraints
	roots        []string
	interpreters []string
	config       genetic.Config
	weights      genetic.Weights
	maxRounds    int
	metrics      *Metrics
	onGeneration func(genetic.GenerationStats)
}

func defaultOptions() *options {
	return &options{
		interpreters: DefaultInterpreters,
		config:       genetic.DefaultConfig(),
		weights:      genetic.DefaultWeights,
	}
}

// WithLogger sets a structured logger for pruning and search progress.
// If not set, logging is disabled.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) error {
		o.logger = l
		return nil
	}
}

// WithHardConstraints adds constraints the solution must meet. It may be
// given several times; the constraints are merged.
func WithHardConstraints(h catalog.HardConstraints) Option {
	return func(o *options) error {
		o.hard = o.hard.Merge(h)
		return nil
	}
}

// WithRoots restricts the solve to the named packages and everything they
// reach in the catalog.
func WithRoots(pkgs ...string) Option {
	return func(o *options) error {
		o.roots = append(o.roots, pkgs...)
		return nil
	}
}

// WithRequirements roots the solve at the packages of a requirement list
// and turns every requirement into a hard constraint, so listed packages
// must be installed and meet their specifiers.
func WithRequirements(f *requirements.File) Option {
	return func(o *options) error {
		if f == nil {
			return errors.New("nil requirements file")
		}
		o.roots = append(o.roots, f.Packages...)
		o.hard = o.hard.Merge(f.Constraints)
		return nil
	}
}

// WithInterpreters sets the interpreter versions the search chooses from.
func WithInterpreters(vs ...string) Option {
	return func(o *options) error {
		if len(vs) == 0 {
			return genetic.ErrNoInterpreters
		}
		o.interpreters = vs
		return nil
	}
}

// WithConfig replaces the default search parameters.
func WithConfig(c genetic.Config) Option {
	return func(o *options) error {
		if err := c.Validate(); err != nil {
			return err
		}
		o.config = c
		return nil
	}
}

// WithWeights replaces the default fitness weights.
func WithWeights(w genetic.Weights) Option {
	return func(o *options) error {
		o.weights = w
		return nil
	}
}

// WithMaxRounds overrides the pruning round cap.
func WithMaxRounds(n int) Option {
	return func(o *options) error {
		if n < 1 {
			return errors.New("max rounds must be positive")
		}
		o.maxRounds = n
		return nil
	}
}

// WithMetrics records pruning and search metrics in m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) error {
		o.metrics = m
		return nil
	}
}

// WithProgress sets a callback run after every generation of the search.
func WithProgress(fn func(genetic.GenerationStats)) Option {
	return func(o *options) error {
		o.onGeneration = fn
		return nil
	}
}
