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

/*
Package depsolve chooses an interpreter version and a version, or no
version, for every package of a catalog so that as many dependency
constraints as possible hold.

Solve works in two stages. Pruning (package prune) resolves the packages
whose version follows from their dependents' constraints alone, peeling
leaves off the dependency graph. A genetic search (package genetic) then
decides the packages pruning left open, scoring candidates against the
whole catalog with the pruned packages pinned.

The catalog package holds the data model and its file formats, registry
builds catalogs from PyPI metadata, requirements reads pip requirement
lists, and validate re-checks a finished solution.
*/
package depsolve

import (
	"context"
	"log/slog"
	"time"

	"deps.dev/util/depsolve/catalog"
	"deps.dev/util/depsolve/genetic"
	"deps.dev/util/depsolve/prune"
)

// Solution is the outcome of Solve.
type Solution struct {
	PythonVersion string `json:"python_version" yaml:"python_version"`
	// Packages maps every installed package to its version.
	Packages map[string]string `json:"packages" yaml:"packages"`
	Fitness  float64           `json:"fitness" yaml:"fitness"`

	// Decisions holds every package the solve decided, with nil for the
	// packages left uninstalled.
	Decisions map[string]*string `json:"-" yaml:"-"`
	Breakdown genetic.Breakdown  `json:"-" yaml:"-"`
	Report    Report             `json:"-" yaml:"-"`
}

// Detailed is the long form of a Solution.
type Detailed struct {
	PythonVersion     string             `json:"python_version" yaml:"python_version"`
	AllPackages       map[string]*string `json:"all_packages" yaml:"all_packages"`
	InstalledPackages map[string]string  `json:"installed_packages" yaml:"installed_packages"`
	Fitness           float64            `json:"fitness" yaml:"fitness"`
	Breakdown         genetic.Breakdown  `json:"breakdown" yaml:"breakdown"`
	Report            Report             `json:"report" yaml:"report"`
}

// Detailed returns the long form of s.
func (s *Solution) Detailed() Detailed {
	return Detailed{
		PythonVersion:     s.PythonVersion,
		AllPackages:       s.Decisions,
		InstalledPackages: s.Packages,
		Fitness:           s.Fitness,
		Breakdown:         s.Breakdown,
		Report:            s.Report,
	}
}

// Report describes how a Solve went.
type Report struct {
	// Packages is the number of packages in scope.
	Packages int         `json:"packages" yaml:"packages"`
	Pruning  prune.Stats `json:"pruning" yaml:"pruning"`
	Rounds   int         `json:"pruning_rounds" yaml:"pruning_rounds"`
	Capped   bool        `json:"pruning_capped" yaml:"pruning_capped"`
	// Searched is the number of packages left to the genetic search and
	// Pinned the number of packages pruning decided.
	Searched    int                       `json:"searched" yaml:"searched"`
	Pinned      int                       `json:"pinned" yaml:"pinned"`
	Generations int                       `json:"generations" yaml:"generations"`
	History     []genetic.GenerationStats `json:"history,omitempty" yaml:"history,omitempty"`
	Duration    time.Duration             `json:"duration_ns" yaml:"duration_ns"`
}

// Solve searches for the best assignment of cat. If the context is done
// before the search finishes, Solve returns the best solution found so far
// together with the context's error, or a nil Solution if there is none.
func Solve(ctx context.Context, cat catalog.Catalog, opts ...Option) (*Solution, error) {
	start := time.Now()
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	log := o.logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	work := cat
	if len(o.roots) > 0 {
		work = cat.Restrict(o.roots)
		log.Info("restricted catalog", "roots", len(o.roots), "packages", len(work))
	}
	hard := canonicalize(work, o.hard)

	p := prune.Pruner{MaxRounds: o.maxRounds, Logger: log}
	pruned := p.Run(prune.NewGraph(work))
	reduced, pre := pruned.Split(work)
	// A hard constraint may rule out the version pruning would pin, so
	// packages it names go back to the search instead.
	for _, pkg := range hard.Names() {
		if _, ok := pre.Constrained[pkg]; ok {
			delete(pre.Constrained, pkg)
		} else if v, ok := pre.Fixed[pkg]; ok && !hard[pkg].SatisfiedBy(v) {
			delete(pre.Fixed, pkg)
		} else {
			continue
		}
		delete(pre.Catalog, pkg)
		reduced[pkg] = work[pkg]
	}
	pinned := pre.Assignment()
	stats := pruned.Stats()
	o.metrics.observePruning(stats)

	enc, err := genetic.NewEncoding(reduced, o.interpreters)
	if err != nil {
		return nil, err
	}
	ev := genetic.NewEvaluator(enc, work, hard, pinned)
	ev.SetWeights(o.weights)
	search, err := genetic.NewSearch(enc, ev, o.config)
	if err != nil {
		return nil, err
	}
	search.Logger = log
	search.OnGeneration = func(s genetic.GenerationStats) {
		o.metrics.observeGeneration(o.config.PopulationSize, s)
		if o.onGeneration != nil {
			o.onGeneration(s)
		}
	}
	log.Info("searching", "genes", enc.Len(), "pinned", len(pinned), "hard_constraints", len(hard))

	res, err := search.Run(ctx)
	if res == nil {
		return nil, err
	}
	sol := &Solution{
		PythonVersion: res.Assignment.Interpreter.Version,
		Packages:      make(map[string]string),
		Fitness:       res.Fitness(),
		Decisions:     make(map[string]*string),
		Breakdown:     res.Breakdown,
		Report: Report{
			Packages:    len(work),
			Pruning:     stats,
			Rounds:      len(pruned.Rounds),
			Capped:      pruned.Capped,
			Searched:    len(enc.Packages),
			Pinned:      len(pinned),
			Generations: res.Generations,
			History:     res.History,
		},
	}
	for pkg, v := range pinned {
		sol.Packages[pkg] = v
		sol.Decisions[pkg] = &v
	}
	for pkg, c := range res.Assignment.Packages {
		if !c.Installed {
			delete(sol.Packages, pkg)
			sol.Decisions[pkg] = nil
			continue
		}
		v := c.Version
		sol.Packages[pkg] = v
		sol.Decisions[pkg] = &v
	}
	sol.Report.Duration = time.Since(start)
	o.metrics.observeSolve(sol.Report.Duration)
	log.Info("solved", "fitness", sol.Fitness, "python", sol.PythonVersion, "installed", len(sol.Packages))
	return sol, err
}

// canonicalize renames the hard constraints of packages the catalog knows
// under another spelling to the catalog's key.
func canonicalize(cat catalog.Catalog, h catalog.HardConstraints) catalog.HardConstraints {
	if len(h) == 0 {
		return h
	}
	out := make(catalog.HardConstraints, len(h))
	for pkg, cl := range h {
		name, ok := cat.Canonical(pkg)
		if !ok {
			name = pkg
		}
		out[name] = append(out[name], cl...)
	}
	return out
}
