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
Package prune shrinks a catalog by constraint propagation before any search
takes place.

The pruner works on a Graph of the catalog. In each round it takes every
leaf, a node with no remaining dependencies, and intersects its versions
with the constraints all of its remaining dependents place on it. The
outcome is recorded and the leaf is removed, which may turn its dependents
into leaves for the next round. Rounds stop when no leaf is left, or after
MaxRounds. Nodes that remain are part of a dependency cycle and are handed
to the search unresolved.

The intersection only looks at the dependents still present when the leaf
is resolved, so a resolution is a sound restriction of the leaf's versions
with respect to those dependents, not a proof that any complete assignment
exists.
*/
package prune

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"deps.dev/util/depsolve/catalog"
	"deps.dev/util/depsolve/version"
)

// MaxRounds bounds the number of pruning rounds.
const MaxRounds = 1000

// Status is the outcome of resolving a package.
type Status byte

const (
	// Fixed means exactly one version survived.
	Fixed Status = iota + 1
	// Constrained means zero or several versions survived.
	Constrained
)

func (s Status) String() string {
	switch s {
	case Fixed:
		return "fixed"
	case Constrained:
		return "constrained"
	}
	return fmt.Sprintf("Status(%d)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if s != Fixed && s != Constrained {
		return nil, fmt.Errorf("invalid status %d", s)
	}
	return []byte(s.String()), nil
}

// Record describes how a package was resolved.
type Record struct {
	Status Status `json:"status"`
	// Version is the surviving version of a Fixed package.
	Version string `json:"version,omitempty"`
	// Versions holds the surviving versions of a Constrained package in
	// ascending order. It is empty if the package is unsatisfiable.
	Versions []string `json:"valid_versions,omitempty"`
	// Conditions holds the constraints the package was resolved against.
	Conditions version.ConstraintList `json:"conditions,omitempty"`
	// InCatalog reports whether the package is known to the catalog. An
	// unsatisfiable package outside the catalog is merely referenced.
	InCatalog bool `json:"in_catalog"`
}

// Unsatisfiable reports whether no version of the package survived.
func (r Record) Unsatisfiable() bool {
	return r.Status == Constrained && len(r.Versions) == 0
}

// HasCandidates reports whether the package is Constrained with at least
// one surviving version.
func (r Record) HasCandidates() bool {
	return r.Status == Constrained && len(r.Versions) > 0
}

// Pruner resolves the leaves of a Graph round by round. The zero value is
// ready to use.
type Pruner struct {
	// MaxRounds overrides the default round cap if positive.
	MaxRounds int
	// Logger receives a record per round at debug level and a summary at
	// info level. A nil Logger discards them.
	Logger *slog.Logger
}

// Result is the outcome of a pruning run.
type Result struct {
	// Resolved maps each resolved package to its record.
	Resolved map[string]Record
	// Remaining lists, in lexicographic order, the nodes left in the graph.
	Remaining []string
	// Rounds holds the total number of resolved packages after each round.
	Rounds []int
	// Capped reports that the run stopped at the round cap with leaves
	// still present.
	Capped bool
}

// Stats counts the packages of a Result by outcome.
type Stats struct {
	Fixed         int `json:"fixed"`
	Candidates    int `json:"constrained"`
	Unsatisfiable int `json:"unsatisfiable"`
	Remaining     int `json:"remaining"`
}

// Stats counts the resolved and remaining packages.
func (r *Result) Stats() Stats {
	s := Stats{Remaining: len(r.Remaining)}
	for _, rec := range r.Resolved {
		switch {
		case rec.Status == Fixed:
			s.Fixed++
		case rec.HasCandidates():
			s.Candidates++
		default:
			s.Unsatisfiable++
		}
	}
	return s
}

// Run builds the graph of cat and prunes it with the default settings.
func Run(cat catalog.Catalog) *Result {
	var p Pruner
	return p.Run(NewGraph(cat))
}

func (p *Pruner) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// Run prunes g in place until no leaf remains or the round cap is reached.
func (p *Pruner) Run(g *Graph) *Result {
	log := p.logger()
	maxRounds := p.MaxRounds
	if maxRounds <= 0 {
		maxRounds = MaxRounds
	}
	res := &Result{Resolved: make(map[string]Record)}
	for round := 1; ; round++ {
		leaves := g.Leaves()
		if len(leaves) == 0 {
			break
		}
		if round > maxRounds {
			res.Capped = true
			break
		}
		for _, pkg := range leaves {
			res.Resolved[pkg] = resolve(g, pkg)
			g.Remove(pkg)
		}
		res.Rounds = append(res.Rounds, len(res.Resolved))
		log.Debug("prune round", "round", round, "leaves", len(leaves), "resolved", len(res.Resolved), "nodes", g.Len())
	}
	res.Remaining = g.Nodes()
	s := res.Stats()
	log.Info("pruning done",
		"rounds", len(res.Rounds),
		"fixed", s.Fixed,
		"constrained", s.Candidates,
		"unsatisfiable", s.Unsatisfiable,
		"remaining", s.Remaining,
		"capped", res.Capped)
	return res
}

// resolve classifies a leaf by the versions that survive the constraints of
// its dependents.
func resolve(g *Graph, pkg string) Record {
	cl := g.Constraints(pkg)
	valid := g.Intersect(pkg, cl)
	rec := Record{Conditions: cl, InCatalog: g.cat.Has(pkg)}
	if len(valid) == 1 {
		rec.Status = Fixed
		rec.Version = valid[0]
		return rec
	}
	rec.Status = Constrained
	rec.Versions = valid
	return rec
}

// Precomputed holds the packages pruning settled well enough to leave out
// of the search.
type Precomputed struct {
	// Fixed maps packages to their only surviving version.
	Fixed map[string]string
	// Constrained maps packages to their surviving versions, ascending.
	Constrained map[string][]string
	// Catalog holds the full catalog entries of the packages above.
	Catalog catalog.Catalog
}

// Assignment pins every precomputed package to a version: the surviving
// version of a Fixed package and the highest surviving version of a
// Constrained one.
func (p *Precomputed) Assignment() map[string]string {
	out := make(map[string]string, len(p.Fixed)+len(p.Constrained))
	maps.Copy(out, p.Fixed)
	for pkg, vs := range p.Constrained {
		if v, ok := version.Highest(vs); ok {
			out[pkg] = v
		}
	}
	return out
}

// Names returns the precomputed package names in lexicographic order.
func (p *Precomputed) Names() []string {
	names := slices.Collect(maps.Keys(p.Fixed))
	for pkg := range p.Constrained {
		names = append(names, pkg)
	}
	slices.Sort(names)
	return names
}

// Split divides cat by the pruning outcome. The reduced catalog holds the
// remaining packages and the unsatisfiable packages present in cat; these
// are what the search still has to decide. Everything else pruning
// resolved with at least one version goes into the Precomputed registry.
// Packages cat does not know are in neither.
func (r *Result) Split(cat catalog.Catalog) (catalog.Catalog, *Precomputed) {
	reduced := make(catalog.Catalog)
	pre := &Precomputed{
		Fixed:       make(map[string]string),
		Constrained: make(map[string][]string),
		Catalog:     make(catalog.Catalog),
	}
	for _, pkg := range r.Remaining {
		if vs, ok := cat[pkg]; ok {
			reduced[pkg] = vs
		}
	}
	for pkg, rec := range r.Resolved {
		vs, ok := cat[pkg]
		switch {
		case !ok:
		case rec.Status == Fixed:
			pre.Fixed[pkg] = rec.Version
			pre.Catalog[pkg] = vs
		case rec.HasCandidates():
			pre.Constrained[pkg] = slices.Clone(rec.Versions)
			pre.Catalog[pkg] = vs
		default:
			reduced[pkg] = vs
		}
	}
	return reduced, pre
}
