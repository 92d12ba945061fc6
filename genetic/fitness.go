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

package genetic

import (
	"maps"
	"slices"

	"deps.dev/util/depsolve/catalog"
	"deps.dev/util/depsolve/version"
)

// Weights scale the terms of the fitness function. Only their relative
// order matters: a hard constraint outweighs a required package, which
// outweighs a conflict, which outweighs a missing dependency, which
// outweighs an installed package.
type Weights struct {
	Installed         float64 `json:"installed" yaml:"installed"`
	MissingDependency float64 `json:"missing_dependency" yaml:"missing_dependency"`
	Conflict          float64 `json:"conflict" yaml:"conflict"`
	ConstrainConflict float64 `json:"constrain_conflict" yaml:"constrain_conflict"`
	RequiredMissing   float64 `json:"required_missing" yaml:"required_missing"`

	HardNotInstalled float64 `json:"hard_not_installed" yaml:"hard_not_installed"`
	HardSatisfied    float64 `json:"hard_satisfied" yaml:"hard_satisfied"`
	HardUnmet        float64 `json:"hard_unmet" yaml:"hard_unmet"`
	HardDistance     float64 `json:"hard_distance" yaml:"hard_distance"`
}

// DefaultWeights are the weights used unless configured otherwise.
var DefaultWeights = Weights{
	Installed:         1,
	MissingDependency: 0.5,
	Conflict:          3,
	ConstrainConflict: 3,
	RequiredMissing:   500,

	HardNotInstalled: 1e7,
	HardSatisfied:    1e4,
	HardUnmet:        1e6,
	HardDistance:     1e5,
}

// Breakdown itemizes a fitness score.
type Breakdown struct {
	Installed           int `json:"installed"`
	MissingDependencies int `json:"missing_dependencies"`
	Conflicts           int `json:"conflicts"`
	ConstrainConflicts  int `json:"constrain_conflicts"`
	RequiredMissing     int `json:"required_missing"`

	HardSatisfied    int `json:"hard_satisfied"`
	HardUnmet        int `json:"hard_unmet"`
	HardNotInstalled int `json:"hard_not_installed"`

	// Base is the score before hard constraints; Hard is their
	// contribution. Fitness is the sum.
	Base    float64 `json:"base"`
	Hard    float64 `json:"hard"`
	Fitness float64 `json:"fitness"`
}

// Evaluator scores chromosomes of an Encoding. It only reads its inputs and
// is safe for concurrent use.
type Evaluator struct {
	enc     *Encoding
	cat     catalog.Catalog
	hard    catalog.HardConstraints
	pinned  map[string]string
	weights Weights
	// required lists, in lexicographic order, the catalog packages with at
	// least one version.
	required []string
}

// NewEvaluator returns an Evaluator that looks up metadata in cat, which is
// usually wider than the catalog the encoding was built from. Pinned
// packages take part in scoring with the given versions although no gene
// decides them. Hard may be nil.
func NewEvaluator(enc *Encoding, cat catalog.Catalog, hard catalog.HardConstraints, pinned map[string]string) *Evaluator {
	ev := &Evaluator{
		enc:     enc,
		cat:     cat,
		hard:    hard,
		pinned:  maps.Clone(pinned),
		weights: DefaultWeights,
	}
	for _, pkg := range cat.Names() {
		if cat.Installable(pkg) {
			ev.required = append(ev.required, pkg)
		}
	}
	return ev
}

// SetWeights replaces the default weights. It must not be called while
// the Evaluator is in use.
func (ev *Evaluator) SetWeights(w Weights) { ev.weights = w }

// decisions returns the choice of every package decided by c or pinned.
// Gene decisions take precedence over pins of the same package.
func (ev *Evaluator) decisions(c Chromosome) Assignment {
	a := ev.enc.Decode(c)
	for pkg, v := range ev.pinned {
		if _, ok := a.Packages[pkg]; !ok {
			a.Packages[pkg] = Install(v)
		}
	}
	return a
}

// Score returns the fitness of c.
func (ev *Evaluator) Score(c Chromosome) float64 {
	return ev.Evaluate(c).Fitness
}

// Evaluate scores c and reports how the score was made up. Constraints
// that cannot be evaluated count as unmet. A wildcard target left
// unexpanded, such as "!=3.0.*", compares as its numeric prefix "3.0", so
// it only matches that exact version.
func (ev *Evaluator) Evaluate(c Chromosome) Breakdown {
	a := ev.decisions(c)
	lookup := func(name string) (Choice, bool) {
		if catalog.IsInterpreter(name) {
			return a.Interpreter, true
		}
		ch, ok := a.Packages[name]
		return ch, ok
	}

	var b Breakdown
	for _, pkg := range slices.Sorted(maps.Keys(a.Packages)) {
		ch := a.Packages[pkg]
		if !ch.Installed {
			continue
		}
		b.Installed++
		md, ok := ev.cat.Lookup(pkg, ch.Version)
		if !ok {
			continue
		}
		for dep, cl := range md.Depends {
			got, ok := lookup(dep)
			switch {
			case !ok || !got.Installed:
				b.MissingDependencies++
			case !cl.SatisfiedBy(got.Version):
				b.Conflicts++
			}
		}
		for tgt, cl := range md.Constrains {
			got, ok := lookup(tgt)
			if ok && got.Installed && !cl.SatisfiedBy(got.Version) {
				b.ConstrainConflicts++
			}
		}
	}
	for _, pkg := range ev.required {
		if !a.Packages[pkg].Installed {
			b.RequiredMissing++
		}
	}

	w := ev.weights
	b.Base = w.Installed*float64(b.Installed) -
		w.MissingDependency*float64(b.MissingDependencies) -
		w.Conflict*float64(b.Conflicts) -
		w.ConstrainConflict*float64(b.ConstrainConflicts) -
		w.RequiredMissing*float64(b.RequiredMissing)

	for _, pkg := range ev.hard.Names() {
		got, ok := lookup(pkg)
		if !ok {
			continue
		}
		cl := ev.hard[pkg]
		switch target, exact := cl.Target(); {
		case !got.Installed:
			b.HardNotInstalled++
			b.Hard -= w.HardNotInstalled
		case cl.SatisfiedBy(got.Version):
			b.HardSatisfied++
			b.Hard += w.HardSatisfied
		case exact:
			b.HardUnmet++
			b.Hard -= w.HardUnmet + w.HardDistance*version.Distance(got.Version, target)
		default:
			b.HardUnmet++
			b.Hard -= w.HardUnmet
		}
	}
	b.Fitness = b.Base + b.Hard
	return b
}
