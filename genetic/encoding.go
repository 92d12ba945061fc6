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
	"errors"
	"math/rand"

	"deps.dev/util/depsolve/catalog"
	"deps.dev/util/depsolve/version"
)

// Choice is the value of a decision slot: either an installed version or
// not installed at all.
type Choice struct {
	Version   string
	Installed bool
}

// NotInstalled is the Choice of leaving a package out.
var NotInstalled = Choice{}

// Install returns the Choice of installing version v.
func Install(v string) Choice {
	return Choice{Version: v, Installed: true}
}

func (c Choice) String() string {
	if !c.Installed {
		return "<not installed>"
	}
	return c.Version
}

// Chromosome holds one choice index per gene. Gene 0 selects the
// interpreter.
type Chromosome []int

// Clone returns a copy of c.
func (c Chromosome) Clone() Chromosome {
	return append(Chromosome(nil), c...)
}

// ErrNoInterpreters is returned when an Encoding is built without any
// interpreter candidate.
var ErrNoInterpreters = errors.New("no interpreter candidates")

// Encoding maps chromosomes to assignments. Gene 0 chooses among the
// interpreter candidates; gene i, for i > 0, chooses for Packages[i-1]
// among NotInstalled followed by the package's versions in ascending order.
// An Encoding is immutable once built.
type Encoding struct {
	Interpreters []string
	Packages     []string
	Genes        [][]Choice
	index        map[string]int
}

// NewEncoding builds the gene space of a catalog. Packages appear in
// lexicographic order.
func NewEncoding(cat catalog.Catalog, interpreters []string) (*Encoding, error) {
	if len(interpreters) == 0 {
		return nil, ErrNoInterpreters
	}
	e := &Encoding{
		Interpreters: append([]string(nil), interpreters...),
		Packages:     cat.Names(),
		index:        make(map[string]int),
	}
	interp := make([]Choice, len(interpreters))
	for i, v := range interpreters {
		interp[i] = Install(v)
	}
	e.Genes = append(e.Genes, interp)
	for i, pkg := range e.Packages {
		choices := []Choice{NotInstalled}
		for _, v := range cat.Versions(pkg) {
			choices = append(choices, Install(v))
		}
		e.Genes = append(e.Genes, choices)
		e.index[pkg] = i + 1
	}
	return e, nil
}

// Len returns the number of genes, which is the length of every
// chromosome of the encoding.
func (e *Encoding) Len() int { return len(e.Genes) }

// Gene returns the gene index of a package.
func (e *Encoding) Gene(pkg string) (int, bool) {
	i, ok := e.index[pkg]
	return i, ok
}

// Assignment is a decoded chromosome.
type Assignment struct {
	Interpreter Choice
	Packages    map[string]Choice
}

// Installed returns the installed packages and their versions.
func (a Assignment) Installed() map[string]string {
	out := make(map[string]string)
	for pkg, c := range a.Packages {
		if c.Installed {
			out[pkg] = c.Version
		}
	}
	return out
}

// choice returns the choice gene i takes in c. Missing genes and indexes
// outside the choice list decode as NotInstalled.
func (e *Encoding) choice(c Chromosome, i int) Choice {
	if i >= len(c) || c[i] < 0 || c[i] >= len(e.Genes[i]) {
		return NotInstalled
	}
	return e.Genes[i][c[i]]
}

// Decode maps a chromosome to its assignment. Every package of the
// encoding appears in the result. Decode never fails and does not modify c.
func (e *Encoding) Decode(c Chromosome) Assignment {
	a := Assignment{
		Interpreter: e.choice(c, 0),
		Packages:    make(map[string]Choice, len(e.Packages)),
	}
	for i, pkg := range e.Packages {
		a.Packages[pkg] = e.choice(c, i+1)
	}
	return a
}

// Random draws every gene uniformly from its choices.
func (e *Encoding) Random(rng *rand.Rand) Chromosome {
	c := make(Chromosome, len(e.Genes))
	for i, g := range e.Genes {
		c[i] = rng.Intn(len(g))
	}
	return c
}

// Seeded draws a random chromosome, then points every gene with a hard
// constraint at the first choice that meets it, or at the highest version
// if none does. Constraints on the interpreter seed gene 0.
func (e *Encoding) Seeded(rng *rand.Rand, hard catalog.HardConstraints) Chromosome {
	c := e.Random(rng)
	for _, pkg := range hard.Names() {
		i, ok := e.Gene(pkg)
		if catalog.IsInterpreter(pkg) {
			i, ok = 0, true
		}
		if !ok {
			continue
		}
		if j, ok := seedIndex(e.Genes[i], hard[pkg]); ok {
			c[i] = j
		}
	}
	return c
}

// seedIndex picks the first installed choice that satisfies cl, falling
// back to the highest installed version. It reports false if no choice is
// installed.
func seedIndex(choices []Choice, cl version.ConstraintList) (int, bool) {
	best := -1
	for j, ch := range choices {
		if !ch.Installed {
			continue
		}
		if cl.SatisfiedBy(ch.Version) {
			return j, true
		}
		if best < 0 || version.Compare(ch.Version, choices[best].Version) > 0 {
			best = j
		}
	}
	return best, best >= 0
}
