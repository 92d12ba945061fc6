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

package prune

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"deps.dev/util/depsolve/catalog"
	"deps.dev/util/depsolve/version"
)

// deps builds a Metadata with the given depends entries.
func deps(kv ...any) catalog.Metadata {
	md := catalog.Metadata{Depends: make(map[string]version.ConstraintList)}
	for i := 0; i < len(kv); i += 2 {
		md.Depends[kv[i].(string)] = kv[i+1].(version.ConstraintList)
	}
	return md
}

func c(op version.Op, v string) version.Constraint {
	return version.Constraint{Op: op, Version: v}
}

func TestDiamond(t *testing.T) {
	cat := catalog.Catalog{
		"A": {"1.0": deps("B", version.ConstraintList{c(version.Ge, "2.0")})},
		"C": {"1.0": deps("B", version.ConstraintList{c(version.Lt, "3.0")})},
		"B": {"1.0": {}, "2.0": {}, "2.5": {}, "3.0": {}},
	}
	res := Run(cat)
	want := map[string]Record{
		"B": {
			Status:     Constrained,
			Versions:   []string{"2.0", "2.5"},
			Conditions: version.ConstraintList{c(version.Ge, "2.0"), c(version.Lt, "3.0")},
			InCatalog:  true,
		},
		"A": {Status: Fixed, Version: "1.0", InCatalog: true},
		"C": {Status: Fixed, Version: "1.0", InCatalog: true},
	}
	if diff := cmp.Diff(res.Resolved, want, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Resolved:\n(- got, + want):\n%s", diff)
	}
	if len(res.Remaining) != 0 {
		t.Errorf("Remaining = %v, want none", res.Remaining)
	}
	if diff := cmp.Diff(res.Rounds, []int{1, 3}); diff != "" {
		t.Errorf("Rounds:\n(- got, + want):\n%s", diff)
	}
}

func TestWildcardSkipped(t *testing.T) {
	cat := catalog.Catalog{
		"A": {"1.0": deps("B", version.ConstraintList{c(version.Eq, "1.4.*")})},
		"D": {"1.0": deps("B", version.ConstraintList{c(version.Ge, "1.4")})},
		"B": {"1.3": {}, "1.4.2": {}, "2.0": {}},
	}
	res := Run(cat)
	got := res.Resolved["B"]
	if got.Status != Constrained {
		t.Fatalf("B status = %v, want %v", got.Status, Constrained)
	}
	if diff := cmp.Diff(got.Versions, []string{"1.4.2", "2.0"}); diff != "" {
		t.Errorf("B versions:\n(- got, + want):\n%s", diff)
	}
}

func TestWildcardOnly(t *testing.T) {
	g := NewGraph(catalog.Catalog{"B": {"1.3": {}, "1.4.2": {}}})
	got := g.Intersect("B", version.ConstraintList{c(version.Eq, "1.4.*"), c(version.Ne, "1.*")})
	if diff := cmp.Diff(got, []string{"1.3", "1.4.2"}); diff != "" {
		t.Errorf("Intersect:\n(- got, + want):\n%s", diff)
	}
}

func TestIntersectSkipsBadOperator(t *testing.T) {
	g := NewGraph(catalog.Catalog{"B": {"1": {}, "2": {}}})
	got := g.Intersect("B", version.ConstraintList{{Op: version.Op(77), Version: "1"}, c(version.Gt, "1")})
	if diff := cmp.Diff(got, []string{"2"}); diff != "" {
		t.Errorf("Intersect:\n(- got, + want):\n%s", diff)
	}
}

func TestGraph(t *testing.T) {
	cat := catalog.Catalog{
		"A": {
			"1": deps("B", version.ConstraintList{c(version.Ge, "1")}, "python", version.ConstraintList{c(version.Ge, "3.8")}),
			"2": deps("B", version.ConstraintList{c(version.Ge, "2")}, "ext", version.ConstraintList{}),
		},
		"B": {"1": {}, "2": {}},
	}
	g := NewGraph(cat)
	if diff := cmp.Diff(g.Nodes(), []string{"A", "B", "ext"}); diff != "" {
		t.Errorf("Nodes:\n(- got, + want):\n%s", diff)
	}
	if diff := cmp.Diff(g.Leaves(), []string{"B", "ext"}); diff != "" {
		t.Errorf("Leaves:\n(- got, + want):\n%s", diff)
	}
	want := version.ConstraintList{c(version.Ge, "1"), c(version.Ge, "2")}
	if diff := cmp.Diff(g.Constraints("B"), want); diff != "" {
		t.Errorf("Constraints(B):\n(- got, + want):\n%s", diff)
	}
	g.Remove("B")
	if diff := cmp.Diff(g.Leaves(), []string{"ext"}); diff != "" {
		t.Errorf("Leaves after removing B:\n(- got, + want):\n%s", diff)
	}
	g.Remove("ext")
	if diff := cmp.Diff(g.Leaves(), []string{"A"}); diff != "" {
		t.Errorf("Leaves after removing ext:\n(- got, + want):\n%s", diff)
	}
	if got := g.Dependents("B"); len(got) != 0 {
		t.Errorf("Dependents(B) = %v after removal", got)
	}
}

func splitCatalog() catalog.Catalog {
	return catalog.Catalog{
		"A": {"1.0": deps(
			"B", version.ConstraintList{c(version.Ge, "2.0")},
			"Q", version.ConstraintList{c(version.Ge, "1")},
		)},
		"B": {"1.0": {}, "2.0": {}, "2.5": {}},
		"C": {},
		"X": {"1": deps("Y", version.ConstraintList{}, "Z", version.ConstraintList{})},
		"Y": {"1": deps("X", version.ConstraintList{})},
		"Z": {"1": {}},
	}
}

func TestCycleRemains(t *testing.T) {
	res := Run(splitCatalog())
	if diff := cmp.Diff(res.Remaining, []string{"X", "Y"}); diff != "" {
		t.Errorf("Remaining:\n(- got, + want):\n%s", diff)
	}
	if res.Capped {
		t.Errorf("Capped = true, want false")
	}
	want := Stats{Fixed: 2, Candidates: 1, Unsatisfiable: 2, Remaining: 2}
	if diff := cmp.Diff(res.Stats(), want); diff != "" {
		t.Errorf("Stats:\n(- got, + want):\n%s", diff)
	}
	if rec := res.Resolved["Q"]; !rec.Unsatisfiable() || rec.InCatalog {
		t.Errorf("Q = %+v, want unsatisfiable outside the catalog", rec)
	}
	if rec := res.Resolved["C"]; !rec.Unsatisfiable() || !rec.InCatalog {
		t.Errorf("C = %+v, want unsatisfiable inside the catalog", rec)
	}
}

func TestSplit(t *testing.T) {
	cat := splitCatalog()
	reduced, pre := Run(cat).Split(cat)
	if diff := cmp.Diff(reduced.Names(), []string{"C", "X", "Y"}); diff != "" {
		t.Errorf("reduced catalog:\n(- got, + want):\n%s", diff)
	}
	if diff := cmp.Diff(pre.Fixed, map[string]string{"A": "1.0", "Z": "1"}); diff != "" {
		t.Errorf("Fixed:\n(- got, + want):\n%s", diff)
	}
	if diff := cmp.Diff(pre.Constrained, map[string][]string{"B": {"2.0", "2.5"}}); diff != "" {
		t.Errorf("Constrained:\n(- got, + want):\n%s", diff)
	}
	if diff := cmp.Diff(pre.Catalog.Names(), []string{"A", "B", "Z"}); diff != "" {
		t.Errorf("Precomputed catalog:\n(- got, + want):\n%s", diff)
	}
	if diff := cmp.Diff(pre.Assignment(), map[string]string{"A": "1.0", "B": "2.5", "Z": "1"}); diff != "" {
		t.Errorf("Assignment:\n(- got, + want):\n%s", diff)
	}
	if diff := cmp.Diff(pre.Names(), []string{"A", "B", "Z"}); diff != "" {
		t.Errorf("Names:\n(- got, + want):\n%s", diff)
	}
}

func TestMonotonic(t *testing.T) {
	res := Run(splitCatalog())
	prev := 0
	for i, n := range res.Rounds {
		if n <= prev {
			t.Errorf("round %d resolved total %d, previous %d", i+1, n, prev)
		}
		prev = n
	}
	for _, pkg := range res.Remaining {
		if _, ok := res.Resolved[pkg]; ok {
			t.Errorf("%s is both resolved and remaining", pkg)
		}
	}
}

func TestIdempotent(t *testing.T) {
	cat := splitCatalog()
	first := Run(cat)
	second := Run(cat.Subset(first.Remaining))
	for _, pkg := range first.Remaining {
		if rec, ok := second.Resolved[pkg]; ok {
			t.Errorf("second run resolved remaining package %s: %+v", pkg, rec)
		}
	}
	if diff := cmp.Diff(second.Remaining, first.Remaining); diff != "" {
		t.Errorf("second run remaining:\n(- got, + want):\n%s", diff)
	}
}

func TestRoundCap(t *testing.T) {
	cat := catalog.Catalog{
		"A": {"1": deps("B", version.ConstraintList{})},
		"B": {"1": deps("C", version.ConstraintList{})},
		"C": {"1": {}},
	}
	p := Pruner{MaxRounds: 1}
	res := p.Run(NewGraph(cat))
	if !res.Capped {
		t.Errorf("Capped = false, want true")
	}
	if diff := cmp.Diff(res.Remaining, []string{"A", "B"}); diff != "" {
		t.Errorf("Remaining:\n(- got, + want):\n%s", diff)
	}
	if diff := cmp.Diff(res.Rounds, []int{1}); diff != "" {
		t.Errorf("Rounds:\n(- got, + want):\n%s", diff)
	}
}

func TestIsolatedPackages(t *testing.T) {
	res := Run(catalog.Catalog{"solo": {"1": {}, "2": {}}, "one": {"3": {}}})
	want := map[string]Record{
		"solo": {Status: Constrained, Versions: []string{"1", "2"}, InCatalog: true},
		"one":  {Status: Fixed, Version: "3", InCatalog: true},
	}
	if diff := cmp.Diff(res.Resolved, want, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Resolved:\n(- got, + want):\n%s", diff)
	}
}
