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
	"fmt"
	"maps"
	"slices"
	"strings"

	"deps.dev/util/depsolve/catalog"
	"deps.dev/util/depsolve/version"
)

// Edge is one dependency declaration: the version of the dependent package
// that declares it and the constraints it places on the dependency.
type Edge struct {
	Version     string
	Constraints version.ConstraintList
}

// Graph is a mutable dependency graph over package names. Every package of
// the catalog it was built from is a node, as is every package named as a
// dependency, whether or not the catalog knows it.
//
// For a dependent package p and a dependency d, forward[p][d] and
// reverse[d][p] hold the same edges.
type Graph struct {
	cat     catalog.Catalog
	nodes   map[string]bool
	forward map[string]map[string][]Edge
	reverse map[string]map[string][]Edge
}

// NewGraph builds the dependency graph of a catalog. Dependencies on the
// interpreter are not part of the graph.
func NewGraph(cat catalog.Catalog) *Graph {
	g := &Graph{
		cat:     cat,
		nodes:   make(map[string]bool),
		forward: make(map[string]map[string][]Edge),
		reverse: make(map[string]map[string][]Edge),
	}
	for _, pkg := range cat.Names() {
		g.nodes[pkg] = true
		for _, ver := range cat.Versions(pkg) {
			md := cat[pkg][ver]
			for _, dep := range slices.Sorted(maps.Keys(md.Depends)) {
				if catalog.IsInterpreter(dep) {
					continue
				}
				g.addEdge(pkg, dep, Edge{Version: ver, Constraints: md.Depends[dep]})
			}
		}
	}
	return g
}

func (g *Graph) addEdge(from, to string, e Edge) {
	g.nodes[to] = true
	if g.forward[from] == nil {
		g.forward[from] = make(map[string][]Edge)
	}
	g.forward[from][to] = append(g.forward[from][to], e)
	if g.reverse[to] == nil {
		g.reverse[to] = make(map[string][]Edge)
	}
	g.reverse[to][from] = append(g.reverse[to][from], e)
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Has reports whether pkg is a node of the graph.
func (g *Graph) Has(pkg string) bool { return g.nodes[pkg] }

// Nodes returns the node names in lexicographic order.
func (g *Graph) Nodes() []string {
	return slices.Sorted(maps.Keys(g.nodes))
}

// Dependencies returns the names of the direct dependencies of pkg in
// lexicographic order.
func (g *Graph) Dependencies(pkg string) []string {
	return slices.Sorted(maps.Keys(g.forward[pkg]))
}

// Dependents returns the names of the packages that depend on pkg in
// lexicographic order.
func (g *Graph) Dependents(pkg string) []string {
	return slices.Sorted(maps.Keys(g.reverse[pkg]))
}

// Leaves returns, in lexicographic order, the nodes without outgoing
// edges. Incoming edges do not matter.
func (g *Graph) Leaves() []string {
	var leaves []string
	for _, n := range g.Nodes() {
		if len(g.forward[n]) == 0 {
			leaves = append(leaves, n)
		}
	}
	return leaves
}

// Constraints returns the conjunction of all constraints placed on pkg by
// the remaining dependents, ordered by dependent name then declaring
// version.
func (g *Graph) Constraints(pkg string) version.ConstraintList {
	var cl version.ConstraintList
	for _, parent := range g.Dependents(pkg) {
		for _, e := range g.reverse[pkg][parent] {
			cl = append(cl, e.Constraints...)
		}
	}
	return cl
}

// Intersect returns the catalog versions of pkg, in ascending order, that
// meet every constraint of cl. Constraints with a wildcard target, and
// constraints that cannot be evaluated, are skipped rather than counted
// against a version. A package unknown to the catalog has no versions.
func (g *Graph) Intersect(pkg string, cl version.ConstraintList) []string {
	var out []string
	for _, v := range g.cat.Versions(pkg) {
		if admits(cl, v) {
			out = append(out, v)
		}
	}
	return out
}

func admits(cl version.ConstraintList, v string) bool {
	for _, c := range cl {
		if version.IsWildcard(c.Version) {
			continue
		}
		ok, err := c.Check(v)
		if err != nil {
			continue
		}
		if !ok {
			return false
		}
	}
	return true
}

// Remove deletes pkg and every edge into or out of it. Dependents left
// without dependencies become leaves.
func (g *Graph) Remove(pkg string) {
	for dep := range g.forward[pkg] {
		delete(g.reverse[dep], pkg)
		if len(g.reverse[dep]) == 0 {
			delete(g.reverse, dep)
		}
	}
	for parent := range g.reverse[pkg] {
		delete(g.forward[parent], pkg)
		if len(g.forward[parent]) == 0 {
			delete(g.forward, parent)
		}
	}
	delete(g.forward, pkg)
	delete(g.reverse, pkg)
	delete(g.nodes, pkg)
}

// String renders the graph as one "pkg -> dep, dep" line per node, for
// debugging.
func (g *Graph) String() string {
	var sb strings.Builder
	for _, n := range g.Nodes() {
		fmt.Fprintf(&sb, "%s -> %s\n", n, strings.Join(g.Dependencies(n), ", "))
	}
	return sb.String()
}
