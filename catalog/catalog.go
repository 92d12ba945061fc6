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
Package catalog holds the package metadata a solve works from.

A Catalog maps package names to their known versions, and each version to the
dependencies it requires (Depends) and the conditional constraints it places on
other packages should they be installed (Constrains). The names "python" and
"python_abi" denote the interpreter; constraints on them are resolved against
the single interpreter decision rather than a package of their own.

A Catalog is never modified once a solve starts. Functions that derive a new
catalog, such as Restrict, share Metadata values with their input.
*/
package catalog

import (
	"maps"
	"slices"
	"sort"

	"deps.dev/util/depsolve/version"
	"deps.dev/util/pypi"
)

// Interpreter is the canonical name of the interpreter pseudo-package.
const Interpreter = "python"

// IsInterpreter reports whether name refers to the interpreter rather than
// a regular package.
func IsInterpreter(name string) bool {
	return name == Interpreter || name == "python_abi"
}

// Metadata describes a single version of a package.
type Metadata struct {
	// Depends maps each required package to the constraints its version
	// must meet.
	Depends map[string]version.ConstraintList
	// Constrains maps packages to constraints that only apply if that
	// package is installed.
	Constrains map[string]version.ConstraintList
}

// Catalog maps package name to version string to Metadata. A package with
// no versions is known to exist but cannot be installed.
type Catalog map[string]map[string]Metadata

// HardConstraints maps package names to constraints the final assignment
// must meet.
type HardConstraints map[string]version.ConstraintList

// Names returns the package names in lexicographic order.
func (c Catalog) Names() []string {
	return slices.Sorted(maps.Keys(c))
}

// Has reports whether pkg is in the catalog, with or without versions.
func (c Catalog) Has(pkg string) bool {
	_, ok := c[pkg]
	return ok
}

// Installable reports whether pkg has at least one known version.
func (c Catalog) Installable(pkg string) bool {
	return len(c[pkg]) > 0
}

// Versions returns the versions of pkg in ascending version order. Versions
// that compare equal are ordered by their string to keep the result
// deterministic.
func (c Catalog) Versions(pkg string) []string {
	vs := slices.Collect(maps.Keys(c[pkg]))
	sort.Strings(vs)
	version.Sort(vs)
	return vs
}

// Lookup returns the metadata of a version.
func (c Catalog) Lookup(pkg, ver string) (Metadata, bool) {
	md, ok := c[pkg][ver]
	return md, ok
}

// Len returns the number of (package, version) pairs.
func (c Catalog) Len() int {
	n := 0
	for _, vs := range c {
		n += len(vs)
	}
	return n
}

// Canonical returns the catalog key that names pkg. An exact key wins;
// otherwise names are compared in their canonical PyPI form, so
// "Typing_Extensions" finds "typing-extensions". The first match in name
// order is returned.
func (c Catalog) Canonical(pkg string) (string, bool) {
	if c.Has(pkg) {
		return pkg, true
	}
	want := pypi.CanonPackageName(pkg)
	for _, name := range c.Names() {
		if pypi.CanonPackageName(name) == want {
			return name, true
		}
	}
	return "", false
}

// Restrict returns the part of the catalog reachable from roots through
// Depends and Constrains edges of any version. Roots and edge targets that
// are not in the catalog are ignored, as are interpreter references.
func (c Catalog) Restrict(roots []string) Catalog {
	out := make(Catalog)
	queue := slices.Clone(roots)
	for len(queue) > 0 {
		pkg := queue[0]
		queue = queue[1:]
		if IsInterpreter(pkg) {
			continue
		}
		name, ok := c.Canonical(pkg)
		if !ok {
			continue
		}
		if _, seen := out[name]; seen {
			continue
		}
		out[name] = c[name]
		for _, ver := range c.Versions(name) {
			md := c[name][ver]
			for _, dep := range slices.Sorted(maps.Keys(md.Depends)) {
				queue = append(queue, dep)
			}
			for _, tgt := range slices.Sorted(maps.Keys(md.Constrains)) {
				queue = append(queue, tgt)
			}
		}
	}
	return out
}

// Subset returns a catalog with only the named packages that exist in c.
func (c Catalog) Subset(names []string) Catalog {
	out := make(Catalog, len(names))
	for _, n := range names {
		if vs, ok := c[n]; ok {
			out[n] = vs
		}
	}
	return out
}

// Merge returns a copy of h with the constraints of o appended for every
// package they share, and o's other packages added.
func (h HardConstraints) Merge(o HardConstraints) HardConstraints {
	out := make(HardConstraints, len(h)+len(o))
	for pkg, cl := range h {
		out[pkg] = cl.Clone()
	}
	for pkg, cl := range o {
		out[pkg] = append(out[pkg], cl...)
	}
	return out
}

// Names returns the constrained package names in lexicographic order.
func (h HardConstraints) Names() []string {
	return slices.Sorted(maps.Keys(h))
}
