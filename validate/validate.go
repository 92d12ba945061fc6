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

// Package validate checks a solution file against a catalog, independently
// of how the solution was produced.
package validate

import (
	"fmt"
	"slices"
	"strings"

	"deps.dev/util/depsolve/catalog"
	"deps.dev/util/depsolve/version"
)

// Solution is an installation plan as read from a solution file. A nil
// version means the package is listed but not installed.
type Solution struct {
	PythonVersion string
	Packages      map[string]*string
}

type rawSolution struct {
	PythonVersion string             `json:"python_version" yaml:"python_version"`
	Packages      map[string]*string `json:"packages" yaml:"packages"`
	AllPackages   map[string]*string `json:"all_packages" yaml:"all_packages"`
}

// Load reads a solution file. The package map is taken from "packages", or
// from "all_packages" if the former is absent, so both the plain and the
// detailed solution formats are accepted.
func Load(path string) (*Solution, error) {
	var raw rawSolution
	if err := catalog.ReadFile(path, &raw); err != nil {
		return nil, err
	}
	pkgs := raw.Packages
	if pkgs == nil {
		pkgs = raw.AllPackages
	}
	return &Solution{PythonVersion: raw.PythonVersion, Packages: pkgs}, nil
}

// Kind classifies a Problem.
type Kind int

const (
	NullVersion Kind = iota + 1
	UnknownPackage
	UnknownVersion
	MissingDependency
	NullDependency
	Conflict
	BadConstraint
)

func (k Kind) String() string {
	switch k {
	case NullVersion:
		return "null version"
	case UnknownPackage:
		return "unknown package"
	case UnknownVersion:
		return "unknown version"
	case MissingDependency:
		return "missing dependency"
	case NullDependency:
		return "null dependency"
	case Conflict:
		return "conflict"
	case BadConstraint:
		return "bad constraint"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Problem is one way in which a solution fails to be consistent with a
// catalog.
type Problem struct {
	Kind    Kind
	Package string
	Version string
	// Dependency, Constraints and Found describe the offending dependency
	// edge, if any.
	Dependency  string
	Constraints version.ConstraintList
	Found       string
	Err         error
}

func (p Problem) String() string {
	var b strings.Builder
	b.WriteString("[" + p.Package)
	if p.Version != "" {
		b.WriteString(" " + p.Version)
	}
	b.WriteString("] ")
	switch p.Kind {
	case NullVersion:
		b.WriteString("version is null")
	case UnknownPackage:
		b.WriteString("not found in catalog")
	case UnknownVersion:
		b.WriteString("version does not exist in catalog")
	case MissingDependency:
		fmt.Fprintf(&b, "requires missing package %s", p.Dependency)
	case NullDependency:
		fmt.Fprintf(&b, "requires %s but its version is null", p.Dependency)
	case Conflict:
		fmt.Fprintf(&b, "requires %s %s but found %s", p.Dependency, p.Constraints, p.Found)
	case BadConstraint:
		fmt.Fprintf(&b, "constraint %s %s: %v", p.Dependency, p.Constraints, p.Err)
	default:
		b.WriteString(p.Kind.String())
	}
	return b.String()
}

// Check returns every problem found in sol, ordered by package name. A nil
// result means the solution is valid. Dependencies on the interpreter are
// checked against sol.PythonVersion when it is set, and are otherwise
// assumed to hold. Constrains entries only apply to packages the solution
// installs.
func Check(sol *Solution, cat catalog.Catalog) []Problem {
	var probs []Problem
	names := make([]string, 0, len(sol.Packages))
	for name := range sol.Packages {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		ver := sol.Packages[name]
		if ver == nil {
			probs = append(probs, Problem{Kind: NullVersion, Package: name})
			continue
		}
		if !cat.Has(name) {
			probs = append(probs, Problem{Kind: UnknownPackage, Package: name, Version: *ver})
			continue
		}
		md, ok := cat.Lookup(name, *ver)
		if !ok {
			probs = append(probs, Problem{Kind: UnknownVersion, Package: name, Version: *ver})
			continue
		}
		probs = append(probs, checkEdges(sol, name, *ver, md.Depends, true)...)
		probs = append(probs, checkEdges(sol, name, *ver, md.Constrains, false)...)
	}
	return probs
}

// checkEdges checks the edges of one package version. If required is set
// the targets must be installed.
func checkEdges(sol *Solution, name, ver string, edges map[string]version.ConstraintList, required bool) []Problem {
	var probs []Problem
	deps := make([]string, 0, len(edges))
	for d := range edges {
		deps = append(deps, d)
	}
	slices.Sort(deps)
	for _, dep := range deps {
		cl := edges[dep]
		p := Problem{Package: name, Version: ver, Dependency: dep, Constraints: cl}
		var target string
		switch {
		case dep == catalog.Interpreter:
			if sol.PythonVersion == "" {
				continue
			}
			target = sol.PythonVersion
		case catalog.IsInterpreter(dep):
			continue
		default:
			tv, ok := sol.Packages[dep]
			switch {
			case !ok && required:
				p.Kind = MissingDependency
				probs = append(probs, p)
				continue
			case !ok:
				continue
			case tv == nil && required:
				p.Kind = NullDependency
				probs = append(probs, p)
				continue
			case tv == nil:
				continue
			}
			target = *tv
		}
		ok, err := cl.Check(target)
		switch {
		case err != nil:
			p.Kind = BadConstraint
			p.Err = err
			probs = append(probs, p)
		case !ok:
			p.Kind = Conflict
			p.Found = target
			probs = append(probs, p)
		}
	}
	return probs
}
