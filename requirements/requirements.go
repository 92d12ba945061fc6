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
Package requirements reads pip style requirement lists.

Each line names one package with an optional PEP 440 specifier, for example
"numpy>=1.24,<2" or "requests[socks]==2.31.0; python_version >= '3.8'".
Blank lines, comments, option lines such as "-r other.txt" or "-e .", and
VCS references are skipped. For a direct reference, "name @ url", only the
name is kept.
*/
package requirements

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"deps.dev/util/depsolve/catalog"
	"deps.dev/util/depsolve/version"
	"deps.dev/util/pypi"
	"deps.dev/util/semver"
)

// ParseError reports a requirement line that could not be parsed.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %q: %v", e.Line, e.Text, e.Err)
	}
	return fmt.Sprintf("%q: %v", e.Text, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Requirement is a single parsed requirement.
type Requirement struct {
	// Name is the canonical PyPI name of the package.
	Name string
	// Extras lists the requested extras, comma separated, as written.
	Extras string
	// Specifier is the version specifier as written, without parentheses.
	Specifier string
	// Marker is the environment marker following ';', if any.
	Marker string
	// Constraints is the parsed form of Specifier.
	Constraints version.ConstraintList
}

// File is a parsed requirement list.
type File struct {
	Requirements []Requirement
	// Packages lists each required package once, in order of first
	// appearance.
	Packages []string
	// Constraints gathers the constraints of every package. A package
	// listed several times gets the conjunction of its specifiers.
	Constraints catalog.HardConstraints
}

// ParseFile reads the requirement list at path.
func ParseFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rf, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rf, nil
}

// Parse reads a requirement list. It stops at the first line that cannot
// be parsed.
func Parse(r io.Reader) (*File, error) {
	f := &File{Constraints: make(catalog.HardConstraints)}
	seen := make(map[string]bool)
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		req, ok, err := ParseLine(sc.Text())
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) {
				pe.Line = n
			}
			return nil, err
		}
		if !ok {
			continue
		}
		f.Requirements = append(f.Requirements, req)
		if !seen[req.Name] {
			seen[req.Name] = true
			f.Packages = append(f.Packages, req.Name)
		}
		f.Constraints[req.Name] = append(f.Constraints[req.Name], req.Constraints...)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return f, nil
}

// ParseLine parses one line of a requirement list. It reports false for
// lines that carry no requirement.
func ParseLine(line string) (Requirement, bool, error) {
	s := stripComment(line)
	switch {
	case s == "":
		return Requirement{}, false, nil
	case strings.HasPrefix(s, "-"):
		// Options such as -r, -c, -e, --index-url.
		return Requirement{}, false, nil
	}
	if name, _, ok := strings.Cut(s, "@"); ok && !strings.ContainsAny(name, "<>=!~;") {
		s = strings.TrimSpace(name)
	}
	if strings.Contains(s, "://") {
		// A bare URL or VCS reference names no package we can look up.
		return Requirement{}, false, nil
	}
	d, err := pypi.ParseDependency(s)
	if err != nil {
		return Requirement{}, false, &ParseError{Text: line, Err: err}
	}
	cl, err := ParseSpecifier(d.Constraint)
	if err != nil {
		return Requirement{}, false, &ParseError{Text: line, Err: err}
	}
	return Requirement{
		Name:        d.Name,
		Extras:      d.Extras,
		Specifier:   d.Constraint,
		Marker:      d.Environment,
		Constraints: cl,
	}, true, nil
}

// stripComment removes a trailing "#" comment and surrounding space.
func stripComment(line string) string {
	if i := strings.Index(line, "#"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

// ParseSpecifier parses a comma separated PEP 440 specifier such as
// ">=1.0,<2" into constraints. A bare version means "==". Compatible
// release ("~=") and prefix ("==1.4.*") clauses are expanded into ranges.
// The empty specifier yields no constraints.
func ParseSpecifier(spec string) (version.ConstraintList, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	var cl version.ConstraintList
	var clauses []string
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		op, ver := version.SplitOp(part)
		if op == "" {
			op = "=="
		}
		if ver == "" {
			return nil, fmt.Errorf("specifier %q: missing version after %q", spec, op)
		}
		cs, err := version.ParseConstraint(op, ver)
		if err != nil {
			return nil, fmt.Errorf("specifier %q: %w", spec, err)
		}
		cl = append(cl, cs...)
		switch op {
		case "===":
		case "=":
			clauses = append(clauses, "=="+ver)
		default:
			clauses = append(clauses, op+ver)
		}
	}
	if len(clauses) > 0 {
		if _, err := semver.PyPI.ParseConstraint(strings.Join(clauses, ",")); err != nil {
			return nil, fmt.Errorf("specifier %q: %w", spec, err)
		}
	}
	return cl, nil
}
