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

package requirements

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"deps.dev/util/depsolve/catalog"
	"deps.dev/util/depsolve/version"
)

func TestParseSpecifier(t *testing.T) {
	tests := []struct {
		in   string
		want version.ConstraintList
	}{
		{"", nil},
		{">=1.0,<2", version.ConstraintList{{Op: version.Ge, Version: "1.0"}, {Op: version.Lt, Version: "2"}}},
		{" >= 1.0 , != 1.5 ", version.ConstraintList{{Op: version.Ge, Version: "1.0"}, {Op: version.Ne, Version: "1.5"}}},
		{"1.2.3", version.ConstraintList{{Op: version.Eq, Version: "1.2.3"}}},
		{"==1.4.*", version.ConstraintList{{Op: version.Ge, Version: "1.4.0"}, {Op: version.Lt, Version: "1.5.0"}}},
		{"~=2.2", version.ConstraintList{{Op: version.Ge, Version: "2.2"}, {Op: version.Lt, Version: "3"}}},
		{"~=1.4.5", version.ConstraintList{{Op: version.Ge, Version: "1.4.5"}, {Op: version.Lt, Version: "1.5"}}},
		{"===1.0", version.ConstraintList{{Op: version.Eq, Version: "1.0"}}},
	}
	for _, test := range tests {
		got, err := ParseSpecifier(test.in)
		if err != nil {
			t.Errorf("ParseSpecifier(%q): %v", test.in, err)
			continue
		}
		if diff := cmp.Diff(got, test.want); diff != "" {
			t.Errorf("ParseSpecifier(%q):\n(- got, + want):\n%s", test.in, diff)
		}
	}
	for _, bad := range []string{"<", ">=1.0,<="} {
		if got, err := ParseSpecifier(bad); err == nil {
			t.Errorf("ParseSpecifier(%q) = %v, want error", bad, got)
		}
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		in   string
		want Requirement
		ok   bool
	}{
		{"", Requirement{}, false},
		{"   # just a comment", Requirement{}, false},
		{"-r base.txt", Requirement{}, false},
		{"-e .", Requirement{}, false},
		{"--index-url https://example.com/simple", Requirement{}, false},
		{"git+https://github.com/psf/requests.git@v2.31.0#egg=requests", Requirement{}, false},
		{"https://example.com/pkg-1.0.tar.gz", Requirement{}, false},
		{"numpy", Requirement{Name: "numpy"}, true},
		{
			"Typing_Extensions>=4.3 # pinned for py39",
			Requirement{
				Name:        "typing-extensions",
				Specifier:   ">=4.3",
				Constraints: version.ConstraintList{{Op: version.Ge, Version: "4.3"}},
			},
			true,
		},
		{
			"requests[socks]==2.31.0; python_version >= '3.8'",
			Requirement{
				Name:        "requests",
				Extras:      "socks",
				Specifier:   "==2.31.0",
				Marker:      "python_version >= '3.8'",
				Constraints: version.ConstraintList{{Op: version.Eq, Version: "2.31.0"}},
			},
			true,
		},
		{"pip @ https://github.com/pypa/pip/archive/22.0.zip", Requirement{Name: "pip"}, true},
	}
	for _, test := range tests {
		got, ok, err := ParseLine(test.in)
		if err != nil {
			t.Errorf("ParseLine(%q): %v", test.in, err)
			continue
		}
		if ok != test.ok {
			t.Errorf("ParseLine(%q) ok = %v, want %v", test.in, ok, test.ok)
		}
		if diff := cmp.Diff(got, test.want, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("ParseLine(%q):\n(- got, + want):\n%s", test.in, diff)
		}
	}
}

func TestParse(t *testing.T) {
	const in = `# project requirements
numpy>=1.24
scipy

-r dev.txt
numpy<2
`
	f, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if diff := cmp.Diff(f.Packages, []string{"numpy", "scipy"}); diff != "" {
		t.Errorf("Packages:\n(- got, + want):\n%s", diff)
	}
	want := catalog.HardConstraints{
		"numpy": {{Op: version.Ge, Version: "1.24"}, {Op: version.Lt, Version: "2"}},
		"scipy": nil,
	}
	if diff := cmp.Diff(f.Constraints, want, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Constraints:\n(- got, + want):\n%s", diff)
	}
	if len(f.Requirements) != 3 {
		t.Errorf("got %d requirements, want 3", len(f.Requirements))
	}
}

func TestParseError(t *testing.T) {
	_, err := Parse(strings.NewReader("numpy\n>=1.0\n"))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("Parse error = %v, want *ParseError", err)
	}
	if pe.Line != 2 {
		t.Errorf("ParseError.Line = %d, want 2", pe.Line)
	}
}
