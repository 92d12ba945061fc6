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

package version

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want Version
	}{
		{"3.10.0a0", Version{3, 10, 0}},
		{"3.9", Version{3, 9}},
		{"invalid", Version{0}},
		{"", Version{0}},
		{"1..2", Version{1, 2}},
		{"2.0.0rc1.post3", Version{2, 0, 0}},
		{".5", Version{5}},
		{"10", Version{10}},
		{"v1.2", Version{0}},
	}
	for _, test := range tests {
		got := Normalize(test.in)
		if diff := cmp.Diff(got, test.want); diff != "" {
			t.Errorf("Normalize(%q):\n(- got, + want):\n%s", test.in, diff)
		}
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"3.9", "3.10", -1},
		{"3.10", "3.10", 0},
		{"3.11", "3.10", 1},
		{"1.0", "1", 0},
		{"1.0.0", "1.0.0.0.0", 0},
		{"1.0.1", "1", 1},
		{"2", "10", -1},
		{"invalid", "0", 0},
		{"3.10.0a0", "3.10", 0},
	}
	for _, test := range tests {
		if got := Compare(test.a, test.b); got != test.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
		}
		if got := Compare(test.b, test.a); got != -test.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", test.b, test.a, got, -test.want)
		}
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"1.2.3", "1.2.3", 0},
		{"1.2", "1.2.0", 0},
		{"1.4.0", "1.2.5", 7},
		{"2", "1.9.9", 19},
		{"3.0", "invalid", 3},
	}
	for _, test := range tests {
		if got := Distance(test.a, test.b); got != test.want {
			t.Errorf("Distance(%q, %q) = %v, want %v", test.a, test.b, got, test.want)
		}
	}
}

func TestSort(t *testing.T) {
	got := []string{"3.10", "3.9", "1.0", "3.8.1", "1", "invalid"}
	Sort(got)
	want := []string{"invalid", "1.0", "1", "3.8.1", "3.9", "3.10"}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Sort:\n(- got, + want):\n%s", diff)
	}
}

func TestHighest(t *testing.T) {
	if got, ok := Highest([]string{"1.0", "2.0", "2", "1.9"}); !ok || got != "2.0" {
		t.Errorf("Highest = %q, %v, want %q, true", got, ok, "2.0")
	}
	if _, ok := Highest(nil); ok {
		t.Errorf("Highest(nil) reported a version")
	}
}

func TestParseOp(t *testing.T) {
	for s, want := range map[string]Op{
		"<": Lt, "<=": Le, ">": Gt, ">=": Ge, "==": Eq, "=": Eq, "!=": Ne,
	} {
		got, err := ParseOp(s)
		if err != nil {
			t.Errorf("ParseOp(%q): %v", s, err)
			continue
		}
		if got != want {
			t.Errorf("ParseOp(%q) = %v, want %v", s, got, want)
		}
	}
	for _, s := range []string{"", "~=", "===", "=>", "eq"} {
		_, err := ParseOp(s)
		var opErr *OpError
		if !errors.As(err, &opErr) {
			t.Errorf("ParseOp(%q) error = %v, want *OpError", s, err)
		}
	}
}

func TestSatisfies(t *testing.T) {
	tests := []struct {
		v, target string
		op        Op
		want      bool
	}{
		{"2.0", "2.0.0", Eq, true},
		{"2.0", "2.0.0", Ne, false},
		{"2.5", "2.0", Ge, true},
		{"2.0", "2.0", Gt, false},
		{"3.0", "3.0", Lt, false},
		{"2.9.9", "3.0", Lt, true},
		{"3.0", "3.0", Le, true},
		{"3.9", "3.10.0a0", Lt, true},
	}
	for _, test := range tests {
		got, err := Satisfies(test.v, test.op, test.target)
		if err != nil {
			t.Errorf("Satisfies(%q, %v, %q): %v", test.v, test.op, test.target, err)
			continue
		}
		if got != test.want {
			t.Errorf("Satisfies(%q, %v, %q) = %v, want %v", test.v, test.op, test.target, got, test.want)
		}
	}
	if _, err := Satisfies("1.0", InvalidOp, "1.0"); err == nil {
		t.Errorf("Satisfies with invalid operator succeeded")
	}
	if _, err := Satisfies("1.0", Op(42), "1.0"); err == nil {
		t.Errorf("Satisfies with out of range operator succeeded")
	}
}

func TestConstraintListIsConjunction(t *testing.T) {
	lists := []ConstraintList{
		nil,
		{{Ge, "3.9"}, {Lt, "3.10.0a0"}},
		{{Ne, "2.0"}},
		{{Ge, "1.0"}, {Le, "2.0"}, {Ne, "1.5"}},
		{{Eq, "1.4"}, {Gt, "1.4"}},
	}
	versions := []string{"0", "1.0", "1.4", "1.5", "2.0", "3.9", "3.9.7", "3.10", "x"}
	for _, cl := range lists {
		for _, v := range versions {
			want := true
			for _, c := range cl {
				ok, err := c.Check(v)
				if err != nil {
					t.Fatalf("%v.Check(%q): %v", c, v, err)
				}
				want = want && ok
			}
			if got := cl.SatisfiedBy(v); got != want {
				t.Errorf("%v.SatisfiedBy(%q) = %v, want %v", cl, v, got, want)
			}
		}
	}
}

func TestConstraintListCheckError(t *testing.T) {
	cl := ConstraintList{{Ge, "1.0"}, {Op(99), "2.0"}}
	if _, err := cl.Check("1.5"); err == nil {
		t.Errorf("%v.Check succeeded, want error", cl)
	}
	if cl.SatisfiedBy("1.5") {
		t.Errorf("%v.SatisfiedBy(1.5) = true, want false", cl)
	}
	// The failing constraint short-circuits before the bad operator.
	if ok, err := cl.Check("0.5"); err != nil || ok {
		t.Errorf("%v.Check(0.5) = %v, %v, want false, nil", cl, ok, err)
	}
}

func TestTarget(t *testing.T) {
	cl := ConstraintList{{Ge, "1.0"}, {Eq, "1.2"}, {Eq, "1.3"}}
	if got, ok := cl.Target(); !ok || got != "1.2" {
		t.Errorf("Target() = %q, %v, want 1.2, true", got, ok)
	}
	if _, ok := (ConstraintList{{Ge, "1.0"}}).Target(); ok {
		t.Errorf("Target() on a range reported a target")
	}
}

func TestParseConstraint(t *testing.T) {
	tests := []struct {
		op, ver string
		want    ConstraintList
	}{
		{">=", "1.0", ConstraintList{{Ge, "1.0"}}},
		{"=", "1.0", ConstraintList{{Eq, "1.0"}}},
		{"===", "1.0", ConstraintList{{Eq, "1.0"}}},
		{"==", ">=2.1", ConstraintList{{Ge, "2.1"}}},
		{"", "<3", ConstraintList{{Lt, "3"}}},
		{"==", "1.4.*", ConstraintList{{Ge, "1.4.0"}, {Lt, "1.5.0"}}},
		{"==", "2.*", ConstraintList{{Ge, "2.0.0"}, {Lt, "3.0.0"}}},
		{"==", "1.4.2.*", ConstraintList{{Ge, "1.4.2"}, {Lt, "1.4.3"}}},
		{"!=", "1.4.*", ConstraintList{{Ne, "1.4.*"}}},
		{"~=", "1.2", ConstraintList{{Ge, "1.2"}, {Lt, "2"}}},
		{"~=", "1.2.3", ConstraintList{{Ge, "1.2.3"}, {Lt, "1.3"}}},
		{"~=", "4", ConstraintList{{Ge, "4"}}},
	}
	for _, test := range tests {
		got, err := ParseConstraint(test.op, test.ver)
		if err != nil {
			t.Errorf("ParseConstraint(%q, %q): %v", test.op, test.ver, err)
			continue
		}
		if diff := cmp.Diff(got, test.want); diff != "" {
			t.Errorf("ParseConstraint(%q, %q):\n(- got, + want):\n%s", test.op, test.ver, diff)
		}
	}
	if _, err := ParseConstraint("=>", "1.0"); err == nil {
		t.Errorf("ParseConstraint(=>) succeeded, want error")
	}
}

func TestOpText(t *testing.T) {
	var o Op
	if err := o.UnmarshalText([]byte("=")); err != nil || o != Eq {
		t.Errorf("UnmarshalText(=) = %v, %v, want %v", o, err, Eq)
	}
	if err := o.UnmarshalText([]byte("~")); err == nil {
		t.Errorf("UnmarshalText(~) succeeded")
	}
	b, err := Le.MarshalText()
	if err != nil || string(b) != "<=" {
		t.Errorf("MarshalText(Le) = %q, %v", b, err)
	}
	if _, err := InvalidOp.MarshalText(); err == nil {
		t.Errorf("MarshalText(InvalidOp) succeeded")
	}
}

func TestIsWildcard(t *testing.T) {
	for s, want := range map[string]bool{"1.4.*": true, "1.*": true, "1.4": false, "*": false, "1.4*": false} {
		if got := IsWildcard(s); got != want {
			t.Errorf("IsWildcard(%q) = %v, want %v", s, got, want)
		}
	}
}
