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

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"deps.dev/util/depsolve/catalog"
	"deps.dev/util/depsolve/genetic"
	"deps.dev/util/depsolve/validate"
)

func TestHelpListsCommands(t *testing.T) {
	var sb strings.Builder
	printUsage(&sb)
	help := sb.String()
	for _, cmd := range commands {
		if !strings.Contains(help, cmd.name) || !strings.Contains(help, cmd.short) {
			t.Errorf("help output missing command %q", cmd.name)
		}
	}
}

func TestCommandHelp(t *testing.T) {
	for _, cmd := range commands {
		var sb strings.Builder
		printCommandHelp(&sb, cmd.name)
		if !strings.Contains(sb.String(), cmd.usage) {
			t.Errorf("help for %q missing usage line %q", cmd.name, cmd.usage)
		}
	}
	var sb strings.Builder
	printCommandHelp(&sb, "no-such-command")
	if !strings.Contains(sb.String(), "unknown command") {
		t.Errorf("help for an unknown command = %q", sb.String())
	}
}

func TestDispatchUnknown(t *testing.T) {
	if err := dispatch([]string{"frobnicate"}); err == nil || !strings.Contains(err.Error(), "frobnicate") {
		t.Errorf("dispatch(frobnicate) = %v, want unknown command error", err)
	}
}

func TestDetailedPath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"solution.json", "solution_detailed.json"},
		{"out/sol.yaml", "out/sol_detailed.yaml"},
		{"plain", "plain_detailed"},
	}
	for _, test := range tests {
		if got := detailedPath(test.in); got != test.want {
			t.Errorf("detailedPath(%q) = %q, want %q", test.in, got, test.want)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" 3.8, 3.9,,3.10 ")
	if diff := cmp.Diff(got, []string{"3.8", "3.9", "3.10"}); diff != "" {
		t.Errorf("splitList:\n(- got, + want):\n%s", diff)
	}
}

func TestParseSolveFlagsConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "search.yaml")
	if err := os.WriteFile(cfgPath, []byte("population_size: 20\ngenerations: 7\nseed: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := parseSolveFlags([]string{"-catalog", "c.json", "-config", cfgPath, "-generations", "9"})
	if err != nil {
		t.Fatal(err)
	}
	want := genetic.DefaultConfig()
	want.PopulationSize = 20
	want.Generations = 9
	want.Seed = 3
	if diff := cmp.Diff(f.cfg, want); diff != "" {
		t.Errorf("config:\n(- got, + want):\n%s", diff)
	}
	if _, err := parseSolveFlags(nil); err == nil {
		t.Errorf("parseSolveFlags without -catalog succeeded")
	}
}

const testCatalog = `{
  "a": {
    "1.0": {"depends": {"b": [{"op": ">=", "ver": "2.0"}], "python": [{"op": ">=", "ver": "3.9"}]}, "constrains": {}},
    "2.0": {"depends": {"b": [{"op": "<", "ver": "3"}]}, "constrains": {}}
  },
  "b": {
    "1.5": {"depends": {}, "constrains": {}},
    "2.0": {"depends": {}, "constrains": {}},
    "2.5": {"depends": {"c": [{"op": "==", "ver": "1.*"}]}, "constrains": {}}
  },
  "c": {
    "1.0": {"depends": {}, "constrains": {}},
    "2.0": {"depends": {}, "constrains": {}}
  }
}
`

func TestSolveAndValidate(t *testing.T) {
	dir := t.TempDir()
	catPath := filepath.Join(dir, "catalog.json")
	if err := os.WriteFile(catPath, []byte(testCatalog), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "solution.json")
	err := runSolve([]string{
		"-catalog", catPath,
		"-output", out,
		"-python-versions", "3.10,3.11",
		"-population", "30",
		"-generations", "20",
		"-seed", "1",
	})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	sol, err := validate.Load(out)
	if err != nil {
		t.Fatal(err)
	}
	if probs := validate.Check(sol, mustLoad(t, catPath)); len(probs) > 0 {
		t.Errorf("solution has problems: %v", probs)
	}
	if _, err := os.Stat(filepath.Join(dir, "solution_detailed.json")); err != nil {
		t.Errorf("detailed solution: %v", err)
	}
	if err := runValidate([]string{"-catalog", catPath, "-solution", out}); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestValidateReportsProblems(t *testing.T) {
	dir := t.TempDir()
	catPath := filepath.Join(dir, "catalog.json")
	solPath := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(catPath, []byte(testCatalog), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(solPath, []byte(`{"python_version": "3.8", "packages": {"a": "1.0", "b": "1.5"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	err := runValidate([]string{"-catalog", catPath, "-solution", solPath})
	if err == nil || !strings.Contains(err.Error(), "2 problems") {
		t.Errorf("validate = %v, want 2 problems", err)
	}
}

func TestPrune(t *testing.T) {
	dir := t.TempDir()
	catPath := filepath.Join(dir, "catalog.json")
	if err := os.WriteFile(catPath, []byte(testCatalog), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "reduced.yaml")
	pre := filepath.Join(dir, "precomputed.json")
	if err := runPrune([]string{"-catalog", catPath, "-output", out, "-precomputed", pre}); err != nil {
		t.Fatalf("prune: %v", err)
	}
	reduced := mustLoad(t, out)
	if got := reduced.Names(); len(got) != 0 {
		t.Errorf("reduced catalog = %v, want empty", got)
	}
	if _, err := os.Stat(pre); err != nil {
		t.Errorf("precomputed: %v", err)
	}
}

func mustLoad(t *testing.T, path string) catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	return cat
}
