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
Package version implements the lenient numeric version model used by the
solver.

A version string is reduced to the tuple of integers found in its longest
leading run of digits and dots, so "3.10.0a0" is (3, 10, 0) and "invalid" is
(0). Tuples are compared after zero-padding the shorter one, which gives a
total order over all strings: "3.9" < "3.10" and "1.0" == "1". This is
deliberately much coarser than PEP 440; pre-release and local segments are
ignored rather than rejected so that a single odd version in a catalog never
stops a search.
*/
package version

import (
	"slices"
	"strconv"
	"strings"
)

// Version is a normalized version: a non-empty tuple of non-negative
// integers.
type Version []int

// Normalize extracts the leading digit/dot run of s and splits it on '.'.
// Empty components are dropped; if nothing numeric remains the result is
// the one-element zero tuple.
func Normalize(s string) Version {
	end := 0
	for end < len(s) && (s[end] == '.' || ('0' <= s[end] && s[end] <= '9')) {
		end++
	}
	var v Version
	for _, p := range strings.Split(s[:end], ".") {
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			// Only overflow can get here; saturate rather than fail.
			n = int(^uint(0) >> 1)
		}
		v = append(v, n)
	}
	if len(v) == 0 {
		return Version{0}
	}
	return v
}

// at returns the i'th component, treating missing components as zero.
func (v Version) at(i int) int {
	if i < len(v) {
		return v[i]
	}
	return 0
}

// Compare reports whether v is less than, equal to or greater than w,
// returning -1, 0 or 1 respectively. The shorter tuple is zero-padded.
func (v Version) Compare(w Version) int {
	for i := range max(len(v), len(w)) {
		a, b := v.at(i), w.at(i)
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
	}
	return 0
}

// Distance is the sum of the absolute per-component differences of the
// zero-padded tuples. It is only meant to shape a penalty gradient.
func (v Version) Distance(w Version) float64 {
	d := 0
	for i := range max(len(v), len(w)) {
		a, b := v.at(i), w.at(i)
		if a > b {
			d += a - b
		} else {
			d += b - a
		}
	}
	return float64(d)
}

func (v Version) String() string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// Compare normalizes both strings and compares them,
// returning -1, 0 or 1.
func Compare(a, b string) int {
	return Normalize(a).Compare(Normalize(b))
}

// Distance normalizes both strings and returns their L1 distance.
func Distance(a, b string) float64 {
	return Normalize(a).Distance(Normalize(b))
}

// Sort sorts version strings in ascending order. Versions that compare
// equal keep their relative order.
func Sort(vs []string) {
	slices.SortStableFunc(vs, Compare)
}

// Highest returns the greatest of the given versions, preferring the first
// one seen among equals. It reports false if vs is empty.
func Highest(vs []string) (string, bool) {
	if len(vs) == 0 {
		return "", false
	}
	best := vs[0]
	for _, v := range vs[1:] {
		if Compare(v, best) > 0 {
			best = v
		}
	}
	return best, true
}

// IsWildcard reports whether the version string ends in a ".*" suffix,
// such as "1.4.*". Such targets cannot be compared numerically.
func IsWildcard(s string) bool {
	return strings.HasSuffix(s, ".*")
}
