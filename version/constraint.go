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
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Op is a comparison operator of a Constraint.
type Op byte

const (
	InvalidOp Op = iota
	Lt           // <
	Le           // <=
	Gt           // >
	Ge           // >=
	Eq           // ==
	Ne           // !=
)

var opStrings = [...]string{
	InvalidOp: "",
	Lt:        "<",
	Le:        "<=",
	Gt:        ">",
	Ge:        ">=",
	Eq:        "==",
	Ne:        "!=",
}

func (o Op) String() string {
	if int(o) < len(opStrings) && o != InvalidOp {
		return opStrings[o]
	}
	return "Op(" + strconv.Itoa(int(o)) + ")"
}

// Valid reports whether o is one of the six known operators.
func (o Op) Valid() bool { return o >= Lt && o <= Ne }

// OpError reports an operator that is not part of the closed operator set.
type OpError struct {
	Op string
}

func (e *OpError) Error() string {
	return fmt.Sprintf("unknown constraint operator %q", e.Op)
}

// ParseOp parses one of <, <=, >, >=, ==, != or the alias "=".
func ParseOp(s string) (Op, error) {
	switch s {
	case "<":
		return Lt, nil
	case "<=":
		return Le, nil
	case ">":
		return Gt, nil
	case ">=":
		return Ge, nil
	case "==", "=":
		return Eq, nil
	case "!=":
		return Ne, nil
	}
	return InvalidOp, &OpError{Op: s}
}

// MarshalText implements encoding.TextMarshaler.
func (o Op) MarshalText() ([]byte, error) {
	if !o.Valid() {
		return nil, &OpError{Op: o.String()}
	}
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Op) UnmarshalText(b []byte) error {
	op, err := ParseOp(string(b))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// holds reports whether a comparison result c (as returned by Compare)
// satisfies the operator.
func (o Op) holds(c int) (bool, error) {
	switch o {
	case Lt:
		return c < 0, nil
	case Le:
		return c <= 0, nil
	case Gt:
		return c > 0, nil
	case Ge:
		return c >= 0, nil
	case Eq:
		return c == 0, nil
	case Ne:
		return c != 0, nil
	}
	return false, &OpError{Op: o.String()}
}

// Satisfies reports whether v op target holds. It only fails for an
// operator outside the known set.
func Satisfies(v string, op Op, target string) (bool, error) {
	return op.holds(Compare(v, target))
}

// Constraint is a single operator and target version, such as ">=2.0".
type Constraint struct {
	Op      Op     `json:"op" yaml:"op"`
	Version string `json:"ver" yaml:"ver"`
}

func (c Constraint) String() string {
	return c.Op.String() + c.Version
}

// Check reports whether v satisfies the constraint.
func (c Constraint) Check(v string) (bool, error) {
	return Satisfies(v, c.Op, c.Version)
}

// ConstraintList is a conjunction of constraints. The empty list is
// satisfied by every version.
type ConstraintList []Constraint

func (cl ConstraintList) String() string {
	parts := make([]string, len(cl))
	for i, c := range cl {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}

// Check reports whether v satisfies every constraint in the list. It stops
// at the first failing constraint or the first error.
func (cl ConstraintList) Check(v string) (bool, error) {
	for _, c := range cl {
		ok, err := c.Check(v)
		if err != nil {
			return false, fmt.Errorf("checking %s against %s: %w", v, c, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// SatisfiedBy is Check with evaluation errors treated as unsatisfied.
func (cl ConstraintList) SatisfiedBy(v string) bool {
	ok, err := cl.Check(v)
	return err == nil && ok
}

// Target returns the version of the first equality constraint, if any.
func (cl ConstraintList) Target() (string, bool) {
	for _, c := range cl {
		if c.Op == Eq {
			return c.Version, true
		}
	}
	return "", false
}

// HasWildcard reports whether any constraint has a wildcard target.
func (cl ConstraintList) HasWildcard() bool {
	for _, c := range cl {
		if IsWildcard(c.Version) {
			return true
		}
	}
	return false
}

// Clone returns a copy of cl that shares no storage with it.
func (cl ConstraintList) Clone() ConstraintList {
	if cl == nil {
		return nil
	}
	return append(ConstraintList(nil), cl...)
}

// prefixOps lists the specifier operators in the order they must be tried
// so that longer operators win over their prefixes.
var prefixOps = []string{"===", "~=", "==", "!=", ">=", "<=", ">", "<", "="}

// SplitOp splits a leading operator off s. It reports an empty operator
// if s does not start with one.
func SplitOp(s string) (op, rest string) {
	for _, p := range prefixOps {
		if r, ok := strings.CutPrefix(s, p); ok {
			return p, strings.TrimSpace(r)
		}
	}
	return "", s
}

// ParseConstraint builds the constraints denoted by an operator string and
// a target version. It accepts a few spellings found in registry data that
// are not part of the closed operator set:
//
//   - a target that itself starts with an operator, such as op "" and
//     target ">=1.0", uses the embedded operator;
//   - "===" is treated as "==";
//   - "~=X.Y[.Z]" (compatible release) expands to ">=X.Y[.Z]" and
//     "<X.(Y+1)" style upper bounds, as in PEP 440;
//   - "==X.Y.*" expands to ">=X.Y.0,<X.(Y+1).0", and other prefix
//     matches likewise (see ExpandWildcard).
//
// Any other operator is an *OpError.
func ParseConstraint(op, target string) (ConstraintList, error) {
	target = strings.TrimSpace(target)
	if embedded, rest := SplitOp(target); embedded != "" && rest != "" {
		op, target = embedded, rest
	}
	switch op {
	case "===":
		op = "=="
	case "~=":
		return ExpandCompatible(target)
	}
	o, err := ParseOp(op)
	if err != nil {
		return nil, err
	}
	if o == Eq {
		if cl, ok := ExpandWildcard(target); ok {
			return cl, nil
		}
	}
	return ConstraintList{{Op: o, Version: target}}, nil
}

// ExpandWildcard turns a prefix match "P.*" into ">=P,<Q" where Q is P
// with its last component incremented. Both bounds are padded to three
// components: "1.4.*" becomes ">=1.4.0,<1.5.0" and "2.*" becomes
// ">=2.0.0,<3.0.0". It reports false if ver is not a wildcard or its prefix
// is not numeric.
func ExpandWildcard(ver string) (ConstraintList, bool) {
	base, ok := strings.CutSuffix(ver, ".*")
	if !ok || base == "" {
		return nil, false
	}
	var lower Version
	for _, p := range strings.Split(base, ".") {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, false
		}
		lower = append(lower, n)
	}
	upper := slices.Clone(lower)
	upper[len(upper)-1]++
	for len(lower) < 3 {
		lower = append(lower, 0)
		upper = append(upper, 0)
	}
	return ConstraintList{
		{Op: Ge, Version: lower.String()},
		{Op: Lt, Version: upper.String()},
	}, true
}

// ExpandCompatible expands a compatible release target "~=V" into
// ">=V,<U" where U drops the last component of V and increments the new
// last one: ~=1.2 is >=1.2,<2 and ~=1.2.3 is >=1.2.3,<1.3. A single
// component target only gets the lower bound.
func ExpandCompatible(target string) (ConstraintList, error) {
	v := Normalize(target)
	lower := ConstraintList{{Op: Ge, Version: target}}
	if len(v) < 2 {
		return lower, nil
	}
	upper := append(Version(nil), v[:len(v)-1]...)
	upper[len(upper)-1]++
	return append(lower, Constraint{Op: Lt, Version: upper.String()}), nil
}
