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

package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"deps.dev/util/depsolve/version"
)

// Format is a serialization format for catalogs and constraint files.
type Format int

const (
	JSON Format = iota
	YAML
)

// FormatOf picks a format from a file name: ".yaml" and ".yml" are YAML,
// anything else is JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	}
	return JSON
}

// rawConstraint is the on-disk form of a constraint: {"op": ">=", "ver": "1.0"}.
type rawConstraint struct {
	Op  string `json:"op" yaml:"op"`
	Ver string `json:"ver" yaml:"ver"`
}

type rawMetadata struct {
	Depends    map[string][]rawConstraint `json:"depends" yaml:"depends"`
	Constrains map[string][]rawConstraint `json:"constrains" yaml:"constrains"`
}

type rawCatalog map[string]map[string]rawMetadata

func decode(r io.Reader, f Format, v any) error {
	if f == YAML {
		return yaml.NewDecoder(r).Decode(v)
	}
	return json.NewDecoder(r).Decode(v)
}

func encode(w io.Writer, f Format, v any) error {
	if f == YAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseList converts on-disk constraints, expanding the compatible release
// and wildcard spellings handled by version.ParseConstraint.
func parseList(raw []rawConstraint) (version.ConstraintList, error) {
	cl := version.ConstraintList{}
	for _, rc := range raw {
		cs, err := version.ParseConstraint(rc.Op, rc.Ver)
		if err != nil {
			return nil, err
		}
		cl = append(cl, cs...)
	}
	return cl, nil
}

func parseMap(raw map[string][]rawConstraint) (map[string]version.ConstraintList, error) {
	out := make(map[string]version.ConstraintList, len(raw))
	for name, rcs := range raw {
		cl, err := parseList(rcs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = cl
	}
	return out, nil
}

func formatList(cl version.ConstraintList) []rawConstraint {
	out := make([]rawConstraint, len(cl))
	for i, c := range cl {
		out[i] = rawConstraint{Op: c.Op.String(), Ver: c.Version}
	}
	return out
}

func formatMap(m map[string]version.ConstraintList) map[string][]rawConstraint {
	out := make(map[string][]rawConstraint, len(m))
	for name, cl := range m {
		out[name] = formatList(cl)
	}
	return out
}

// Decode reads a catalog. An unknown constraint operator anywhere in the
// input fails the whole decode, naming the offending entry.
func Decode(r io.Reader, f Format) (Catalog, error) {
	var raw rawCatalog
	if err := decode(r, f, &raw); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	c := make(Catalog, len(raw))
	for pkg, versions := range raw {
		vs := make(map[string]Metadata, len(versions))
		for ver, rm := range versions {
			deps, err := parseMap(rm.Depends)
			if err != nil {
				return nil, fmt.Errorf("catalog %s %s depends %w", pkg, ver, err)
			}
			cons, err := parseMap(rm.Constrains)
			if err != nil {
				return nil, fmt.Errorf("catalog %s %s constrains %w", pkg, ver, err)
			}
			vs[ver] = Metadata{Depends: deps, Constrains: cons}
		}
		c[pkg] = vs
	}
	return c, nil
}

// Encode writes the catalog in the given format.
func Encode(w io.Writer, c Catalog, f Format) error {
	raw := make(rawCatalog, len(c))
	for pkg, versions := range c {
		rvs := make(map[string]rawMetadata, len(versions))
		for ver, md := range versions {
			rvs[ver] = rawMetadata{
				Depends:    formatMap(md.Depends),
				Constrains: formatMap(md.Constrains),
			}
		}
		raw[pkg] = rvs
	}
	return encode(w, f, raw)
}

// Load reads a catalog file, choosing the format from its extension.
func Load(path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	c, err := Decode(f, FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Save writes a catalog file, choosing the format from its extension.
func Save(path string, c Catalog) error {
	return writeFile(path, func(w io.Writer) error {
		return Encode(w, c, FormatOf(path))
	})
}

// DecodeHardConstraints reads a {package: [{op, ver}, ...]} document.
func DecodeHardConstraints(r io.Reader, f Format) (HardConstraints, error) {
	var raw map[string][]rawConstraint
	if err := decode(r, f, &raw); err != nil {
		return nil, fmt.Errorf("decoding hard constraints: %w", err)
	}
	m, err := parseMap(raw)
	if err != nil {
		return nil, fmt.Errorf("hard constraint %w", err)
	}
	return HardConstraints(m), nil
}

// EncodeHardConstraints writes hard constraints in the given format.
func EncodeHardConstraints(w io.Writer, h HardConstraints, f Format) error {
	return encode(w, f, formatMap(h))
}

// LoadHardConstraints reads a hard constraints file, choosing the format
// from its extension.
func LoadHardConstraints(path string) (HardConstraints, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h, err := DecodeHardConstraints(f, FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

// writeFile creates path and its parent directories and writes it with fn.
func writeFile(path string, fn func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteFile creates path, including missing parent directories, and writes
// v to it in the format chosen by the file extension.
func WriteFile(path string, v any) error {
	return writeFile(path, func(w io.Writer) error {
		return encode(w, FormatOf(path), v)
	})
}

// ReadFile decodes path into v in the format chosen by the file extension.
func ReadFile(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := decode(f, FormatOf(path), v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
