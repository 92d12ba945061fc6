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
Package registry builds catalogs from PyPI package metadata.

A Client answers two questions about a package: which versions exist, and
what a version requires. APIClient asks the deps.dev API and PyPI;
LocalClient serves data held in memory. A Fetcher walks the requirements of
a set of root packages through a Client and assembles the result into a
catalog.Catalog.
*/
package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"deps.dev/util/depsolve/version"
	"deps.dev/util/pypi"
)

// Client defines an interface to fetch package metadata.
type Client interface {
	// Versions returns all the known versions of a package.
	Versions(ctx context.Context, name string) ([]string, error)
	// Requirements returns the PEP 508 requirement strings of a version.
	Requirements(ctx context.Context, name, version string) ([]string, error)
}

// ErrNotFound is returned by Clients to indicate the requested data could not
// be located.
var ErrNotFound = errors.New("not found")

// LocalClient is a Client over data held in memory. Package names are
// canonicalized. It is safe for concurrent use.
type LocalClient struct {
	mu       sync.RWMutex
	versions map[string][]string
	reqs     map[string]map[string][]string
}

// NewLocalClient creates a new, empty, LocalClient.
func NewLocalClient() *LocalClient {
	return &LocalClient{
		versions: make(map[string][]string),
		reqs:     make(map[string]map[string][]string),
	}
}

// AddVersion adds a version with its requirement strings, replacing any
// previous entry for the same version.
func (lc *LocalClient) AddVersion(name, ver string, reqs ...string) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	name = pypi.CanonPackageName(name)
	if !slices.Contains(lc.versions[name], ver) {
		vs := append(lc.versions[name], ver)
		version.Sort(vs)
		lc.versions[name] = vs
	}
	if lc.reqs[name] == nil {
		lc.reqs[name] = make(map[string][]string)
	}
	lc.reqs[name][ver] = reqs
}

// Versions implements Client.
func (lc *LocalClient) Versions(ctx context.Context, name string) ([]string, error) {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	vs, ok := lc.versions[pypi.CanonPackageName(name)]
	if !ok {
		return nil, fmt.Errorf("package %s: %w", name, ErrNotFound)
	}
	return slices.Clone(vs), nil
}

// Requirements implements Client.
func (lc *LocalClient) Requirements(ctx context.Context, name, ver string) ([]string, error) {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	reqs, ok := lc.reqs[pypi.CanonPackageName(name)][ver]
	if !ok {
		return nil, fmt.Errorf("version %s %s: %w", name, ver, ErrNotFound)
	}
	return slices.Clone(reqs), nil
}
