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

package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/golang/groupcache/lru"
	"golang.org/x/sync/errgroup"

	"deps.dev/util/depsolve/catalog"
	"deps.dev/util/depsolve/requirements"
	"deps.dev/util/depsolve/version"
	"deps.dev/util/pypi"
	"deps.dev/util/semver"
)

const (
	// DefaultWorkers is the default number of concurrent requests.
	DefaultWorkers = 15
	// DefaultCacheSize is the default number of cached responses.
	DefaultCacheSize = 4096
)

// Fetcher builds catalogs by walking package requirements breadth first.
// Responses are cached across calls to Fetch. It is safe for concurrent
// use.
type Fetcher struct {
	client Client

	// MaxDepth limits how many requirement levels below the roots are
	// fetched. Zero means no limit.
	MaxDepth int
	// Workers bounds the number of concurrent requests.
	Workers int
	// Prereleases keeps pre-release versions, which are dropped by
	// default.
	Prereleases bool
	// Logger receives progress at info level and skipped data at debug
	// level. A nil Logger discards them.
	Logger *slog.Logger

	mu    sync.Mutex
	cache *lru.Cache
}

// NewFetcher returns a Fetcher with default settings.
func NewFetcher(c Client) *Fetcher {
	return &Fetcher{
		client:  c,
		Workers: DefaultWorkers,
		cache:   lru.New(DefaultCacheSize),
	}
}

func (f *Fetcher) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// cached returns the cached value for key, or calls fn and caches its
// result if it succeeds.
func cached[T any](f *Fetcher, key string, fn func() (T, error)) (T, error) {
	f.mu.Lock()
	v, ok := f.cache.Get(key)
	f.mu.Unlock()
	if ok {
		return v.(T), nil
	}
	t, err := fn()
	if err != nil {
		return t, err
	}
	f.mu.Lock()
	f.cache.Add(key, t)
	f.mu.Unlock()
	return t, nil
}

func (f *Fetcher) versions(ctx context.Context, name string) ([]string, error) {
	return cached(f, "versions\x00"+name, func() ([]string, error) {
		return f.client.Versions(ctx, name)
	})
}

func (f *Fetcher) requirements(ctx context.Context, name, ver string) ([]string, error) {
	return cached(f, "requirements\x00"+name+"\x00"+ver, func() ([]string, error) {
		return f.client.Requirements(ctx, name, ver)
	})
}

// keep reports whether a version string should enter the catalog: it must
// be a valid PEP 440 version and, unless Prereleases is set, not a
// pre-release.
func (f *Fetcher) keep(ver string) bool {
	v, err := semver.PyPI.Parse(ver)
	if err != nil {
		return false
	}
	return f.Prereleases || !v.IsPrerelease()
}

// Depends converts requirement strings into the depends map of a catalog
// entry. Requirements that only apply to an extra are dropped, other
// environment markers are ignored, and requirements that fail to parse are
// skipped. A package required twice gets the constraints of the last
// requirement.
func Depends(reqs []string) (map[string]version.ConstraintList, []error) {
	deps := make(map[string]version.ConstraintList)
	var errs []error
	for _, r := range reqs {
		d, err := pypi.ParseDependency(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if strings.Contains(d.Environment, "extra") {
			continue
		}
		cl, err := requirements.ParseSpecifier(d.Constraint)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r, err))
			continue
		}
		if cl == nil {
			cl = version.ConstraintList{}
		}
		deps[d.Name] = cl
	}
	return deps, errs
}

// Fetch returns the catalog of the roots and everything they require, down
// to MaxDepth levels. Packages the client does not know appear with no
// versions, as do packages whose metadata was not found; a version whose
// requirements cannot be found is left out. Any other client error stops
// the fetch.
func (f *Fetcher) Fetch(ctx context.Context, roots []string) (catalog.Catalog, error) {
	log := f.logger()
	cat := make(catalog.Catalog)
	var catMu sync.Mutex

	seen := make(map[string]bool)
	var level []string
	for _, r := range roots {
		if name := pypi.CanonPackageName(r); !seen[name] {
			seen[name] = true
			level = append(level, name)
		}
	}
	for depth := 0; len(level) > 0; depth++ {
		log.Info("fetching", "depth", depth, "packages", len(level))
		found := make(map[string]bool)
		var foundMu sync.Mutex

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(max(f.Workers, 1))
		for _, name := range level {
			g.Go(func() error {
				entry, deps, err := f.fetchPackage(gctx, name)
				if err != nil {
					return err
				}
				catMu.Lock()
				cat[name] = entry
				catMu.Unlock()
				foundMu.Lock()
				for _, d := range deps {
					found[d] = true
				}
				foundMu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if f.MaxDepth > 0 && depth+1 > f.MaxDepth {
			break
		}
		level = level[:0:0]
		for _, d := range slices.Sorted(maps.Keys(found)) {
			if !seen[d] && !catalog.IsInterpreter(d) {
				seen[d] = true
				level = append(level, d)
			}
		}
	}
	return cat, nil
}

// fetchPackage fetches every kept version of a package with its
// requirements, and returns the catalog entry along with the names of the
// required packages.
func (f *Fetcher) fetchPackage(ctx context.Context, name string) (map[string]catalog.Metadata, []string, error) {
	log := f.logger()
	entry := make(map[string]catalog.Metadata)
	vs, err := f.versions(ctx, name)
	if errors.Is(err, ErrNotFound) {
		log.Debug("package not found", "package", name)
		return entry, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("fetching versions of %s: %w", name, err)
	}
	depNames := make(map[string]bool)
	for _, ver := range vs {
		if !f.keep(ver) {
			continue
		}
		reqs, err := f.requirements(ctx, name, ver)
		if errors.Is(err, ErrNotFound) {
			log.Debug("requirements not found", "package", name, "version", ver)
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("fetching requirements of %s %s: %w", name, ver, err)
		}
		deps, errs := Depends(reqs)
		for _, err := range errs {
			log.Debug("skipping requirement", "package", name, "version", ver, "error", err)
		}
		for d := range deps {
			depNames[d] = true
		}
		entry[ver] = catalog.Metadata{
			Depends:    deps,
			Constrains: make(map[string]version.ConstraintList),
		}
	}
	return entry, slices.Sorted(maps.Keys(depNames)), nil
}
