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
depsolve picks an interpreter version and package versions for a catalog of
PyPI packages, builds such catalogs from the deps.dev API and PyPI, and
checks solutions against them.

	depsolve fetch -requirements requirements.txt -output catalog.json
	depsolve solve -catalog catalog.json -output solution.json
	depsolve validate -catalog catalog.json -solution solution.json
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	pb "deps.dev/api/v3"
	"deps.dev/util/depsolve"
	"deps.dev/util/depsolve/catalog"
	"deps.dev/util/depsolve/genetic"
	"deps.dev/util/depsolve/prune"
	"deps.dev/util/depsolve/registry"
	"deps.dev/util/depsolve/requirements"
	"deps.dev/util/depsolve/validate"
)

// command describes a subcommand.
type command struct {
	name  string
	short string
	usage string
	long  string
	run   func(args []string) error
}

// commands is assigned in init to break the initialization cycle through
// the run functions, which refer back to it for usage strings.
var commands []command

func init() {
	commands = []command{
		{
			name:  "solve",
			short: "Search for the best installation plan of a catalog",
			usage: "depsolve solve -catalog <file> [flags]",
			long: `Prune the catalog, then run the genetic search over the packages
	pruning left open. Writes the solution to -output and a detailed variant,
	listing uninstalled packages too, next to it with a "_detailed" suffix.

	Search parameters may be read from a YAML or JSON -config file; flags given
	on the command line take precedence.
	`,
			run: runSolve,
		},
		{
			name:  "prune",
			short: "Resolve the packages a catalog's constraints already settle",
			usage: "depsolve prune -catalog <file> -output <file> [-precomputed <file>]",
			long: `Run constraint pruning alone. Writes the reduced catalog, holding the
	packages a search still has to decide, to -output, and the pruning records
	of everything else to -precomputed.
	`,
			run: runPrune,
		},
		{
			name:  "fetch",
			short: "Build a catalog from PyPI metadata",
			usage: "depsolve fetch [-requirements <file>] [flags] [package...]",
			long: `Walk the requirements of the given packages, and of the packages in
	-requirements, through the deps.dev API and the PyPI JSON API, and write
	the resulting catalog to -output.
	`,
			run: runFetch,
		},
		{
			name:  "validate",
			short: "Check a solution against a catalog",
			usage: "depsolve validate -catalog <file> -solution <file>",
			long: `Report every missing or conflicting dependency of a solution. Exits
	with a non-zero status if any problem is found.
	`,
			run: runValidate,
		},
	}
}

func main() {
	log.SetFlags(0)
	if err := dispatch(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "depsolve - dependency resolution by pruning and genetic search\n\n")
	fmt.Fprintf(w, "Usage:\n  depsolve <command> [arguments]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", cmd.name, cmd.short)
	}
	fmt.Fprintf(w, "\nRun 'depsolve help <command>' for details on a specific command.\n")
}

func printCommandHelp(w io.Writer, name string) {
	for _, cmd := range commands {
		if cmd.name == name {
			fmt.Fprintf(w, "Usage: %s\n\n%s", cmd.usage, cmd.long)
			return
		}
	}
	fmt.Fprintf(w, "depsolve: unknown command %q\n\nRun 'depsolve help' for usage.\n", name)
}

func dispatch(args []string) error {
	if len(args) == 0 || args[0] == "--help" || args[0] == "-h" {
		printUsage(os.Stdout)
		return nil
	}
	if args[0] == "help" {
		if len(args) >= 2 {
			printCommandHelp(os.Stdout, args[1])
		} else {
			printUsage(os.Stdout)
		}
		return nil
	}
	for _, cmd := range commands {
		if cmd.name == args[0] {
			return cmd.run(args[1:])
		}
	}
	return fmt.Errorf("unknown command %q\n\nRun 'depsolve help' for usage.", args[0])
}

// newFlagSet returns a flag set for a command that reports errors instead
// of exiting.
func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		printCommandHelp(fs.Output(), name)
		fmt.Fprintf(fs.Output(), "\nFlags:\n")
		fs.PrintDefaults()
	}
	return fs
}

// newLogger returns the library logger, writing text records to stderr.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// splitList splits a comma separated flag value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// detailedPath returns the path of the detailed variant of an output file:
// "out/solution.json" becomes "out/solution_detailed.json".
func detailedPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_detailed" + ext
}

// ---------------------------------------------------------------------------
// solve
// ---------------------------------------------------------------------------

type solveFlags struct {
	catalog, hard, reqs, config, output string
	interpreters, metricsAddr           string
	cfg                                 genetic.Config
	maxRounds                           int
	verbose                             bool
}

func parseSolveFlags(args []string) (*solveFlags, error) {
	f := &solveFlags{cfg: genetic.DefaultConfig()}
	fs := newFlagSet("solve")
	fs.StringVar(&f.catalog, "catalog", "", "catalog `file` (JSON or YAML)")
	fs.StringVar(&f.hard, "hard-constraints", "", "hard constraints `file`")
	fs.StringVar(&f.reqs, "requirements", "", "pip requirements `file`; restricts the solve to its packages")
	fs.StringVar(&f.config, "config", "", "search parameters `file`")
	fs.StringVar(&f.output, "output", "solution.json", "solution `file`")
	fs.StringVar(&f.interpreters, "python-versions", strings.Join(depsolve.DefaultInterpreters, ","), "comma separated interpreter versions to choose from")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this `address` while solving")
	fs.IntVar(&f.cfg.PopulationSize, "population", f.cfg.PopulationSize, "population size")
	fs.IntVar(&f.cfg.Generations, "generations", f.cfg.Generations, "number of generations")
	fs.Float64Var(&f.cfg.CrossoverRate, "crossover-rate", f.cfg.CrossoverRate, "crossover probability")
	fs.Float64Var(&f.cfg.MutationRate, "mutation-rate", f.cfg.MutationRate, "per-gene mutation probability")
	fs.IntVar(&f.cfg.TournamentSize, "tournament-size", f.cfg.TournamentSize, "tournament size")
	fs.IntVar(&f.cfg.Workers, "workers", f.cfg.Workers, "goroutines evaluating fitness")
	fs.Int64Var(&f.cfg.Seed, "seed", -1, "random seed; negative means time based")
	fs.IntVar(&f.maxRounds, "max-rounds", prune.MaxRounds, "pruning round cap")
	fs.BoolVar(&f.verbose, "v", false, "log debug output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if f.catalog == "" {
		return nil, errors.New("usage: " + commands[0].usage)
	}
	if f.config != "" {
		// Read the file over the defaults, then reapply the flags given
		// explicitly.
		set := make(map[string]bool)
		fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
		cfg := genetic.DefaultConfig()
		cfg.Seed = -1
		if err := catalog.ReadFile(f.config, &cfg); err != nil {
			return nil, err
		}
		flagged := f.cfg
		f.cfg = cfg
		for name, field := range map[string]func(){
			"population":      func() { f.cfg.PopulationSize = flagged.PopulationSize },
			"generations":     func() { f.cfg.Generations = flagged.Generations },
			"crossover-rate":  func() { f.cfg.CrossoverRate = flagged.CrossoverRate },
			"mutation-rate":   func() { f.cfg.MutationRate = flagged.MutationRate },
			"tournament-size": func() { f.cfg.TournamentSize = flagged.TournamentSize },
			"workers":         func() { f.cfg.Workers = flagged.Workers },
			"seed":            func() { f.cfg.Seed = flagged.Seed },
		} {
			if set[name] {
				field()
			}
		}
	}
	if f.cfg.Seed < 0 {
		f.cfg.Seed = time.Now().UnixNano()
	}
	return f, nil
}

func runSolve(args []string) error {
	f, err := parseSolveFlags(args)
	if err != nil {
		return err
	}
	logger := newLogger(f.verbose)

	cat, err := catalog.Load(f.catalog)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	log.Printf("Loaded %d packages from %s", len(cat), f.catalog)
	opts := []depsolve.Option{
		depsolve.WithLogger(logger),
		depsolve.WithConfig(f.cfg),
		depsolve.WithInterpreters(splitList(f.interpreters)...),
		depsolve.WithMaxRounds(f.maxRounds),
	}
	if f.hard != "" {
		hard, err := catalog.LoadHardConstraints(f.hard)
		if err != nil {
			return fmt.Errorf("loading hard constraints: %w", err)
		}
		log.Printf("Hard constraints on %s", strings.Join(hard.Names(), ", "))
		opts = append(opts, depsolve.WithHardConstraints(hard))
	}
	if f.reqs != "" {
		rf, err := requirements.ParseFile(f.reqs)
		if err != nil {
			return err
		}
		opts = append(opts, depsolve.WithRequirements(rf))
	}
	if f.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, depsolve.WithMetrics(depsolve.NewMetrics(reg)))
		go serveMetrics(f.metricsAddr, reg, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	start := time.Now()
	log.Printf("Solving with seed %d", f.cfg.Seed)
	sol, err := depsolve.Solve(ctx, cat, opts...)
	if sol == nil {
		return err
	}
	if err != nil {
		log.Printf("Search interrupted, keeping the best solution so far: %v", err)
	}
	log.Printf("Solved in %v", time.Since(start))
	printSolution(os.Stdout, sol)

	if err := catalog.WriteFile(f.output, sol); err != nil {
		return err
	}
	if err := catalog.WriteFile(detailedPath(f.output), sol.Detailed()); err != nil {
		return err
	}
	log.Printf("Wrote %s", f.output)
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server", "addr", addr, "error", err)
	}
}

// printSolution prints the fitness, the interpreter and the installed
// packages in name order.
func printSolution(out io.Writer, sol *depsolve.Solution) {
	w := tabwriter.NewWriter(out, 10, 2, 2, ' ', 0)
	fmt.Fprintf(w, "fitness\t%.3f\n", sol.Fitness)
	fmt.Fprintf(w, "python\t%s\n", sol.PythonVersion)
	names := make([]string, 0, len(sol.Packages))
	for name := range sol.Packages {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%s\n", name, sol.Packages[name])
	}
	w.Flush()
}

// ---------------------------------------------------------------------------
// prune
// ---------------------------------------------------------------------------

// pruneOutput is what the prune command writes to -precomputed.
type pruneOutput struct {
	Stats     prune.Stats             `json:"stats" yaml:"stats"`
	Rounds    []int                   `json:"rounds" yaml:"rounds"`
	Capped    bool                    `json:"capped" yaml:"capped"`
	Resolved  map[string]prune.Record `json:"resolved" yaml:"resolved"`
	Remaining []string                `json:"remaining" yaml:"remaining"`
}

func runPrune(args []string) error {
	var catPath, output, precomputed string
	var maxRounds int
	var verbose bool
	fs := newFlagSet("prune")
	fs.StringVar(&catPath, "catalog", "", "catalog `file`")
	fs.StringVar(&output, "output", "", "reduced catalog `file`")
	fs.StringVar(&precomputed, "precomputed", "", "pruning records `file`")
	fs.IntVar(&maxRounds, "max-rounds", prune.MaxRounds, "round cap")
	fs.BoolVar(&verbose, "v", false, "log debug output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if catPath == "" || output == "" {
		return errors.New("usage: " + commands[1].usage)
	}
	cat, err := catalog.Load(catPath)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	p := prune.Pruner{MaxRounds: maxRounds, Logger: newLogger(verbose)}
	res := p.Run(prune.NewGraph(cat))
	reduced, _ := res.Split(cat)
	s := res.Stats()
	log.Printf("Pruned %d packages in %d rounds: %d fixed, %d constrained, %d unsatisfiable, %d remaining",
		len(cat), len(res.Rounds), s.Fixed, s.Candidates, s.Unsatisfiable, s.Remaining)
	if err := catalog.Save(output, reduced); err != nil {
		return err
	}
	log.Printf("Wrote %d packages to %s", len(reduced), output)
	if precomputed != "" {
		out := pruneOutput{
			Stats:     s,
			Rounds:    res.Rounds,
			Capped:    res.Capped,
			Resolved:  res.Resolved,
			Remaining: res.Remaining,
		}
		if err := catalog.WriteFile(precomputed, out); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// fetch
// ---------------------------------------------------------------------------

func runFetch(args []string) error {
	var reqs, output, apiAddr, pypiURL string
	var depth, workers int
	var prereleases, verbose bool
	var timeout time.Duration
	fs := newFlagSet("fetch")
	fs.StringVar(&reqs, "requirements", "", "pip requirements `file` naming the root packages")
	fs.StringVar(&output, "output", "catalog.json", "catalog `file`")
	fs.StringVar(&apiAddr, "api", registry.DefaultAPIAddr, "deps.dev API `address`")
	fs.StringVar(&pypiURL, "pypi", registry.DefaultPyPIURL, "PyPI base `url`")
	fs.IntVar(&depth, "depth", 0, "requirement levels to follow below the roots; 0 means all")
	fs.IntVar(&workers, "workers", registry.DefaultWorkers, "concurrent requests")
	fs.BoolVar(&prereleases, "prereleases", false, "keep pre-release versions")
	fs.DurationVar(&timeout, "timeout", 10*time.Minute, "give up after this long")
	fs.BoolVar(&verbose, "v", false, "log debug output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	roots := fs.Args()
	if reqs != "" {
		rf, err := requirements.ParseFile(reqs)
		if err != nil {
			return err
		}
		roots = append(roots, rf.Packages...)
	}
	if len(roots) == 0 {
		return errors.New("usage: " + commands[2].usage)
	}

	conn, err := registry.Dial(apiAddr)
	if err != nil {
		return err
	}
	defer conn.Close()
	client := registry.NewAPIClient(pb.NewInsightsClient(conn))
	client.PyPIURL = pypiURL

	f := registry.NewFetcher(client)
	f.MaxDepth = depth
	f.Workers = workers
	f.Prereleases = prereleases
	f.Logger = newLogger(verbose)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	start := time.Now()
	cat, err := f.Fetch(ctx, roots)
	if err != nil {
		return err
	}
	log.Printf("Fetched %d packages, %d versions in %v", len(cat), cat.Len(), time.Since(start))
	return catalog.Save(output, cat)
}

// ---------------------------------------------------------------------------
// validate
// ---------------------------------------------------------------------------

func runValidate(args []string) error {
	var catPath, solPath string
	fs := newFlagSet("validate")
	fs.StringVar(&catPath, "catalog", "", "catalog `file`")
	fs.StringVar(&solPath, "solution", "", "solution `file`")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if catPath == "" || solPath == "" {
		return errors.New("usage: " + commands[3].usage)
	}
	cat, err := catalog.Load(catPath)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	sol, err := validate.Load(solPath)
	if err != nil {
		return fmt.Errorf("loading solution: %w", err)
	}
	log.Printf("Validating %d packages", len(sol.Packages))
	probs := validate.Check(sol, cat)
	for _, p := range probs {
		fmt.Println(p)
	}
	if len(probs) > 0 {
		return fmt.Errorf("found %d problems", len(probs))
	}
	fmt.Println("valid solution")
	return nil
}
