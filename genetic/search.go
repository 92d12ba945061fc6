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
Package genetic searches for a package assignment with a generational
genetic algorithm.

An Encoding turns the packages left undecided by pruning into genes, an
Evaluator scores the assignment a chromosome decodes to, and a Search
evolves a population of chromosomes for a fixed number of generations.
Each generation is bred entirely from the previous one by tournament
selection, single point crossover and per-gene mutation. The best
chromosome ever evaluated is kept apart from the population and is the
result of the search.

All random choices are made by the goroutine calling Run, in a fixed
order, so a given seed reproduces a run whatever the number of workers
used to evaluate fitness.
*/
package genetic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"
)

// Config holds the parameters of a Search.
type Config struct {
	PopulationSize int     `json:"population_size" yaml:"population_size"`
	Generations    int     `json:"generations" yaml:"generations"`
	CrossoverRate  float64 `json:"crossover_rate" yaml:"crossover_rate"`
	MutationRate   float64 `json:"mutation_rate" yaml:"mutation_rate"`
	TournamentSize int     `json:"tournament_size" yaml:"tournament_size"`
	// Workers bounds the number of goroutines evaluating fitness.
	Workers int   `json:"workers" yaml:"workers"`
	Seed    int64 `json:"seed" yaml:"seed"`
}

// DefaultConfig returns the default search parameters.
func DefaultConfig() Config {
	return Config{
		PopulationSize: 100,
		Generations:    50,
		CrossoverRate:  0.9,
		MutationRate:   0.05,
		TournamentSize: 3,
		Workers:        1,
	}
}

// Validate reports the first parameter that is out of range.
func (c Config) Validate() error {
	switch {
	case c.PopulationSize < 1:
		return fmt.Errorf("population size %d: must be at least 1", c.PopulationSize)
	case c.Generations < 1:
		return fmt.Errorf("generations %d: must be at least 1", c.Generations)
	case c.CrossoverRate < 0 || c.CrossoverRate > 1:
		return fmt.Errorf("crossover rate %v: must be in [0, 1]", c.CrossoverRate)
	case c.MutationRate < 0 || c.MutationRate > 1:
		return fmt.Errorf("mutation rate %v: must be in [0, 1]", c.MutationRate)
	case c.TournamentSize < 1:
		return fmt.Errorf("tournament size %d: must be at least 1", c.TournamentSize)
	case c.Workers < 1:
		return fmt.Errorf("workers %d: must be at least 1", c.Workers)
	}
	return nil
}

// GenerationStats summarizes the fitness of one evaluated generation.
type GenerationStats struct {
	Generation int     `json:"generation"`
	Best       float64 `json:"best"`
	Mean       float64 `json:"mean"`
	Worst      float64 `json:"worst"`
	// BestEver is the best fitness seen up to and including this
	// generation.
	BestEver float64 `json:"best_ever"`
}

// Search runs the genetic algorithm over an Encoding.
type Search struct {
	cfg  Config
	enc  *Encoding
	eval *Evaluator
	rng  *rand.Rand

	// Logger receives progress every 10 generations and on the last one.
	// A nil Logger discards it.
	Logger *slog.Logger
	// OnGeneration, if set, is called after every evaluated generation
	// on the goroutine running the search.
	OnGeneration func(GenerationStats)
}

// NewSearch checks cfg and prepares a search. The evaluator must have been
// built for enc.
func NewSearch(enc *Encoding, eval *Evaluator, cfg Config) (*Search, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if eval.enc != enc {
		return nil, errors.New("evaluator was built for a different encoding")
	}
	return &Search{
		cfg:  cfg,
		enc:  enc,
		eval: eval,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Result is the outcome of a search.
type Result struct {
	Best       Chromosome
	Assignment Assignment
	Breakdown  Breakdown
	// Generations is the number of generations evaluated.
	Generations int
	History     []GenerationStats
}

// Fitness returns the fitness of the best chromosome.
func (r *Result) Fitness() float64 { return r.Breakdown.Fitness }

func (s *Search) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// Run evolves the population for the configured number of generations and
// returns the best chromosome found. The context is checked between
// generations; if it is done, Run returns the best result so far, or nil if
// no generation was evaluated, together with the context's error.
func (s *Search) Run(ctx context.Context) (*Result, error) {
	log := s.logger()
	pop := s.initial()
	res := &Result{}
	bestFit := math.Inf(-1)
	last := s.cfg.Generations - 1
	for gen := 0; gen <= last; gen++ {
		if err := ctx.Err(); err != nil {
			return s.finish(res), err
		}
		fits, err := s.evaluate(ctx, pop)
		if err != nil {
			return s.finish(res), err
		}
		for i, f := range fits {
			if f > bestFit {
				bestFit = f
				res.Best = pop[i].Clone()
			}
		}
		stats := summarize(gen, fits, bestFit)
		res.History = append(res.History, stats)
		res.Generations++
		if gen%10 == 0 || gen == last {
			log.Info("generation", "gen", gen, "best_fitness", bestFit, "mean_fitness", stats.Mean)
		}
		if s.OnGeneration != nil {
			s.OnGeneration(stats)
		}
		if gen < last {
			pop = s.breed(pop, fits)
		}
	}
	return s.finish(res), nil
}

// finish decodes the best chromosome. It returns nil if there is none.
func (s *Search) finish(res *Result) *Result {
	if res.Best == nil {
		return nil
	}
	res.Assignment = s.enc.Decode(res.Best)
	res.Breakdown = s.eval.Evaluate(res.Best)
	return res
}

func (s *Search) initial() []Chromosome {
	pop := make([]Chromosome, s.cfg.PopulationSize)
	for i := range pop {
		if len(s.eval.hard) > 0 {
			pop[i] = s.enc.Seeded(s.rng, s.eval.hard)
		} else {
			pop[i] = s.enc.Random(s.rng)
		}
	}
	return pop
}

// evaluate scores the population on up to Workers goroutines. Each
// goroutine writes only its own slot of the result.
func (s *Search) evaluate(ctx context.Context, pop []Chromosome) ([]float64, error) {
	fits := make([]float64, len(pop))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, c := range pop {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fits[i] = s.eval.Score(c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fits, nil
}

func (s *Search) breed(pop []Chromosome, fits []float64) []Chromosome {
	next := make([]Chromosome, 0, len(pop))
	for len(next) < len(pop) {
		p1 := pop[tournament(s.rng, fits, s.cfg.TournamentSize)]
		p2 := pop[tournament(s.rng, fits, s.cfg.TournamentSize)]
		c1, c2 := crossover(s.rng, p1, p2, s.cfg.CrossoverRate)
		mutate(s.rng, c1, s.enc.Genes, s.cfg.MutationRate)
		mutate(s.rng, c2, s.enc.Genes, s.cfg.MutationRate)
		next = append(next, c1)
		if len(next) < len(pop) {
			next = append(next, c2)
		}
	}
	return next
}

// tournament samples k indexes with replacement and returns the one with
// the highest fitness. The first sampled wins ties.
func tournament(rng *rand.Rand, fits []float64, k int) int {
	best := -1
	for range k {
		i := rng.Intn(len(fits))
		if best < 0 || fits[i] > fits[best] {
			best = i
		}
	}
	return best
}

// crossover swaps the tails of two parents after a cut point in
// [1, len-1] with probability pc. Otherwise, or if the parents are too short
// to cut, the children are copies of the parents.
func crossover(rng *rand.Rand, p1, p2 Chromosome, pc float64) (Chromosome, Chromosome) {
	if rng.Float64() > pc || len(p1) < 2 {
		return p1.Clone(), p2.Clone()
	}
	cut := 1 + rng.Intn(len(p1)-1)
	c1 := append(p1[:cut:cut], p2[cut:]...)
	c2 := append(p2[:cut:cut], p1[cut:]...)
	return c1, c2
}

// mutate redraws each gene of c with probability pm. The new value may
// equal the old one.
func mutate(rng *rand.Rand, c Chromosome, genes [][]Choice, pm float64) {
	for i := range c {
		if rng.Float64() < pm {
			c[i] = rng.Intn(len(genes[i]))
		}
	}
}

func summarize(gen int, fits []float64, bestEver float64) GenerationStats {
	s := GenerationStats{
		Generation: gen,
		Best:       math.Inf(-1),
		Worst:      math.Inf(1),
		BestEver:   bestEver,
	}
	sum := 0.0
	for _, f := range fits {
		s.Best = max(s.Best, f)
		s.Worst = min(s.Worst, f)
		sum += f
	}
	if len(fits) > 0 {
		s.Mean = sum / float64(len(fits))
	}
	return s
}
