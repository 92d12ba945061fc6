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

package depsolve

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"deps.dev/util/depsolve/genetic"
	"deps.dev/util/depsolve/prune"
)

// Metrics holds the Prometheus collectors updated by Solve.
type Metrics struct {
	Solves      prometheus.Counter
	Generations prometheus.Counter
	Evaluations prometheus.Counter
	BestFitness prometheus.Gauge
	Pruned      *prometheus.CounterVec
	Duration    prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg, unless
// reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Solves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "depsolve",
			Name:      "solves_total",
			Help:      "Number of completed solves.",
		}),
		Generations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "depsolve",
			Name:      "generations_total",
			Help:      "Number of evaluated generations.",
		}),
		Evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "depsolve",
			Name:      "fitness_evaluations_total",
			Help:      "Number of chromosomes scored.",
		}),
		BestFitness: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "depsolve",
			Name:      "best_fitness",
			Help:      "Best fitness found by the running or last search.",
		}),
		Pruned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "depsolve",
			Name:      "pruned_packages_total",
			Help:      "Packages by pruning outcome.",
		}, []string{"outcome"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "depsolve",
			Name:      "solve_duration_seconds",
			Help:      "Time spent in Solve.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Solves, m.Generations, m.Evaluations, m.BestFitness, m.Pruned, m.Duration)
	}
	return m
}

func (m *Metrics) observePruning(s prune.Stats) {
	if m == nil {
		return
	}
	m.Pruned.WithLabelValues("fixed").Add(float64(s.Fixed))
	m.Pruned.WithLabelValues("constrained").Add(float64(s.Candidates))
	m.Pruned.WithLabelValues("unsatisfiable").Add(float64(s.Unsatisfiable))
	m.Pruned.WithLabelValues("remaining").Add(float64(s.Remaining))
}

func (m *Metrics) observeGeneration(population int, s genetic.GenerationStats) {
	if m == nil {
		return
	}
	m.Generations.Inc()
	m.Evaluations.Add(float64(population))
	m.BestFitness.Set(s.BestEver)
}

func (m *Metrics) observeSolve(d time.Duration) {
	if m == nil {
		return
	}
	m.Solves.Inc()
	m.Duration.Observe(d.Seconds())
}
