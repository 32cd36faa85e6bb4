package sim

import (
	"math"
	"sort"

	"github.com/legalis-go/core/pkg/entity"
)

// AggregatorKind names one of the minimum aggregator set spec §4.6
// requires: count, sum, mean, min, max, histogram (fixed-width bins),
// per-step time series, quintile distribution.
type AggregatorKind string

const (
	AggregatorCount      AggregatorKind = "count"
	AggregatorSum        AggregatorKind = "sum"
	AggregatorMean       AggregatorKind = "mean"
	AggregatorMin        AggregatorKind = "min"
	AggregatorMax        AggregatorKind = "max"
	AggregatorHistogram  AggregatorKind = "histogram"
	AggregatorTimeSeries AggregatorKind = "time_series"
	AggregatorQuintile   AggregatorKind = "quintile"
)

// MetricDef declares one named aggregator over a per-entity observation
// function. GroupBy, when non-empty, splits the aggregator into a
// distribution keyed by the entity's region membership or a discrete
// bracket computed from Observe — the "distributional metrics (by
// income bracket, by region)" spec §4.6 calls first-class.
type MetricDef struct {
	Name    string
	Kind    AggregatorKind
	Observe func(obs Observation) (float64, bool)
	GroupBy func(obs Observation) string

	// HistogramMin, HistogramMax, HistogramBins configure a fixed-width
	// histogram; ignored by other aggregator kinds.
	HistogramMin  float64
	HistogramMax  float64
	HistogramBins int
}

// MetricsSpec is the set of named aggregators a simulation run observes.
type MetricsSpec struct {
	Defs []MetricDef
}

// Observation is what a step hands to each metric's Observe function:
// one entity's post-evaluation outcome for one statute, the step index
// it occurred on, and the entity snapshot the evaluation ran against
// (spec §4.6 step 3: "metrics aggregators observe results and entity
// snapshots"). Entity lets Observe/GroupBy read any attribute
// (age, income, ...) or region membership, which is what makes a
// distributional metric "by income bracket" or "by region" (spec §4.6
// "Distributional metrics... are first-class") possible at all — without
// it, Applies is the only float an aggregator could ever see.
type Observation struct {
	Step      int
	EntityID  string
	StatuteID string
	Applies   bool
	Entity    entity.Entity
}

type aggregatorState struct {
	def AggregatorKind

	count float64
	sum   float64
	min   float64
	max   float64
	hasMM bool

	histMin  float64
	histMax  float64
	histBins int
	buckets  []float64

	perStep map[int]float64

	samples []float64
}

func newAggregatorState(def MetricDef) *aggregatorState {
	s := &aggregatorState{def: def.Kind}
	if def.Kind == AggregatorHistogram {
		s.histMin = def.HistogramMin
		s.histMax = def.HistogramMax
		s.histBins = def.HistogramBins
		if s.histBins <= 0 {
			s.histBins = 1
		}
		s.buckets = make([]float64, s.histBins)
	}
	if def.Kind == AggregatorTimeSeries {
		s.perStep = make(map[int]float64)
	}
	return s
}

func (s *aggregatorState) observe(step int, v float64) {
	s.count++
	s.sum += v
	if !s.hasMM || v < s.min {
		s.min = v
	}
	if !s.hasMM || v > s.max {
		s.max = v
	}
	s.hasMM = true

	switch s.def {
	case AggregatorHistogram:
		width := (s.histMax - s.histMin) / float64(s.histBins)
		idx := 0
		if width > 0 {
			idx = int((v - s.histMin) / width)
		}
		if idx < 0 {
			idx = 0
		}
		if idx >= s.histBins {
			idx = s.histBins - 1
		}
		s.buckets[idx]++
	case AggregatorTimeSeries:
		s.perStep[step] += v
	case AggregatorQuintile:
		s.samples = append(s.samples, v)
	}
}

// Snapshot is the materialized value of one aggregator at the moment
// Metrics() is called.
type Snapshot struct {
	Kind AggregatorKind

	Count float64
	Sum   float64
	Mean  float64
	Min   float64
	Max   float64

	HistogramBuckets []float64

	TimeSeries map[int]float64

	// Quintiles holds the value at the 20th/40th/60th/80th/100th
	// percentile boundaries, in that order.
	Quintiles []float64
}

func (s *aggregatorState) snapshot() Snapshot {
	snap := Snapshot{Kind: s.def, Count: s.count, Sum: s.sum, Min: s.min, Max: s.max}
	if s.count > 0 {
		snap.Mean = s.sum / s.count
	}
	if s.def == AggregatorHistogram {
		snap.HistogramBuckets = append([]float64(nil), s.buckets...)
	}
	if s.def == AggregatorTimeSeries {
		snap.TimeSeries = make(map[int]float64, len(s.perStep))
		for k, v := range s.perStep {
			snap.TimeSeries[k] = v
		}
	}
	if s.def == AggregatorQuintile {
		snap.Quintiles = quintiles(s.samples)
	}
	return snap
}

// quintiles returns the values at the 20/40/60/80/100th percentile of a
// sorted copy of samples using nearest-rank interpolation. Deterministic
// regardless of the order samples were appended in, since the slice is
// sorted before any percentile is read.
func quintiles(samples []float64) []float64 {
	if len(samples) == 0 {
		return nil
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	out := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		rank := int(math.Ceil(float64(i) / 5 * float64(len(sorted))))
		if rank < 1 {
			rank = 1
		}
		if rank > len(sorted) {
			rank = len(sorted)
		}
		out[i-1] = sorted[rank-1]
	}
	return out
}

// metricsBank owns one aggregatorState per (metric name, group key) and
// accumulates observations across a run's steps.
type metricsBank struct {
	spec  MetricsSpec
	state map[string]map[string]*aggregatorState
}

func newMetricsBank(spec MetricsSpec) *metricsBank {
	return &metricsBank{spec: spec, state: make(map[string]map[string]*aggregatorState)}
}

func (b *metricsBank) observe(obs Observation) {
	for _, def := range b.spec.Defs {
		v, ok := def.Observe(obs)
		if !ok {
			continue
		}
		group := ""
		if def.GroupBy != nil {
			group = def.GroupBy(obs)
		}
		groups, ok := b.state[def.Name]
		if !ok {
			groups = make(map[string]*aggregatorState)
			b.state[def.Name] = groups
		}
		agg, ok := groups[group]
		if !ok {
			agg = newAggregatorState(def)
			groups[group] = agg
		}
		agg.observe(obs.Step, v)
	}
}

// MetricsSnapshot is the read-only, serializable view of every
// aggregator's current value, grouped by distribution key.
type MetricsSnapshot struct {
	Metrics map[string]map[string]Snapshot
}

func (b *metricsBank) snapshot() MetricsSnapshot {
	out := MetricsSnapshot{Metrics: make(map[string]map[string]Snapshot, len(b.state))}
	for name, groups := range b.state {
		out.Metrics[name] = make(map[string]Snapshot, len(groups))
		for group, agg := range groups {
			out.Metrics[name][group] = agg.snapshot()
		}
	}
	return out
}
