package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/legalis-go/core/pkg/entity"
	"github.com/legalis-go/core/pkg/rule"
	"github.com/legalis-go/core/pkg/value"
)

// checkpointSchemaVersion guards restore against a checkpoint produced
// by an incompatible build of the simulator (spec §4.6 "restore...
// resumes at the last completed step with identical downstream
// metrics" implies the format itself must be versioned to detect drift).
const checkpointSchemaVersion = 1

type entityDoc struct {
	ID         string                 `json:"id"`
	Attributes map[string]value.Value `json:"attributes"`
}

type aggregatorDoc struct {
	Kind    AggregatorKind     `json:"kind"`
	Count   float64            `json:"count"`
	Sum     float64            `json:"sum"`
	Min     float64            `json:"min"`
	Max     float64            `json:"max"`
	HasMM   bool               `json:"has_min_max"`
	Buckets []float64          `json:"buckets,omitempty"`
	PerStep map[int]float64    `json:"per_step,omitempty"`
	Samples []float64          `json:"samples,omitempty"`
}

type metricGroupDoc struct {
	Name    string                    `json:"name"`
	Groups  map[string]aggregatorDoc  `json:"groups"`
}

type checkpointDoc struct {
	SchemaVersion      int              `json:"schema_version"`
	StepIndex          int              `json:"step_index"`
	Now                time.Time        `json:"now"`
	Schedule           Schedule         `json:"schedule"`
	Done               bool             `json:"done"`
	Entities           []entityDoc      `json:"entities"`
	GeneratorPositions []int            `json:"generator_positions,omitempty"`
	Metrics            []metricGroupDoc `json:"metrics"`
}

// Checkpoint serializes the Run's current state to opaque bytes (spec
// §4.6 "checkpoint() → opaque bytes"). Only *SliceGenerator feed
// generators have their drain position captured; a custom Generator
// implementation resumes from wherever it currently sits in memory,
// which is correct only within the same process.
func (r *Run) Checkpoint() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := checkpointDoc{
		SchemaVersion: checkpointSchemaVersion,
		StepIndex:     r.stepIndex,
		Now:           r.now,
		Schedule:      r.schedule,
		Done:          r.done,
		Metrics:       exportMetrics(r.metrics),
	}

	ids := make([]string, 0, len(r.entities))
	for id := range r.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		e := r.entities[id]
		// entity.Static does not expose its full relationship map, only
		// per-kind lookup, so relationship state is not round-tripped
		// through a checkpoint — entities restored from a checkpoint
		// keep the relationships the caller re-supplies to Restore's pop.
		doc.Entities = append(doc.Entities, entityDoc{
			ID:         id,
			Attributes: e.Attributes(),
		})
	}

	for _, g := range r.feed.generators {
		if sg, ok := g.(*SliceGenerator); ok {
			doc.GeneratorPositions = append(doc.GeneratorPositions, sg.pos)
		}
	}

	return json.Marshal(doc)
}

// Restore rebuilds a Run from checkpoint bytes. The caller must supply
// the same statutes, schedule-independent configuration, population
// (for relationships/regions, which a checkpoint does not capture), and
// feed generators (in the same order) used to produce the checkpoint —
// Restore only rehydrates the mutable parts the Simulator itself owns:
// clock position, entity attribute state, generator drain positions,
// and metrics accumulator state.
func Restore(data []byte, pop *entity.Population, statutes []rule.Statute, metricsSpec MetricsSpec, opts Options) (*Run, error) {
	var doc checkpointDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errCheckpointIncompatible(err.Error())
	}
	if doc.SchemaVersion > checkpointSchemaVersion {
		return nil, errCheckpointIncompatible(fmt.Sprintf("checkpoint schema version %d is newer than supported version %d", doc.SchemaVersion, checkpointSchemaVersion))
	}
	if len(statutes) == 0 {
		return nil, errNoStatutes()
	}

	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	feed := opts.Feed
	if feed == nil {
		feed = NewEventFeed()
	}
	for i, g := range feed.generators {
		if i >= len(doc.GeneratorPositions) {
			break
		}
		if sg, ok := g.(*SliceGenerator); ok {
			sg.pos = doc.GeneratorPositions[i]
		}
	}

	entities := make(map[string]*entity.Static, len(doc.Entities))
	for _, ed := range doc.Entities {
		entities[ed.ID] = rebuildEntity(ed, pop, doc.Now)
	}

	r := &Run{
		statutes:  statutes,
		schedule:  doc.Schedule,
		opts:      opts,
		entities:  entities,
		metrics:   restoreMetrics(metricsSpec, doc.Metrics),
		feed:      feed,
		stepIndex: doc.StepIndex,
		now:       doc.Now,
		done:      doc.Done,
	}
	return r, nil
}

func exportMetrics(b *metricsBank) []metricGroupDoc {
	names := make([]string, 0, len(b.state))
	for name := range b.state {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]metricGroupDoc, 0, len(names))
	for _, name := range names {
		groups := b.state[name]
		doc := metricGroupDoc{Name: name, Groups: make(map[string]aggregatorDoc, len(groups))}
		for key, agg := range groups {
			ad := aggregatorDoc{
				Kind:  agg.def,
				Count: agg.count,
				Sum:   agg.sum,
				Min:   agg.min,
				Max:   agg.max,
				HasMM: agg.hasMM,
			}
			if agg.def == AggregatorHistogram {
				ad.Buckets = append([]float64(nil), agg.buckets...)
			}
			if agg.def == AggregatorTimeSeries {
				ad.PerStep = make(map[int]float64, len(agg.perStep))
				for k, v := range agg.perStep {
					ad.PerStep[k] = v
				}
			}
			if agg.def == AggregatorQuintile {
				ad.Samples = append([]float64(nil), agg.samples...)
			}
			doc.Groups[key] = ad
		}
		out = append(out, doc)
	}
	return out
}

func restoreMetrics(spec MetricsSpec, docs []metricGroupDoc) *metricsBank {
	b := newMetricsBank(spec)
	defByName := make(map[string]MetricDef, len(spec.Defs))
	for _, d := range spec.Defs {
		defByName[d.Name] = d
	}
	for _, doc := range docs {
		def, ok := defByName[doc.Name]
		if !ok {
			continue
		}
		groups := make(map[string]*aggregatorState, len(doc.Groups))
		for key, ad := range doc.Groups {
			agg := newAggregatorState(def)
			agg.count = ad.Count
			agg.sum = ad.Sum
			agg.min = ad.Min
			agg.max = ad.Max
			agg.hasMM = ad.HasMM
			if ad.Buckets != nil {
				agg.buckets = append([]float64(nil), ad.Buckets...)
			}
			if ad.PerStep != nil {
				agg.perStep = make(map[int]float64, len(ad.PerStep))
				for k, v := range ad.PerStep {
					agg.perStep[k] = v
				}
			}
			if ad.Samples != nil {
				agg.samples = append([]float64(nil), ad.Samples...)
			}
			groups[key] = agg
		}
		b.state[doc.Name] = groups
	}
	return b
}

// rebuildEntity restores one entity's attribute state from a checkpoint
// document, preserving the relationship/region data that only the
// original population (supplied fresh to Restore) carries.
func rebuildEntity(ed entityDoc, pop *entity.Population, t time.Time) *entity.Static {
	if pop != nil {
		if base, ok := pop.Get(ed.ID); ok {
			if static, ok := base.(*entity.Static); ok {
				return static.WithAttributes(ed.Attributes).WithAsOf(t)
			}
		}
	}
	return entity.New(ed.ID, ed.Attributes, nil, nil).WithAsOf(t)
}

// CheckpointStore persists opaque checkpoint bytes under a key, for
// hosts running the Simulator across process restarts or separate
// processes (spec §4.6 checkpointing, made durable).
type CheckpointStore interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, bool, error)
}

// MemoryCheckpointStore is the in-memory reference CheckpointStore,
// sufficient for a single process and for tests.
type MemoryCheckpointStore struct {
	data map[string][]byte
}

func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{data: make(map[string][]byte)}
}

func (m *MemoryCheckpointStore) Save(_ context.Context, key string, data []byte) error {
	cp := append([]byte(nil), data...)
	m.data[key] = cp
	return nil
}

func (m *MemoryCheckpointStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	data, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}
