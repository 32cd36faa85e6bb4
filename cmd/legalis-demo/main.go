// Command legalis-demo exercises the core library end to end: it
// registers a statute, activates it, evaluates it against an entity,
// verifies the rule set, runs a short simulation over a small
// population, and appends an audit record — all through the public
// package API, without any HTTP or CLI surface of its own (spec §1
// places those out of scope). This mirrors the teacher's cmd/bootstrap
// shape: a single plain main() logging what it does with log.Printf,
// no flag parsing beyond what's needed to demonstrate the library.
package main

import (
	"context"
	"log"
	"time"

	"github.com/legalis-go/core/pkg/audit"
	"github.com/legalis-go/core/pkg/config"
	"github.com/legalis-go/core/pkg/entity"
	"github.com/legalis-go/core/pkg/eval"
	"github.com/legalis-go/core/pkg/registry"
	"github.com/legalis-go/core/pkg/rule"
	"github.com/legalis-go/core/pkg/sim"
	"github.com/legalis-go/core/pkg/value"
	"github.com/legalis-go/core/pkg/verifier"
)

func main() {
	cfg := config.Load()
	log.Printf("[legalis-demo] log_level=%s worker_count=%d audit_sink=%s", cfg.LogLevel, cfg.WorkerCount, cfg.AuditSink)

	structuredLog := audit.NewLogger()
	ctx := context.Background()

	reg := registry.NewInMemoryRegistry()
	statute := rule.Statute{
		ID:            "voting-age-1",
		Title:         "Minimum voting age",
		RegionScope:   rule.RegionScope{{Kind: rule.RegionCountry, ID: "US"}},
		EffectiveFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Conditions: []rule.Condition{
			rule.Leaf("age", value.OpGte, value.Int(18)),
		},
		Effects: []rule.Effect{
			{Kind: rule.EffectGrant, Target: "voting_rights", Value: value.Null(), Description: "grants voting rights"},
		},
		Precedence: 10,
		Hierarchy:  rule.HierarchyStatutory,
	}

	if err := reg.Add(statute); err != nil {
		log.Fatalf("register statute: %v", err)
	}
	if err := reg.SetStatus(statute.ID, registry.Active); err != nil {
		log.Fatalf("activate statute: %v", err)
	}
	log.Printf("[legalis-demo] registered and activated %q", statute.ID)

	diagnostics := verifier.Verify(reg.ActiveStatutes(false), nil)
	log.Printf("[legalis-demo] verifier produced %d diagnostics", len(diagnostics))
	for _, d := range diagnostics {
		log.Printf("[legalis-demo]   %s %s: %s", d.Severity, d.Code, d.Message)
	}

	pop := entity.NewPopulation()
	adult := entity.New("person-1", map[string]value.Value{"age": value.Int(21)}, nil, map[string]bool{"US": true})
	minor := entity.New("person-2", map[string]value.Value{"age": value.Int(16)}, nil, map[string]bool{"US": true})
	pop.Put(adult)
	pop.Put(minor)

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for _, id := range []string{"person-1", "person-2"} {
		ent, _ := pop.Get(id)
		results, err := eval.Evaluate(reg.ActiveStatutes(false), pop, ent, now, eval.Options{})
		if err != nil {
			log.Fatalf("evaluate %s: %v", id, err)
		}
		for _, res := range results {
			log.Printf("[legalis-demo] %s vs %s: %s", id, res.StatuteID, res.Status)
			_ = structuredLog.Record(ctx, audit.EventEvaluation, "evaluate", "statute:"+res.StatuteID, map[string]interface{}{
				"entity_id": id,
				"status":    string(res.Status),
			})
		}
	}

	store := audit.NewStore()
	_, err := store.Append("person-1", statute.ID, statute.Version, eval.Applies, statute.Effects, eval.TraceNode{}, now)
	if err != nil {
		log.Fatalf("append audit record: %v", err)
	}
	if idx := store.VerifyChain(); idx != -1 {
		log.Fatalf("audit chain broken at index %d", idx)
	}
	log.Printf("[legalis-demo] audit chain head=%s len=%d verified OK", store.Head(), store.Len())

	runPop := entity.NewPopulation()
	runPop.Put(adult)
	runPop.Put(minor)

	metricsSpec := sim.MetricsSpec{
		Defs: []sim.MetricDef{
			{
				Name: "applies_count",
				Kind: sim.AggregatorCount,
				Observe: func(obs sim.Observation) (float64, bool) {
					if !obs.Applies {
						return 0, false
					}
					return 1, true
				},
			},
		},
	}

	schedule := sim.Schedule{Start: now, End: now.Add(24 * time.Hour), Step: 24 * time.Hour}
	run, err := sim.New(runPop, reg.ActiveStatutes(false), schedule, metricsSpec, sim.Options{Workers: cfg.WorkerCount, Audit: store})
	if err != nil {
		log.Fatalf("new simulation: %v", err)
	}

	for !run.Done() {
		step, err := run.Step(ctx)
		if err != nil {
			log.Fatalf("simulation step: %v", err)
		}
		log.Printf("[legalis-demo] step %d at %s: %d events", step.StepIndex, step.Now.Format(time.RFC3339), step.EventCount)
	}

	snapshot := run.Metrics()
	log.Printf("[legalis-demo] final metrics: %+v", snapshot)
}
