// Package sim implements the Simulator (spec §4.6): a time-stepped
// executor that runs the Evaluation Engine across a population of
// entities under a configurable schedule, draining exogenous events,
// aggregating metrics, and optionally appending audit records.
package sim

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/legalis-go/core/pkg/audit"
	"github.com/legalis-go/core/pkg/entity"
	"github.com/legalis-go/core/pkg/eval"
	"github.com/legalis-go/core/pkg/rule"
)

// Schedule is the simulation's logical clock: it advances from Start to
// End in fixed-size Step increments (spec §4.6 "(t_start, t_end,
// step)").
type Schedule struct {
	Start time.Time
	End   time.Time
	Step  time.Duration
}

func (s Schedule) validate() error {
	if !s.Start.Before(s.End) && !s.Start.Equal(s.End) {
		return errInvalidSchedule("t_start must not be after t_end")
	}
	if s.Step <= 0 {
		return errInvalidSchedule("step must be positive")
	}
	return nil
}

// CancelToken is polled at step boundaries; a true return cancels the
// run cooperatively (spec §5 "the Simulator checks a cancellation flag
// at each step boundary").
type CancelToken func() bool

// Options configures a Run beyond the mandatory population/rules/schedule
// /metrics quartet.
type Options struct {
	Workers      int
	ExprEnv      *rule.ExprEnv
	RegionFilter *rule.RegionScope
	Feed         *EventFeed
	Audit        *audit.Store
	Cancel       CancelToken
}

// StepResult is what Run.Step returns for one completed step.
type StepResult struct {
	StepIndex  int
	Now        time.Time
	Done       bool
	Results    map[string][]eval.EvaluationResult // keyed by entity id
	EventCount int
}

// Run is one in-progress (or completed) simulation over a population.
type Run struct {
	statutes []rule.Statute
	schedule Schedule
	opts     Options

	mu        sync.Mutex
	entities  map[string]*entity.Static
	metrics   *metricsBank
	feed      *EventFeed
	stepIndex int
	now       time.Time
	done      bool
}

// New constructs a Run. pop's entities must all be *entity.Static (the
// Simulator's own mutation model via WithAttribute); any other Entity
// implementation is rejected with an unsupported-entity error.
func New(pop *entity.Population, statutes []rule.Statute, schedule Schedule, metricsSpec MetricsSpec, opts Options) (*Run, error) {
	if pop == nil || pop.Len() == 0 {
		return nil, errEmptyPopulation()
	}
	if len(statutes) == 0 {
		return nil, errNoStatutes()
	}
	if err := schedule.validate(); err != nil {
		return nil, err
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	entities := make(map[string]*entity.Static, pop.Len())
	for _, id := range pop.IDs() {
		e, _ := pop.Get(id)
		static, ok := e.(*entity.Static)
		if !ok {
			return nil, errUnsupportedEntity(id)
		}
		entities[id] = static.WithAsOf(schedule.Start)
	}

	feed := opts.Feed
	if feed == nil {
		feed = NewEventFeed()
	}

	return &Run{
		statutes:  statutes,
		schedule:  schedule,
		opts:      opts,
		entities:  entities,
		metrics:   newMetricsBank(metricsSpec),
		feed:      feed,
		stepIndex: 0,
		now:       schedule.Start,
	}, nil
}

// Step advances the clock by one Schedule.Step, applying due events,
// evaluating the rule set for every entity (on a worker pool), and
// folding the results into the metrics bank (spec §4.6 steps 1-3).
// Step returns Done=true without doing further work once t_end is
// reached; when the caller's CancelToken fires it returns a cancelled
// error and every later call returns Done=true.
func (r *Run) Step(ctx context.Context) (StepResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return StepResult{StepIndex: r.stepIndex, Now: r.now, Done: true}, nil
	}
	if r.opts.Cancel != nil && r.opts.Cancel() {
		r.done = true
		return StepResult{}, errCancelled()
	}
	if !r.now.Before(r.schedule.End) {
		r.done = true
		return StepResult{StepIndex: r.stepIndex, Now: r.now, Done: true}, nil
	}

	prev := r.now
	next := prev.Add(r.schedule.Step)
	if next.After(r.schedule.End) {
		next = r.schedule.End
	}

	events, err := r.feed.Drain(ctx, prev, next)
	if err != nil {
		r.done = true
		return StepResult{}, err
	}
	if err := r.applyEvents(events); err != nil {
		r.done = true
		return StepResult{}, err
	}

	results, err := r.evaluatePopulation(next)
	if err != nil {
		r.done = true
		return StepResult{}, err
	}

	r.foldMetrics(r.stepIndex, results)
	r.appendAudit(results, next)

	r.now = next
	r.stepIndex++
	done := !r.now.Before(r.schedule.End)
	r.done = done

	return StepResult{
		StepIndex:  r.stepIndex - 1,
		Now:        next,
		Done:       done,
		Results:    results,
		EventCount: len(events),
	}, nil
}

// applyEvents mutates entity state atomically per event: an unknown
// entity id or attribute is not an irrecoverable error (the event is
// simply a no-op), but a malformed event (empty entity id) is — it
// indicates the generator itself is broken and the run cannot proceed
// deterministically.
func (r *Run) applyEvents(events []Event) error {
	for _, e := range events {
		if e.EntityID == "" {
			return errInvalidSchedule("event has empty entity id")
		}
		current, ok := r.entities[e.EntityID]
		if !ok {
			continue
		}
		r.entities[e.EntityID] = current.WithAttribute(e.Attr, e.Value)
	}
	return nil
}

// evaluatePopulation runs the Evaluator over every entity in the
// population on a bounded worker pool (spec §4.6 "Parallelism"). The
// pool shape (semaphore + WaitGroup + results collected over a channel
// into a map keyed by entity id) mirrors the
// teacher's SwarmPDP.EvaluateBatch, adapted so the final result map is
// assembled by stable entity id regardless of goroutine completion
// order or worker count (spec §5, §8 property 6).
func (r *Run) evaluatePopulation(t time.Time) (map[string][]eval.EvaluationResult, error) {
	ids := make([]string, 0, len(r.entities))
	for id := range r.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	pop := entity.NewPopulation()
	for _, id := range ids {
		pop.Put(r.entities[id])
	}

	type outcome struct {
		id      string
		results []eval.EvaluationResult
		err     error
	}

	outcomes := make(chan outcome, len(ids))
	sem := make(chan struct{}, r.opts.Workers)
	var wg sync.WaitGroup

	for _, id := range ids {
		wg.Add(1)
		go func(entID string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			ent := r.entities[entID]
			results, err := eval.Evaluate(r.statutes, pop, ent, t, eval.Options{
				RegionFilter: r.opts.RegionFilter,
				ExprEnv:      r.opts.ExprEnv,
			})
			outcomes <- outcome{id: entID, results: results, err: err}
		}(id)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	out := make(map[string][]eval.EvaluationResult, len(ids))
	for o := range outcomes {
		if o.err != nil {
			return nil, o.err
		}
		out[o.id] = o.results
	}
	return out, nil
}

func (r *Run) foldMetrics(step int, results map[string][]eval.EvaluationResult) {
	for _, id := range sortedKeys(results) {
		ent := r.entities[id]
		for _, res := range results[id] {
			r.metrics.observe(Observation{
				Step:      step,
				EntityID:  id,
				StatuteID: res.StatuteID,
				Applies:   res.Status == eval.Applies,
				Entity:    ent,
			})
		}
	}
}

func (r *Run) appendAudit(results map[string][]eval.EvaluationResult, t time.Time) {
	if r.opts.Audit == nil {
		return
	}
	for _, id := range sortedKeys(results) {
		for _, res := range results[id] {
			if res.Status != eval.Applies {
				continue
			}
			statute := r.statuteByID(res.StatuteID)
			_, _ = r.opts.Audit.Append(id, res.StatuteID, statute.Version, res.Status, res.Effects, res.Trace, t)
		}
	}
}

func (r *Run) statuteByID(id string) rule.Statute {
	for _, s := range r.statutes {
		if s.ID == id {
			return s
		}
	}
	return rule.Statute{}
}

func sortedKeys(m map[string][]eval.EvaluationResult) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Metrics returns a point-in-time snapshot of every aggregator.
func (r *Run) Metrics() MetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics.snapshot()
}

// Done reports whether the run has reached t_end or was cancelled.
func (r *Run) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}
