package sim

import (
	"context"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/legalis-go/core/pkg/value"
)

// Event is an exogenous mutation to one entity's state, applied
// atomically at the step whose window contains At (spec §4.6 step 1:
// "each event is all-or-nothing").
type Event struct {
	At       time.Time
	EntityID string
	Attr     string
	Value    value.Value
}

// Generator produces Events lazily; the Simulator drains it in
// timestamp order each step. A generator that has no more events
// returns ok=false; it is still polled on every later drain.
type Generator interface {
	Next() (Event, bool)
}

// SliceGenerator is a Generator over a fixed, pre-built event list —
// the common case for deterministic test and demo schedules.
type SliceGenerator struct {
	events []Event
	pos    int
}

// NewSliceGenerator builds a generator over events, sorted by time so
// Next always yields events in non-decreasing timestamp order.
func NewSliceGenerator(events []Event) *SliceGenerator {
	sorted := append([]Event(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At.Before(sorted[j].At) })
	return &SliceGenerator{events: sorted}
}

func (g *SliceGenerator) Next() (Event, bool) {
	if g.pos >= len(g.events) {
		return Event{}, false
	}
	e := g.events[g.pos]
	g.pos++
	return e, true
}

// EventFeed merges multiple Generators into one timestamp-ordered
// stream, optionally throttled by a token-bucket limiter so a host can
// bound how fast exogenous events are drained per step — mirroring the
// rate limiting the teacher applies to inbound request ingestion.
type EventFeed struct {
	generators []Generator
	limiter    *rate.Limiter
}

// NewEventFeed builds a feed over generators with no throttling.
func NewEventFeed(generators ...Generator) *EventFeed {
	return &EventFeed{generators: generators}
}

// WithRateLimit returns a copy of the feed that caps draining to rps
// events per second with the given burst allowance.
func (f *EventFeed) WithRateLimit(rps float64, burst int) *EventFeed {
	return &EventFeed{generators: f.generators, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Drain pulls every buffered event whose timestamp is in [prev, now)
// across all generators, merged in non-decreasing timestamp order
// (stable on generator registration order for exact ties).
func (f *EventFeed) Drain(ctx context.Context, prev, now time.Time) ([]Event, error) {
	var out []Event
	for _, g := range f.generators {
		for {
			e, ok := peekWithin(g, prev, now)
			if !ok {
				break
			}
			if f.limiter != nil {
				if err := f.limiter.Wait(ctx); err != nil {
					return out, err
				}
			}
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

// peekWithin pulls the generator's buffered next event only if it
// falls in [prev, now); a SliceGenerator always advances forward so an
// event past now is simply not consumed this call and is retried next
// step.
func peekWithin(g Generator, prev, now time.Time) (Event, bool) {
	sg, ok := g.(*SliceGenerator)
	if !ok {
		// Generic Generator: consume unconditionally, trusting the
		// caller's generator to self-throttle by timestamp.
		return g.Next()
	}
	if sg.pos >= len(sg.events) {
		return Event{}, false
	}
	next := sg.events[sg.pos]
	if next.At.Before(prev) || !next.At.Before(now) {
		return Event{}, false
	}
	sg.pos++
	return next, true
}
