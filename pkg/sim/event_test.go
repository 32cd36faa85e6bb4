package sim_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/legalis-go/core/pkg/sim"
	"github.com/legalis-go/core/pkg/value"
)

func TestSliceGenerator_SortsEventsByTime(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	gen := sim.NewSliceGenerator([]sim.Event{
		{At: base.Add(2 * time.Hour), EntityID: "e1", Attr: "a", Value: value.Int(2)},
		{At: base, EntityID: "e1", Attr: "a", Value: value.Int(0)},
		{At: base.Add(time.Hour), EntityID: "e1", Attr: "a", Value: value.Int(1)},
	})

	var ordered []time.Time
	for {
		e, ok := gen.Next()
		if !ok {
			break
		}
		ordered = append(ordered, e.At)
	}
	require.Len(t, ordered, 3)
	require.True(t, ordered[0].Before(ordered[1]))
	require.True(t, ordered[1].Before(ordered[2]))
}

func TestEventFeed_DrainMergesGeneratorsInTimestampOrder(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	genA := sim.NewSliceGenerator([]sim.Event{
		{At: base, EntityID: "a", Attr: "x", Value: value.Int(1)},
		{At: base.Add(3 * time.Hour), EntityID: "a", Attr: "x", Value: value.Int(2)},
	})
	genB := sim.NewSliceGenerator([]sim.Event{
		{At: base.Add(time.Hour), EntityID: "b", Attr: "x", Value: value.Int(3)},
		{At: base.Add(2 * time.Hour), EntityID: "b", Attr: "x", Value: value.Int(4)},
	})
	feed := sim.NewEventFeed(genA, genB)

	events, err := feed.Drain(context.Background(), base, base.Add(4*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 4)
	for i := 1; i < len(events); i++ {
		require.False(t, events[i].At.Before(events[i-1].At), "events must be non-decreasing in timestamp")
	}
}

func TestEventFeed_DrainOnlyTakesEventsWithinWindow(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	gen := sim.NewSliceGenerator([]sim.Event{
		{At: base.Add(30 * time.Minute), EntityID: "e1", Attr: "x", Value: value.Int(2)},
		{At: base.Add(2 * time.Hour), EntityID: "e1", Attr: "x", Value: value.Int(3)},
	})
	feed := sim.NewEventFeed(gen)

	events, err := feed.Drain(context.Background(), base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, value.Int(2), events[0].Value)

	more, err := feed.Drain(context.Background(), base.Add(time.Hour), base.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, more, 1)
	require.Equal(t, value.Int(3), more[0].Value)
}

func TestEventFeed_RateLimitBlocksUntilContextCancelled(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	gen := sim.NewSliceGenerator([]sim.Event{
		{At: base, EntityID: "e1", Attr: "x", Value: value.Int(1)},
		{At: base, EntityID: "e1", Attr: "x", Value: value.Int(2)},
	})
	feed := sim.NewEventFeed(gen).WithRateLimit(1, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := feed.Drain(ctx, base, base.Add(time.Second))
	require.Error(t, err, "the second event should exceed the burst of 1 and block on the limiter until ctx times out")
}
