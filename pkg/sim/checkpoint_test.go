package sim_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/legalis-go/core/pkg/entity"
	"github.com/legalis-go/core/pkg/rule"
	"github.com/legalis-go/core/pkg/sim"
	"github.com/legalis-go/core/pkg/value"
)

func checkpointFixture() (*entity.Population, []rule.Statute, sim.Schedule) {
	pop := entity.NewPopulation()
	pop.Put(entity.New("e0", map[string]value.Value{"age": value.Int(60)}, nil, map[string]bool{"US": true}))
	pop.Put(entity.New("e1", map[string]value.Value{"age": value.Int(70)}, nil, map[string]bool{"US": true}))

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	schedule := sim.Schedule{Start: now, End: now.Add(4 * 24 * time.Hour), Step: 24 * time.Hour}
	return pop, []rule.Statute{pensionStatute()}, schedule
}

// TestCheckpoint_RestoreProducesSameNextStep is spec §4.6's checkpoint
// round-trip idempotence property (also §8 "checkpoint then immediate
// restore yields a simulator that produces the same next-step result as
// the original"): a restored run's next Step must match the step the
// original run would have produced had it kept going.
func TestCheckpoint_RestoreProducesSameNextStep(t *testing.T) {
	pop, statutes, schedule := checkpointFixture()
	spec := appliesCountSpec()

	original, err := sim.New(pop, statutes, schedule, spec, sim.Options{Workers: 2})
	require.NoError(t, err)

	_, err = original.Step(context.Background()) // step 0 -> 1
	require.NoError(t, err)

	data, err := original.Checkpoint()
	require.NoError(t, err)

	wantNext, err := original.Step(context.Background()) // step 1 -> 2, on the original
	require.NoError(t, err)
	wantMetrics := original.Metrics()

	restored, err := sim.Restore(data, pop, statutes, spec, sim.Options{Workers: 2})
	require.NoError(t, err)

	gotNext, err := restored.Step(context.Background()) // step 1 -> 2, on the restored run
	require.NoError(t, err)

	require.Equal(t, wantNext.StepIndex, gotNext.StepIndex)
	require.Equal(t, wantNext.Now, gotNext.Now)
	require.Equal(t, wantNext.Results, gotNext.Results)
	require.Equal(t, wantMetrics, restored.Metrics())
}

// TestCheckpoint_RoundTripIsByteStable checks that checkpointing twice in
// a row with no intervening mutation yields identical bytes, and that a
// restored-then-immediately-checkpointed run reproduces the same
// checkpoint document.
func TestCheckpoint_RoundTripIsByteStable(t *testing.T) {
	pop, statutes, schedule := checkpointFixture()
	spec := appliesCountSpec()

	run, err := sim.New(pop, statutes, schedule, spec, sim.Options{Workers: 1})
	require.NoError(t, err)
	_, err = run.Step(context.Background())
	require.NoError(t, err)

	data1, err := run.Checkpoint()
	require.NoError(t, err)
	data2, err := run.Checkpoint()
	require.NoError(t, err)
	require.Equal(t, data1, data2)

	restored, err := sim.Restore(data1, pop, statutes, spec, sim.Options{Workers: 1})
	require.NoError(t, err)
	data3, err := restored.Checkpoint()
	require.NoError(t, err)
	require.Equal(t, data1, data3)
}

// TestCheckpoint_RestoreRunsToCompletionLikeOriginal confirms the full
// remainder of a run started from a checkpoint reaches the same final
// metrics as letting the original run continue uninterrupted.
func TestCheckpoint_RestoreRunsToCompletionLikeOriginal(t *testing.T) {
	pop, statutes, schedule := checkpointFixture()
	spec := appliesCountSpec()

	original, err := sim.New(pop, statutes, schedule, spec, sim.Options{Workers: 2})
	require.NoError(t, err)
	_, err = original.Step(context.Background())
	require.NoError(t, err)
	data, err := original.Checkpoint()
	require.NoError(t, err)

	for !original.Done() {
		_, err := original.Step(context.Background())
		require.NoError(t, err)
	}

	restored, err := sim.Restore(data, pop, statutes, spec, sim.Options{Workers: 2})
	require.NoError(t, err)
	for !restored.Done() {
		_, err := restored.Step(context.Background())
		require.NoError(t, err)
	}

	require.Equal(t, original.Metrics(), restored.Metrics())
}
