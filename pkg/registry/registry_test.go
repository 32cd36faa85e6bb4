package registry_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/legalis-go/core/pkg/registry"
	"github.com/legalis-go/core/pkg/rule"
	"github.com/legalis-go/core/pkg/value"
)

func mustStatute(id string) rule.Statute {
	return rule.Statute{
		ID:            id,
		Title:         "Minimum age requirement",
		RegionScope:   rule.RegionScope{{Kind: rule.RegionCountry, ID: "US"}},
		EffectiveFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Conditions: []rule.Condition{
			rule.Leaf("age", value.OpGte, value.Int(18)),
		},
		Effects: []rule.Effect{
			{Kind: rule.EffectGrant, Target: "voting_rights", Value: value.Null()},
		},
		Precedence: 10,
		Hierarchy:  rule.HierarchyStatutory,
	}
}

func TestAdd_AssignsDraftStatusAndVersionOne(t *testing.T) {
	r := registry.NewInMemoryRegistry()
	require.NoError(t, r.Add(mustStatute("R1")))

	entry, err := r.Get("R1")
	require.NoError(t, err)
	require.Equal(t, registry.Draft, entry.Status)
	require.Equal(t, 1, entry.Statute.Version)
}

func TestAdd_DuplicateIDIsVersionConflict(t *testing.T) {
	r := registry.NewInMemoryRegistry()
	require.NoError(t, r.Add(mustStatute("R1")))
	err := r.Add(mustStatute("R1"))
	require.Error(t, err)
}

func TestStatusLifecycle_FollowsStateMachine(t *testing.T) {
	r := registry.NewInMemoryRegistry()
	require.NoError(t, r.Add(mustStatute("R1")))

	// Draft -> Active is legal.
	require.NoError(t, r.SetStatus("R1", registry.Active))
	// Active -> Suspended -> Active is legal.
	require.NoError(t, r.SetStatus("R1", registry.Suspended))
	require.NoError(t, r.SetStatus("R1", registry.Active))
	// Active -> Repealed is legal and terminal.
	require.NoError(t, r.SetStatus("R1", registry.Repealed))
	require.Error(t, r.SetStatus("R1", registry.Active))
	require.Error(t, r.SetStatus("R1", registry.Draft))
}

func TestUpdate_PreservesPriorVersionInHistory(t *testing.T) {
	r := registry.NewInMemoryRegistry()
	original := mustStatute("R1")
	require.NoError(t, r.Add(original))
	require.NoError(t, r.SetStatus("R1", registry.Active))

	updated := mustStatute("R1")
	updated.Precedence = 20
	require.NoError(t, r.Update("R1", updated))

	current, err := r.Get("R1")
	require.NoError(t, err)
	require.Equal(t, 2, current.Statute.Version)
	require.Equal(t, 20, current.Statute.Precedence)

	prior, err := r.GetVersion("R1", 1)
	require.NoError(t, err)
	require.Equal(t, original.Precedence, prior.Precedence)
	require.Equal(t, 1, prior.Version)
}

func TestUpdate_RepealedStatuteIsIllegal(t *testing.T) {
	r := registry.NewInMemoryRegistry()
	require.NoError(t, r.Add(mustStatute("R1")))
	require.NoError(t, r.SetStatus("R1", registry.Active))
	require.NoError(t, r.SetStatus("R1", registry.Repealed))

	err := r.Update("R1", mustStatute("R1"))
	require.Error(t, err)
}

func TestActiveStatutes_DefaultsToActiveOnly(t *testing.T) {
	r := registry.NewInMemoryRegistry()
	require.NoError(t, r.Add(mustStatute("R1")))
	require.NoError(t, r.Add(mustStatute("R2")))
	require.NoError(t, r.SetStatus("R1", registry.Active))
	require.NoError(t, r.SetStatus("R2", registry.Active))
	require.NoError(t, r.SetStatus("R2", registry.Suspended))

	require.Len(t, r.ActiveStatutes(false), 1)
	require.Len(t, r.ActiveStatutes(true), 2)
}

func TestSearchByTitle_CaseInsensitiveSubstring(t *testing.T) {
	r := registry.NewInMemoryRegistry()
	require.NoError(t, r.Add(mustStatute("R1")))

	results := r.SearchByTitle("AGE requirement")
	require.Len(t, results, 1)
	require.Equal(t, "R1", results[0].Statute.ID)
}

func TestListByRegion_MatchesDirectAndUniversalScope(t *testing.T) {
	r := registry.NewInMemoryRegistry()
	require.NoError(t, r.Add(mustStatute("R1")))

	universal := mustStatute("R2")
	universal.RegionScope = rule.RegionScope{{Kind: rule.RegionUniversal}}
	require.NoError(t, r.Add(universal))

	results := r.ListByRegion("US")
	require.Len(t, results, 2)
}

func TestGetVersion_UnknownVersionIsNotFound(t *testing.T) {
	r := registry.NewInMemoryRegistry()
	require.NoError(t, r.Add(mustStatute("R1")))
	_, err := r.GetVersion("R1", 99)
	require.Error(t, err)
}

func TestCanTransition_RepealedIsTerminal(t *testing.T) {
	require.False(t, registry.CanTransition(registry.Repealed, registry.Active))
	require.False(t, registry.CanTransition(registry.Repealed, registry.Suspended))
	require.True(t, registry.CanTransition(registry.Draft, registry.Active))
}
