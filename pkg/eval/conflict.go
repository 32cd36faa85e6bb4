package eval

import (
	"sort"

	"github.com/legalis-go/core/pkg/rule"
)

// EffectOrigin pairs an Effect with the statute that emitted it, plus
// the fields conflict resolution ranks on.
type EffectOrigin struct {
	StatuteID  string
	Precedence int
	Hierarchy  rule.HierarchyTag
	Effect     rule.Effect
}

// ConflictRecord records one (kind, target) slot where more than one
// Applies statute emitted an effect: the winner and every loser, so the
// trace can show both (spec §4.3 step 4: "both conflicting effects
// appear in the trace; only the winner appears in the effective
// outcome").
type ConflictRecord struct {
	Key    string
	Winner EffectOrigin
	Losers []EffectOrigin
}

// ResolveConflicts reduces every Applies statute's effects to the
// effective outcome: at most one effect per (kind, target) slot, with
// ties broken by precedence desc, then hierarchy desc, then statute id
// asc (spec §4.3 step 4). statutesByID supplies the precedence/
// hierarchy each result's StatuteID doesn't itself carry.
//
// Effects with distinct ConflictKeys never compete and all appear in
// the effective outcome: statutes are taken in (precedence desc,
// hierarchy desc, id asc) order, and each statute's effects in authored
// order.
func ResolveConflicts(results []EvaluationResult, statutesByID map[string]rule.Statute) ([]rule.Effect, []ConflictRecord) {
	groups := make(map[string][]EffectOrigin)
	var order []string

	ranked := append([]EvaluationResult(nil), results...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := statutesByID[ranked[i].StatuteID], statutesByID[ranked[j].StatuteID]
		if a.Precedence != b.Precedence {
			return a.Precedence > b.Precedence
		}
		if a.Hierarchy != b.Hierarchy {
			return a.Hierarchy > b.Hierarchy
		}
		return ranked[i].StatuteID < ranked[j].StatuteID
	})

	for _, result := range ranked {
		if result.Status != Applies {
			continue
		}
		s, ok := statutesByID[result.StatuteID]
		if !ok {
			continue
		}
		for _, effect := range result.Effects {
			key := effect.ConflictKey()
			if _, seen := groups[key]; !seen {
				order = append(order, key)
			}
			groups[key] = append(groups[key], EffectOrigin{
				StatuteID:  result.StatuteID,
				Precedence: s.Precedence,
				Hierarchy:  s.Hierarchy,
				Effect:     effect,
			})
		}
	}

	var effective []rule.Effect
	var conflicts []ConflictRecord

	for _, key := range order {
		origins := groups[key]
		sort.SliceStable(origins, func(i, j int) bool {
			a, b := origins[i], origins[j]
			if a.Precedence != b.Precedence {
				return a.Precedence > b.Precedence
			}
			if a.Hierarchy != b.Hierarchy {
				return a.Hierarchy > b.Hierarchy
			}
			return a.StatuteID < b.StatuteID
		})

		effective = append(effective, origins[0].Effect)
		if len(origins) > 1 {
			conflicts = append(conflicts, ConflictRecord{
				Key:    key,
				Winner: origins[0],
				Losers: origins[1:],
			})
		}
	}

	return effective, conflicts
}
