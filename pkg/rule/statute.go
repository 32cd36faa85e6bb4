package rule

import "time"

// RegionKind distinguishes region identifier kinds, carried over from
// the original implementation's RegionType distinction (see
// SPEC_FULL.md §12) rather than collapsing every scope to a flat string.
type RegionKind string

const (
	RegionCountry   RegionKind = "country"
	RegionState     RegionKind = "state"
	RegionZone      RegionKind = "zone"
	RegionUniversal RegionKind = "universal"
)

// Region is one entry in a Statute's region scope.
type Region struct {
	Kind RegionKind
	ID   string // empty and ignored when Kind == RegionUniversal
}

// RegionScope is the set of regions a Statute applies in (spec §3.5).
// A scope containing a Universal region matches every entity regardless
// of its other entries.
type RegionScope []Region

// IsUniversal reports whether the scope matches every region.
func (s RegionScope) IsUniversal() bool {
	for _, r := range s {
		if r.Kind == RegionUniversal {
			return true
		}
	}
	return false
}

// HierarchyTag ranks a statute in a source-of-law ordering (spec §3.5,
// §4.5 hierarchy check). Higher values are higher in the hierarchy.
type HierarchyTag int

const (
	HierarchyUnspecified HierarchyTag = iota
	HierarchyRegulatory
	HierarchyStatutory
	HierarchyConstitutional
)

// Statute is the engine's unit of rule (spec §3.5).
type Statute struct {
	ID    string
	Title string
	Body  string

	Version int // monotonic per id; enforced by the Registry, not here

	RegionScope RegionScope

	EffectiveFrom  time.Time
	EffectiveUntil *time.Time // nil means open-ended

	// Conditions is the conjunction of top-level conditions; each may
	// itself be composite. An empty slice means "always applies".
	Conditions []Condition

	Effects []Effect

	Precedence int // higher overrides lower in conflict resolution (spec §4.3)

	Hierarchy HierarchyTag
}

// ConditionTree collapses Conditions into a single AND node for
// evaluation and canonical hashing.
func (s Statute) ConditionTree() Condition {
	if len(s.Conditions) == 0 {
		// "always applies": an empty AND is vacuously True.
		return And()
	}
	return And(s.Conditions...)
}

// InScope reports whether t falls within the statute's temporal scope
// (spec §4.3 step 1b): effective_from <= t and (no effective_until or
// t < effective_until).
func (s Statute) InScope(t time.Time) bool {
	if t.Before(s.EffectiveFrom) {
		return false
	}
	if s.EffectiveUntil != nil && !t.Before(*s.EffectiveUntil) {
		return false
	}
	return true
}
