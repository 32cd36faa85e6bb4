package rule

import "github.com/legalis-go/core/pkg/value"

// EffectKind enumerates the closed set of effect kinds (spec §3.4).
type EffectKind string

const (
	EffectGrant            EffectKind = "grant"
	EffectDeny             EffectKind = "deny"
	EffectRequire          EffectKind = "require"
	EffectProhibit         EffectKind = "prohibit"
	EffectCalculate        EffectKind = "calculate"
	EffectNotify           EffectKind = "notify"
	EffectImposePenalty    EffectKind = "impose-penalty"
	EffectCreateObligation EffectKind = "create-obligation"
)

// Polarity is derived from Kind and used by the Verifier's "contradicting
// effects" check (spec §4.5: same statute emits both Grant and Deny on
// the same target).
type Polarity string

const (
	Permissive Polarity = "permissive"
	Restrictive Polarity = "restrictive"
	Neutral     Polarity = "neutral"
)

// Polarity classifies an effect kind as permissive, restrictive, or
// neutral (Calculate/Notify/CreateObligation carry no allow/deny charge).
func (k EffectKind) Polarity() Polarity {
	switch k {
	case EffectGrant, EffectRequire:
		return Permissive
	case EffectDeny, EffectProhibit, EffectImposePenalty:
		return Restrictive
	default:
		return Neutral
	}
}

// Effect is a single consequence asserted by an applicable statute
// (spec §3.4).
type Effect struct {
	Kind        EffectKind
	Target      string
	Value       value.Value // numeric magnitude, e.g. a penalty Money, when meaningful
	Description string
}

// ConflictKey identifies effects that compete for the same outcome slot
// under spec §4.3 step 4 (conflict resolution): same kind, same target.
func (e Effect) ConflictKey() string {
	return string(e.Kind) + "\x1f" + e.Target
}

// Equal reports whether two effects have identical (kind, target, value)
// — used by the "no duplicate effect" well-formedness warning (spec
// §4.2).
func (e Effect) Equal(other Effect) bool {
	return e.Kind == other.Kind && e.Target == other.Target && value.SortKey(e.Value) == value.SortKey(other.Value)
}
