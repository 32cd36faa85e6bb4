package rule

import (
	"fmt"

	"github.com/legalis-go/core/pkg/value"
)

// MaxEffectCount is the hard ceiling from spec §4.5: a statute with more
// effects than this fails well-formedness.
const MaxEffectCount = 256

// WellFormed performs the structural validation spec §4.2 requires:
// depth, effect count and presence, temporal ordering, and duplicate
// effect detection. It never inspects other statutes or any entity —
// this is purely about one Statute's internal structure. (Cross-statute
// semantic checks belong to pkg/verifier.)
func WellFormed(s Statute) []Diagnostic {
	var diags []Diagnostic

	tree := s.ConditionTree()
	if d := tree.Depth(); d > MaxConditionDepth {
		diags = append(diags, Diagnostic{
			StatuteID: s.ID,
			Severity:  SeverityError,
			Code:      CodeDepthExceeded,
			Message:   fmt.Sprintf("condition tree depth %d exceeds maximum %d", d, MaxConditionDepth),
		})
	}

	if len(s.Effects) == 0 {
		diags = append(diags, Diagnostic{
			StatuteID: s.ID,
			Severity:  SeverityError,
			Code:      CodeNoEffects,
			Message:   "statute has no effects",
		})
	}

	if len(s.Effects) > MaxEffectCount {
		diags = append(diags, Diagnostic{
			StatuteID: s.ID,
			Severity:  SeverityError,
			Code:      CodeEffectCountExceeded,
			Message:   fmt.Sprintf("effect count %d exceeds maximum %d", len(s.Effects), MaxEffectCount),
		})
	}

	if s.EffectiveUntil != nil && s.EffectiveUntil.Before(s.EffectiveFrom) {
		diags = append(diags, Diagnostic{
			StatuteID: s.ID,
			Severity:  SeverityError,
			Code:      CodeInvalidTemporalSpan,
			Message:   "effective_until precedes effective_from",
		})
	}

	for i := 0; i < len(s.Effects); i++ {
		for j := i + 1; j < len(s.Effects); j++ {
			if s.Effects[i].Equal(s.Effects[j]) {
				diags = append(diags, Diagnostic{
					StatuteID: s.ID,
					Severity:  SeverityWarning,
					Code:      CodeDuplicateEffect,
					Message:   fmt.Sprintf("duplicate effect (%s, %s) at indices %d and %d", s.Effects[i].Kind, s.Effects[i].Target, i, j),
				})
			}
		}
	}

	diags = append(diags, checkBetweenOrdering(s.ID, tree)...)

	return diags
}

func checkBetweenOrdering(statuteID string, c Condition) []Diagnostic {
	var diags []Diagnostic
	switch c.Kind {
	case KindBetween:
		if cmpValuesOrdered(c.Start, c.End) {
			diags = append(diags, Diagnostic{
				StatuteID: statuteID,
				Severity:  SeverityError,
				Code:      CodeInvalidTemporalSpan,
				Message:   "BETWEEN(a, b) has a > b",
			})
		}
	case KindAnd, KindOr:
		for _, child := range c.Children {
			diags = append(diags, checkBetweenOrdering(statuteID, child)...)
		}
	case KindNot:
		for _, child := range c.Children {
			diags = append(diags, checkBetweenOrdering(statuteID, child)...)
		}
	case KindExists:
		if c.Sub != nil {
			diags = append(diags, checkBetweenOrdering(statuteID, *c.Sub)...)
		}
	}
	return diags
}

// cmpValuesOrdered reports whether start is strictly after end, using
// value.Compare so it works for both Date and Timestamp literals. An
// incomparable pair (mismatched kinds) is left for the Verifier's type
// compatibility check, not reported here.
func cmpValuesOrdered(start, end value.Value) bool {
	return value.Compare(start, value.OpGt, end) == value.True
}
