package verifier

import (
	"fmt"

	"github.com/legalis-go/core/pkg/rule"
)

// checkContradictingEffectsWithinStatute flags a statute that emits
// both a permissive and a restrictive effect on the same target (spec
// §4.5: "same statute emits both Grant and Deny on the same target").
func checkContradictingEffectsWithinStatute(s rule.Statute) []rule.Diagnostic {
	byTarget := make(map[string][]rule.Effect)
	for _, e := range s.Effects {
		byTarget[e.Target] = append(byTarget[e.Target], e)
	}
	var diags []rule.Diagnostic
	for target, effects := range byTarget {
		if hasOppositePolarity(effects) {
			diags = append(diags, rule.Diagnostic{
				StatuteID: s.ID,
				Severity:  rule.SeverityError,
				Code:      rule.CodeContradictingEffects,
				Message:   fmt.Sprintf("statute emits both permissive and restrictive effects on target %q", target),
			})
		}
	}
	return diags
}

func hasOppositePolarity(effects []rule.Effect) bool {
	sawPermissive, sawRestrictive := false, false
	for _, e := range effects {
		switch e.Kind.Polarity() {
		case rule.Permissive:
			sawPermissive = true
		case rule.Restrictive:
			sawRestrictive = true
		}
	}
	return sawPermissive && sawRestrictive
}

// checkContradictingEffectsAcrossStatutes flags pairs of statutes with
// equal precedence and overlapping region/temporal scope that emit
// incompatible-polarity effects on the same target (spec §4.5: "two
// Active statutes with equal precedence and overlapping scope emit
// incompatible effects on the same target").
func checkContradictingEffectsAcrossStatutes(statutes []rule.Statute) []rule.Diagnostic {
	var diags []rule.Diagnostic
	for i := 0; i < len(statutes); i++ {
		for j := i + 1; j < len(statutes); j++ {
			a, b := statutes[i], statutes[j]
			if a.Precedence != b.Precedence {
				continue
			}
			if !scopesOverlap(a, b) {
				continue
			}
			for _, ea := range a.Effects {
				for _, eb := range b.Effects {
					if ea.Target != eb.Target {
						continue
					}
					if hasOppositePolarity([]rule.Effect{ea, eb}) {
						diags = append(diags, rule.Diagnostic{
							StatuteID: a.ID,
							OtherID:   b.ID,
							Severity:  rule.SeverityError,
							Code:      rule.CodeContradictingEffects,
							Message:   fmt.Sprintf("equal-precedence statutes with overlapping scope emit incompatible effects on target %q", ea.Target),
						})
					}
				}
			}
		}
	}
	return diags
}

func scopesOverlap(a, b rule.Statute) bool {
	if !temporalOverlap(a, b) {
		return false
	}
	return regionsOverlap(a.RegionScope, b.RegionScope)
}

func temporalOverlap(a, b rule.Statute) bool {
	aEnd, bEnd := a.EffectiveUntil, b.EffectiveUntil
	if aEnd != nil && !b.EffectiveFrom.Before(*aEnd) {
		return false
	}
	if bEnd != nil && !a.EffectiveFrom.Before(*bEnd) {
		return false
	}
	return true
}

func regionsOverlap(a, b rule.RegionScope) bool {
	if a.IsUniversal() || b.IsUniversal() || len(a) == 0 || len(b) == 0 {
		return true
	}
	for _, ra := range a {
		for _, rb := range b {
			if ra.Kind == rb.Kind && ra.ID == rb.ID {
				return true
			}
		}
	}
	return false
}

// checkHierarchyViolations flags a pair of statutes competing for the
// same (kind, target) slot where the lower-hierarchy statute would win
// conflict resolution over the higher-hierarchy one (spec §4.5:
// "a lower-hierarchy statute must not override a higher-hierarchy one
// on the same (kind, target). Violations are Errors.").
func checkHierarchyViolations(statutes []rule.Statute) []rule.Diagnostic {
	var diags []rule.Diagnostic
	for i := 0; i < len(statutes); i++ {
		for j := i + 1; j < len(statutes); j++ {
			a, b := statutes[i], statutes[j]
			if a.Hierarchy == b.Hierarchy {
				continue
			}
			higher, lower := a, b
			if b.Hierarchy > a.Hierarchy {
				higher, lower = b, a
			}
			if lower.Precedence < higher.Precedence {
				continue // higher-hierarchy statute already wins conflict resolution
			}
			for _, eh := range higher.Effects {
				for _, el := range lower.Effects {
					if eh.ConflictKey() != el.ConflictKey() {
						continue
					}
					if lower.Precedence > higher.Precedence {
						diags = append(diags, rule.Diagnostic{
							StatuteID: lower.ID,
							OtherID:   higher.ID,
							Severity:  rule.SeverityError,
							Code:      rule.CodeHierarchyViolation,
							Message:   fmt.Sprintf("lower-hierarchy statute %q would override higher-hierarchy statute %q on (%s, %s)", lower.ID, higher.ID, eh.Kind, eh.Target),
						})
					}
				}
			}
		}
	}
	return diags
}
