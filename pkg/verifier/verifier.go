// Package verifier implements the static Verifier (spec §4.5): a pure
// function of a rule set (and an optional entity schema) that never
// executes a statute over an entity, producing a diagnostics report
// covering structural validity, reachability, temporal soundness,
// contradicting effects, hierarchy violations, and dangling references.
package verifier

import "github.com/legalis-go/core/pkg/rule"

// Verify runs every mandatory check from spec §4.5 over statutes and
// returns the combined diagnostics list. schema may be nil, in which
// case dangling-reference checks are skipped and type compatibility
// falls back to usage-consensus inference.
func Verify(statutes []rule.Statute, schema *EntitySchema) []rule.Diagnostic {
	var diags []rule.Diagnostic

	for _, s := range statutes {
		diags = append(diags, rule.WellFormed(s)...)
	}

	inferred := inferAttributeKinds(statutes)
	for _, s := range statutes {
		diags = append(diags, checkTypeCompatibility(s, schema, inferred)...)
		diags = append(diags, checkReachability(s)...)
		diags = append(diags, checkDanglingReferences(s, schema)...)
		diags = append(diags, checkContradictingEffectsWithinStatute(s)...)
	}

	diags = append(diags, checkContradictingEffectsAcrossStatutes(statutes)...)
	diags = append(diags, checkHierarchyViolations(statutes)...)

	return diags
}

// CountErrors counts Error-severity diagnostics, the quantity the
// monotonicity property test (verifier_test.go) checks never increases
// when a statute is removed from the set.
func CountErrors(diags []rule.Diagnostic) int {
	n := 0
	for _, d := range diags {
		if d.Severity == rule.SeverityError {
			n++
		}
	}
	return n
}
