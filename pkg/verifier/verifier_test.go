package verifier_test

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/legalis-go/core/pkg/rule"
	"github.com/legalis-go/core/pkg/value"
	"github.com/legalis-go/core/pkg/verifier"
)

func cleanStatute(id string, precedence int, hierarchy rule.HierarchyTag) rule.Statute {
	return rule.Statute{
		ID:            id,
		RegionScope:   rule.RegionScope{{Kind: rule.RegionUniversal}},
		EffectiveFrom: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Conditions: []rule.Condition{
			rule.Leaf("age", value.OpGte, value.Int(18)),
		},
		Effects:    []rule.Effect{{Kind: rule.EffectGrant, Target: "t", Value: value.Null()}},
		Precedence: precedence,
		Hierarchy:  hierarchy,
	}
}

func TestVerify_CleanRuleSetHasNoErrors(t *testing.T) {
	diags := verifier.Verify([]rule.Statute{cleanStatute("s1", 0, rule.HierarchyStatutory)}, nil)
	require.Equal(t, 0, verifier.CountErrors(diags))
}

func TestVerify_AlwaysFalseConjunction(t *testing.T) {
	s := cleanStatute("s1", 0, rule.HierarchyStatutory)
	s.Conditions = []rule.Condition{
		rule.And(
			rule.Leaf("age", value.OpLt, value.Int(5)),
			rule.Leaf("age", value.OpGt, value.Int(10)),
		),
	}
	diags := verifier.Verify([]rule.Statute{s}, nil)
	require.True(t, hasCode(diags, rule.CodeAlwaysFalse))
}

func TestVerify_AlwaysTrueDisjunction(t *testing.T) {
	s := cleanStatute("s1", 0, rule.HierarchyStatutory)
	leaf := rule.Leaf("age", value.OpGte, value.Int(18))
	s.Conditions = []rule.Condition{
		rule.Or(leaf, rule.Not(leaf)),
	}
	diags := verifier.Verify([]rule.Statute{s}, nil)
	require.True(t, hasCode(diags, rule.CodeAlwaysTrue))
}

func TestVerify_TypeIncompatibleWithSchema(t *testing.T) {
	s := cleanStatute("s1", 0, rule.HierarchyStatutory)
	s.Conditions = []rule.Condition{
		rule.Leaf("age", value.OpEq, value.Text("old enough")),
	}
	schema := &verifier.EntitySchema{Attributes: map[string]value.Kind{"age": value.KindInteger}}
	diags := verifier.Verify([]rule.Statute{s}, schema)
	require.True(t, hasCode(diags, rule.CodeTypeIncompatible))
}

func TestVerify_DanglingAttributeReference(t *testing.T) {
	s := cleanStatute("s1", 0, rule.HierarchyStatutory)
	schema := &verifier.EntitySchema{Attributes: map[string]value.Kind{"income": value.KindFloat}}
	diags := verifier.Verify([]rule.Statute{s}, schema)
	require.True(t, hasCode(diags, rule.CodeDanglingReference))
}

func TestVerify_ContradictingEffectsWithinStatute(t *testing.T) {
	s := cleanStatute("s1", 0, rule.HierarchyStatutory)
	s.Effects = []rule.Effect{
		{Kind: rule.EffectGrant, Target: "license", Value: value.Null()},
		{Kind: rule.EffectDeny, Target: "license", Value: value.Null()},
	}
	diags := verifier.Verify([]rule.Statute{s}, nil)
	require.True(t, hasCode(diags, rule.CodeContradictingEffects))
}

func TestVerify_HierarchyViolation(t *testing.T) {
	constitutional := cleanStatute("const", 0, rule.HierarchyConstitutional)
	constitutional.Effects = []rule.Effect{{Kind: rule.EffectGrant, Target: "license", Value: value.Null()}}

	regulatory := cleanStatute("reg", 10, rule.HierarchyRegulatory)
	regulatory.Effects = []rule.Effect{{Kind: rule.EffectGrant, Target: "license", Value: value.Null()}}

	diags := verifier.Verify([]rule.Statute{constitutional, regulatory}, nil)
	require.True(t, hasCode(diags, rule.CodeHierarchyViolation))
}

func hasCode(diags []rule.Diagnostic, code rule.DiagnosticCode) bool {
	for _, d := range diags {
		if d.Code == code {
			return true
		}
	}
	return false
}

// TestProperty_VerifierMonotonicity checks that removing a statute from
// a verified rule set never introduces new Error diagnostics, the
// guarantee spec §4.5 implies by describing the Verifier as a pure,
// static function of the rule set (gopter-based, in the style of the
// teacher's pkg/kernel/addenda_property_test.go).
func TestProperty_VerifierMonotonicity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("removing a statute never increases error count", prop.ForAll(
		func(count, removeIdx int) bool {
			if count == 0 {
				return true
			}
			removeIdx = removeIdx % count
			if removeIdx < 0 {
				removeIdx += count
			}

			statutes := make([]rule.Statute, count)
			for i := 0; i < count; i++ {
				statutes[i] = cleanStatute(idFor(i), i, rule.HierarchyStatutory)
			}

			before := verifier.CountErrors(verifier.Verify(statutes, nil))
			reduced := append(append([]rule.Statute{}, statutes[:removeIdx]...), statutes[removeIdx+1:]...)
			after := verifier.CountErrors(verifier.Verify(reduced, nil))

			return after <= before
		},
		gen.IntRange(0, 8),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}

func idFor(i int) string {
	return string(rune('a' + i%26))
}
