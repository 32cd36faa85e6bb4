package verifier

import (
	"fmt"

	"github.com/legalis-go/core/pkg/rule"
	"github.com/legalis-go/core/pkg/value"
)

// checkReachability looks for AND conjunctions of numeric bounds on the
// same attribute that can never both hold (e.g. "x < 5 AND x > 10") and
// for OR disjunctions that are tautological because one branch is the
// exact negation of another (spec §4.5: "detect always-False
// conjunctions... detect always-True guards"). This is a syntactic,
// single-level check — it does not attempt general SAT solving over
// the whole tree, only the directly nested children of one AND/OR,
// which is what the spec's own example ("x < 5 AND x > 10") calls for.
func checkReachability(s rule.Statute) []rule.Diagnostic {
	var diags []rule.Diagnostic
	walkConjunctions(s.ConditionTree(), func(c rule.Condition) {
		switch c.Kind {
		case rule.KindAnd:
			if alwaysFalseConjunction(c.Children) {
				diags = append(diags, rule.Diagnostic{
					StatuteID: s.ID,
					Severity:  rule.SeverityWarning,
					Code:      rule.CodeAlwaysFalse,
					Message:   "AND conjunction has mutually exclusive numeric bounds and can never be true",
				})
			}
		case rule.KindOr:
			if alwaysTrueDisjunction(c.Children) {
				diags = append(diags, rule.Diagnostic{
					StatuteID: s.ID,
					Severity:  rule.SeverityWarning,
					Code:      rule.CodeAlwaysTrue,
					Message:   "OR disjunction includes a branch and its exact negation and is always true",
				})
			}
		}
	})
	return diags
}

func walkConjunctions(c rule.Condition, fn func(rule.Condition)) {
	fn(c)
	switch c.Kind {
	case rule.KindAnd, rule.KindOr, rule.KindNot:
		for _, child := range c.Children {
			walkConjunctions(child, fn)
		}
	case rule.KindExists:
		if c.Sub != nil {
			walkConjunctions(*c.Sub, fn)
		}
	}
}

type bound struct {
	attribute  string
	lowerIncl  *float64
	lowerExcl  *float64
	upperIncl  *float64
	upperExcl  *float64
	hasNumeric bool
}

func alwaysFalseConjunction(children []rule.Condition) bool {
	bounds := make(map[string]*bound)
	for _, c := range children {
		if c.Kind != rule.KindLeaf || !isNumeric(c.Literal.Kind) {
			continue
		}
		b, ok := bounds[c.Attribute]
		if !ok {
			b = &bound{attribute: c.Attribute}
			bounds[c.Attribute] = b
		}
		b.hasNumeric = true
		lit := numericValue(c.Literal)
		switch c.Op {
		case value.OpGt:
			setMax(&b.lowerExcl, lit)
		case value.OpGte:
			setMax(&b.lowerIncl, lit)
		case value.OpLt:
			setMin(&b.upperExcl, lit)
		case value.OpLte:
			setMin(&b.upperIncl, lit)
		}
	}
	for _, b := range bounds {
		if !b.hasNumeric {
			continue
		}
		lo, loInclusive, hasLo := effectiveLower(b)
		hi, hiInclusive, hasHi := effectiveUpper(b)
		if !hasLo || !hasHi {
			continue
		}
		if lo > hi {
			return true
		}
		if lo == hi && !(loInclusive && hiInclusive) {
			return true
		}
	}
	return false
}

func effectiveLower(b *bound) (float64, bool, bool) {
	switch {
	case b.lowerIncl != nil && b.lowerExcl != nil:
		if *b.lowerExcl >= *b.lowerIncl {
			return *b.lowerExcl, false, true
		}
		return *b.lowerIncl, true, true
	case b.lowerIncl != nil:
		return *b.lowerIncl, true, true
	case b.lowerExcl != nil:
		return *b.lowerExcl, false, true
	default:
		return 0, false, false
	}
}

func effectiveUpper(b *bound) (float64, bool, bool) {
	switch {
	case b.upperIncl != nil && b.upperExcl != nil:
		if *b.upperExcl <= *b.upperIncl {
			return *b.upperExcl, false, true
		}
		return *b.upperIncl, true, true
	case b.upperIncl != nil:
		return *b.upperIncl, true, true
	case b.upperExcl != nil:
		return *b.upperExcl, false, true
	default:
		return 0, false, false
	}
}

func setMax(dst **float64, v float64) {
	if *dst == nil || v > **dst {
		vv := v
		*dst = &vv
	}
}

func setMin(dst **float64, v float64) {
	if *dst == nil || v < **dst {
		vv := v
		*dst = &vv
	}
}

func isNumeric(k value.Kind) bool { return k == value.KindInteger || k == value.KindFloat }

func numericValue(v value.Value) float64 {
	if v.Kind == value.KindInteger {
		return float64(v.Int)
	}
	return v.Float64
}

// alwaysTrueDisjunction reports whether children contains a condition
// and a structurally exact NOT of that same condition.
func alwaysTrueDisjunction(children []rule.Condition) bool {
	keys := make(map[string]bool)
	negatedKeys := make(map[string]bool)
	for _, c := range children {
		key := fmt.Sprintf("%+v", rule.Canonicalize(c))
		keys[key] = true
		if c.Kind == rule.KindNot && len(c.Children) == 1 {
			negatedKeys[fmt.Sprintf("%+v", rule.Canonicalize(c.Children[0]))] = true
		}
	}
	for k := range keys {
		if negatedKeys[k] {
			return true
		}
	}
	return false
}
