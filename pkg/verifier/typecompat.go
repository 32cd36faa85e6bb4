package verifier

import (
	"fmt"

	"github.com/legalis-go/core/pkg/rule"
	"github.com/legalis-go/core/pkg/value"
)

// inferAttributeKinds scans every Leaf condition's literal across the
// whole rule set and records the kind each attribute name is used with.
// An attribute used with more than one literal kind across the set is
// left out of the result (no single consensus kind to check against);
// checkTypeCompatibility then skips it, and no diagnostic reports the
// ambiguity.
func inferAttributeKinds(statutes []rule.Statute) map[string]value.Kind {
	seen := make(map[string]map[value.Kind]bool)
	for _, s := range statutes {
		walkLeaves(s.ConditionTree(), func(c rule.Condition) {
			if seen[c.Attribute] == nil {
				seen[c.Attribute] = make(map[value.Kind]bool)
			}
			seen[c.Attribute][c.Literal.Kind] = true
		})
	}
	out := make(map[string]value.Kind)
	for attr, kinds := range seen {
		if len(kinds) == 1 {
			for k := range kinds {
				out[attr] = k
			}
		}
	}
	return out
}

// walkLeaves calls fn for every Leaf node reachable from c.
func walkLeaves(c rule.Condition, fn func(rule.Condition)) {
	switch c.Kind {
	case rule.KindLeaf:
		fn(c)
	case rule.KindAnd, rule.KindOr, rule.KindNot:
		for _, child := range c.Children {
			walkLeaves(child, fn)
		}
	case rule.KindExists:
		if c.Sub != nil {
			walkLeaves(*c.Sub, fn)
		}
	}
}

// compatibleKinds is a conservative notion of "these two kinds could
// ever legitimately be compared" — equal, or both numeric. It is
// intentionally stricter than value.Compare's total Unknown-on-mismatch
// behavior: Compare must never panic or error, but the Verifier's job
// is to flag mismatches Compare would silently swallow as Unknown.
func compatibleKinds(a, b value.Kind) bool {
	if a == b {
		return true
	}
	numeric := func(k value.Kind) bool { return k == value.KindInteger || k == value.KindFloat }
	return numeric(a) && numeric(b)
}

// checkTypeCompatibility verifies every Leaf condition's attribute kind
// (from schema if supplied, else inferred usage consensus) is
// comparable with its literal's kind (spec §4.5 "Type compatibility").
func checkTypeCompatibility(s rule.Statute, schema *EntitySchema, inferred map[string]value.Kind) []rule.Diagnostic {
	var diags []rule.Diagnostic
	walkLeaves(s.ConditionTree(), func(c rule.Condition) {
		expected, ok := attributeKind(c.Attribute, schema, inferred)
		if !ok {
			return
		}
		if !compatibleKinds(expected, c.Literal.Kind) {
			diags = append(diags, rule.Diagnostic{
				StatuteID: s.ID,
				Severity:  rule.SeverityError,
				Code:      rule.CodeTypeIncompatible,
				Message: fmt.Sprintf("attribute %q is kind %s but condition compares it against a %s literal",
					c.Attribute, expected, c.Literal.Kind),
			})
		}
	})
	return diags
}

func attributeKind(attr string, schema *EntitySchema, inferred map[string]value.Kind) (value.Kind, bool) {
	if schema != nil {
		if kind, ok := schema.Attributes[attr]; ok {
			return kind, true
		}
	}
	kind, ok := inferred[attr]
	return kind, ok
}

// checkDanglingReferences flags attributes and regions a statute
// references that the caller-supplied schema doesn't declare (spec
// §4.5 "Dangling references... Warnings").
func checkDanglingReferences(s rule.Statute, schema *EntitySchema) []rule.Diagnostic {
	if schema == nil {
		return nil
	}
	var diags []rule.Diagnostic
	walkLeaves(s.ConditionTree(), func(c rule.Condition) {
		if _, ok := schema.Attributes[c.Attribute]; !ok {
			diags = append(diags, rule.Diagnostic{
				StatuteID: s.ID,
				Severity:  rule.SeverityWarning,
				Code:      rule.CodeDanglingReference,
				Message:   fmt.Sprintf("attribute %q is not declared in the entity schema", c.Attribute),
			})
		}
	})
	for _, r := range s.RegionScope {
		if r.Kind == rule.RegionUniversal {
			continue
		}
		if schema.Regions != nil && !schema.Regions[r.ID] {
			diags = append(diags, rule.Diagnostic{
				StatuteID: s.ID,
				Severity:  rule.SeverityWarning,
				Code:      rule.CodeDanglingReference,
				Message:   fmt.Sprintf("region %q is not declared in the entity schema", r.ID),
			})
		}
	}
	return diags
}
