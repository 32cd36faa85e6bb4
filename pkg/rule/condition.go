// Package rule implements the Statute model (spec §3.3-§3.6, §4.2): the
// recursive Condition tree, Effect, temporal/region scope, and the
// canonical ordering used for deterministic hashing.
package rule

import (
	"sort"

	"github.com/legalis-go/core/pkg/value"
)

// ConditionKind identifies a Condition tree node variant.
type ConditionKind string

const (
	KindLeaf      ConditionKind = "leaf"
	KindAnd       ConditionKind = "and"
	KindOr        ConditionKind = "or"
	KindNot       ConditionKind = "not"
	KindBetween   ConditionKind = "between"
	KindAfter     ConditionKind = "after"
	KindBefore    ConditionKind = "before"
	KindExists    ConditionKind = "exists"
	KindExpr      ConditionKind = "expr" // optional CEL-backed leaf, see pkg/rule/expr.go
)

// MaxConditionDepth is the hard ceiling from spec §4.2: conditions deeper
// than this are rejected by well-formedness checking as a caller error.
const MaxConditionDepth = 64

// Condition is a node in the recursive predicate tree (spec §3.3).
// Exactly the fields relevant to Kind are populated; this mirrors a
// closed tagged union the way pkg/value.Value does for AttributeValue.
type Condition struct {
	Kind ConditionKind

	// Leaf
	Attribute string
	Op        value.Op
	Literal   value.Value

	// Composite (And/Or take Children; Not takes Children[0])
	Children []Condition

	// Temporal (Between takes Start/End; After/Before take Start)
	Start value.Value
	End   value.Value

	// Relational (Exists)
	RelationshipKind string
	Sub              *Condition

	// Expr (optional CEL leaf — see expr.go)
	Expr string
}

func Leaf(attribute string, op value.Op, literal value.Value) Condition {
	return Condition{Kind: KindLeaf, Attribute: attribute, Op: op, Literal: literal}
}

func And(children ...Condition) Condition {
	return Condition{Kind: KindAnd, Children: children}
}

func Or(children ...Condition) Condition {
	return Condition{Kind: KindOr, Children: children}
}

func Not(child Condition) Condition {
	return Condition{Kind: KindNot, Children: []Condition{child}}
}

func Between(start, end value.Value) Condition {
	return Condition{Kind: KindBetween, Start: start, End: end}
}

func After(date value.Value) Condition {
	return Condition{Kind: KindAfter, Start: date}
}

func Before(date value.Value) Condition {
	return Condition{Kind: KindBefore, Start: date}
}

func Exists(relationshipKind string, sub Condition) Condition {
	return Condition{Kind: KindExists, RelationshipKind: relationshipKind, Sub: &sub}
}

// Depth returns the tree depth of c (a Leaf/temporal/Expr node has depth
// 1). Used by well-formedness checking (spec §4.2 invariant: depth > 64
// is rejected).
func (c Condition) Depth() int {
	switch c.Kind {
	case KindAnd, KindOr, KindNot:
		max := 0
		for _, child := range c.Children {
			if d := child.Depth(); d > max {
				max = d
			}
		}
		return 1 + max
	case KindExists:
		if c.Sub == nil {
			return 1
		}
		return 1 + c.Sub.Depth()
	default:
		return 1
	}
}

// Canonicalize returns a copy of c with every AND/OR child list sorted
// by a stable structural key, as spec §4.2 requires for deterministic
// hashing: two structurally-equal-but-differently-authored conditions
// canonicalize to the same tree.
func Canonicalize(c Condition) Condition {
	out := c
	switch c.Kind {
	case KindAnd, KindOr:
		children := make([]Condition, len(c.Children))
		for i, child := range c.Children {
			children[i] = Canonicalize(child)
		}
		sort.Slice(children, func(i, j int) bool {
			return structuralKey(children[i]) < structuralKey(children[j])
		})
		out.Children = children
	case KindNot:
		if len(c.Children) == 1 {
			out.Children = []Condition{Canonicalize(c.Children[0])}
		}
	case KindExists:
		if c.Sub != nil {
			sub := Canonicalize(*c.Sub)
			out.Sub = &sub
		}
	}
	return out
}

// structuralKey produces a stable string encoding a Condition's
// structure and literal contents, used only for canonical ordering (not
// for evaluation or hashing of the final bytes — that's canonicalize.JCS
// over the serialized form).
func structuralKey(c Condition) string {
	switch c.Kind {
	case KindLeaf:
		return "leaf\x1f" + c.Attribute + "\x1f" + string(c.Op) + "\x1f" + value.SortKey(c.Literal)
	case KindAnd, KindOr:
		key := string(c.Kind)
		for _, child := range c.Children {
			key += "\x1f" + structuralKey(child)
		}
		return key
	case KindNot:
		if len(c.Children) == 1 {
			return "not\x1f" + structuralKey(c.Children[0])
		}
		return "not\x1f"
	case KindBetween:
		return "between\x1f" + value.SortKey(c.Start) + "\x1f" + value.SortKey(c.End)
	case KindAfter:
		return "after\x1f" + value.SortKey(c.Start)
	case KindBefore:
		return "before\x1f" + value.SortKey(c.Start)
	case KindExists:
		subKey := ""
		if c.Sub != nil {
			subKey = structuralKey(*c.Sub)
		}
		return "exists\x1f" + c.RelationshipKind + "\x1f" + subKey
	case KindExpr:
		return "expr\x1f" + c.Expr
	default:
		return string(c.Kind)
	}
}
