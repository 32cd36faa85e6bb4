// Package eval implements the deterministic Evaluation Engine (spec
// §4.3): it decides, for one entity and one point in time, which
// statutes apply, evaluates their condition trees under three-valued
// logic, and resolves conflicting effects across statutes.
package eval

import (
	"fmt"
	"sort"
	"time"

	"github.com/legalis-go/core/pkg/entity"
	"github.com/legalis-go/core/pkg/errtax"
	"github.com/legalis-go/core/pkg/rule"
	"github.com/legalis-go/core/pkg/value"
)

// Status is the outcome of evaluating one statute against one entity.
type Status string

const (
	Applies       Status = "applies"
	DoesNotApply  Status = "does-not-apply"
	Indeterminate Status = "indeterminate"
)

// TraceNode mirrors the shape of the Condition tree it was produced
// from, annotated with the truth value and the facts (attribute lookup,
// type mismatch, missing attribute, relationship cycle) that produced
// it. Callers use this to explain a result or to discover which
// attributes are missing (spec §4.3: "Indeterminate... the trace
// enumerates unknown leaves so callers can request missing data").
type TraceNode struct {
	Kind  rule.ConditionKind `json:"kind"`
	Truth value.Truth        `json:"truth"`

	Attribute string       `json:"attribute,omitempty"`
	Op        value.Op     `json:"op,omitempty"`
	Observed  *value.Value `json:"observed,omitempty"`
	Literal   *value.Value `json:"literal,omitempty"`

	Start *value.Value `json:"start,omitempty"`
	End   *value.Value `json:"end,omitempty"`

	MissingAttribute bool `json:"missing_attribute,omitempty"`
	TypeMismatch     bool `json:"type_mismatch,omitempty"`

	Children []TraceNode `json:"children,omitempty"`

	RelationshipKind string     `json:"relationship_kind,omitempty"`
	CycleDetected    bool       `json:"cycle_detected,omitempty"`
	Sub              *TraceNode `json:"sub,omitempty"`
}

// EvaluationResult is the per-statute outcome of one Evaluate call.
type EvaluationResult struct {
	StatuteID string
	Status    Status
	Effects   []rule.Effect
	Trace     TraceNode
}

// Options configures an Evaluate call with the optional pieces spec
// §4.3 and §11 describe: a region filter narrowing which statutes are
// considered, and an expression environment enabling KindExpr leaves.
type Options struct {
	RegionFilter *rule.RegionScope
	ExprEnv      *rule.ExprEnv
}

// Evaluate runs every in-scope statute's condition tree against one
// entity at time t, returning one EvaluationResult per in-scope statute
// in the order the statutes were given (spec §4.3 steps 1-3).
//
// Out-of-scope statutes (region or temporal mismatch) are silently
// excluded, consistent with §4.3 step 1 treating scope as a
// precondition to evaluation, not an outcome of it.
func Evaluate(statutes []rule.Statute, pop *entity.Population, ent entity.Entity, t time.Time, opts Options) ([]EvaluationResult, error) {
	results := make([]EvaluationResult, 0, len(statutes))
	for _, s := range statutes {
		if d := s.ConditionTree().Depth(); d > rule.MaxConditionDepth {
			return nil, errtax.New(errtax.CodeDepthExceeded, errtax.ClassCaller,
				fmt.Sprintf("statute %q condition depth %d exceeds maximum %d", s.ID, d, rule.MaxConditionDepth))
		}
		if !statuteInScope(s, ent, t, opts.RegionFilter) {
			continue
		}

		ctx := &evalCtx{pop: pop, exprEnv: opts.ExprEnv, visitedEdges: map[string]bool{}}
		truth, trace := evaluateCondition(s.ConditionTree(), ent, t, ctx)

		result := EvaluationResult{StatuteID: s.ID, Trace: trace}
		switch truth {
		case value.True:
			result.Status = Applies
			result.Effects = s.Effects
		case value.False:
			result.Status = DoesNotApply
		default:
			result.Status = Indeterminate
		}
		results = append(results, result)
	}
	return results, nil
}

func statuteInScope(s rule.Statute, ent entity.Entity, t time.Time, regionFilter *rule.RegionScope) bool {
	if !s.InScope(t) {
		return false
	}
	if !regionScopeMatchesEntity(s.RegionScope, ent) {
		return false
	}
	if regionFilter != nil && !regionScopesIntersect(s.RegionScope, *regionFilter) {
		return false
	}
	return true
}

func regionScopeMatchesEntity(scope rule.RegionScope, ent entity.Entity) bool {
	if len(scope) == 0 || scope.IsUniversal() {
		return true
	}
	for _, r := range scope {
		if ent.RegionMembership(r.ID) {
			return true
		}
	}
	return false
}

func regionScopesIntersect(a, b rule.RegionScope) bool {
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

type evalCtx struct {
	pop          *entity.Population
	exprEnv      *rule.ExprEnv
	visitedEdges map[string]bool
}

func evaluateCondition(c rule.Condition, ent entity.Entity, t time.Time, ctx *evalCtx) (value.Truth, TraceNode) {
	switch c.Kind {
	case rule.KindLeaf:
		return evaluateLeaf(c, ent)
	case rule.KindAnd:
		return evaluateAndOr(c, ent, t, ctx, true)
	case rule.KindOr:
		return evaluateAndOr(c, ent, t, ctx, false)
	case rule.KindNot:
		return evaluateNot(c, ent, t, ctx)
	case rule.KindBetween:
		return evaluateBetween(c, t)
	case rule.KindAfter:
		return evaluateAfterBefore(c, t, true)
	case rule.KindBefore:
		return evaluateAfterBefore(c, t, false)
	case rule.KindExists:
		return evaluateExists(c, ent, t, ctx)
	case rule.KindExpr:
		return evaluateExpr(c, ent, ctx)
	default:
		return value.Unknown, TraceNode{Kind: c.Kind, Truth: value.Unknown}
	}
}

func evaluateLeaf(c rule.Condition, ent entity.Entity) (value.Truth, TraceNode) {
	literal := c.Literal
	trace := TraceNode{Kind: rule.KindLeaf, Attribute: c.Attribute, Op: c.Op, Literal: &literal}

	observed, ok := ent.Attribute(c.Attribute)
	if !ok {
		trace.MissingAttribute = true
		trace.Truth = value.Unknown
		return value.Unknown, trace
	}
	trace.Observed = &observed

	truth := value.Compare(observed, c.Op, literal)
	if truth == value.Unknown && observed.Kind != literal.Kind && observed.Kind != value.KindNull && literal.Kind != value.KindNull {
		trace.TypeMismatch = true
	}
	trace.Truth = truth
	return truth, trace
}

func evaluateAndOr(c rule.Condition, ent entity.Entity, t time.Time, ctx *evalCtx, isAnd bool) (value.Truth, TraceNode) {
	kind := rule.KindOr
	truth := value.False
	shortCircuitOn := value.True
	if isAnd {
		kind = rule.KindAnd
		truth = value.True
		shortCircuitOn = value.False
	}

	children := make([]TraceNode, 0, len(c.Children))
	for _, child := range c.Children {
		childTruth, childTrace := evaluateCondition(child, ent, t, ctx)
		children = append(children, childTrace)
		if isAnd {
			truth = value.And(truth, childTruth)
		} else {
			truth = value.Or(truth, childTruth)
		}
		if childTruth == shortCircuitOn {
			break
		}
	}
	return truth, TraceNode{Kind: kind, Truth: truth, Children: children}
}

func evaluateNot(c rule.Condition, ent entity.Entity, t time.Time, ctx *evalCtx) (value.Truth, TraceNode) {
	if len(c.Children) != 1 {
		return value.Unknown, TraceNode{Kind: rule.KindNot, Truth: value.Unknown}
	}
	childTruth, childTrace := evaluateCondition(c.Children[0], ent, t, ctx)
	truth := value.Not(childTruth)
	return truth, TraceNode{Kind: rule.KindNot, Truth: truth, Children: []TraceNode{childTrace}}
}

func evaluateBetween(c rule.Condition, t time.Time) (value.Truth, TraceNode) {
	now := value.Timestamp(t)
	geStart := value.Compare(now, value.OpGte, c.Start)
	leEnd := value.Compare(now, value.OpLte, c.End)
	truth := value.And(geStart, leEnd)
	start, end := c.Start, c.End
	return truth, TraceNode{Kind: rule.KindBetween, Truth: truth, Start: &start, End: &end}
}

func evaluateAfterBefore(c rule.Condition, t time.Time, after bool) (value.Truth, TraceNode) {
	now := value.Timestamp(t)
	op := value.OpLt
	kind := rule.KindBefore
	if after {
		op = value.OpGt
		kind = rule.KindAfter
	}
	truth := value.Compare(now, op, c.Start)
	start := c.Start
	return truth, TraceNode{Kind: kind, Truth: truth, Start: &start}
}

func evaluateExists(c rule.Condition, ent entity.Entity, t time.Time, ctx *evalCtx) (value.Truth, TraceNode) {
	trace := TraceNode{Kind: rule.KindExists, RelationshipKind: c.RelationshipKind}
	if c.Sub == nil || ctx.pop == nil {
		trace.Truth = value.Unknown
		return value.Unknown, trace
	}

	relatedIDs := ent.Relationships(c.RelationshipKind)
	sortedIDs := append([]string(nil), relatedIDs...)
	sort.Strings(sortedIDs)

	sawUnknown := false
	for _, relatedID := range sortedIDs {
		edgeKey := ent.ID() + "\x1f" + c.RelationshipKind + "\x1f" + relatedID
		if ctx.visitedEdges[edgeKey] {
			trace.CycleDetected = true
			sawUnknown = true
			continue
		}

		related, ok := ctx.pop.Get(relatedID)
		if !ok {
			sawUnknown = true
			continue
		}

		ctx.visitedEdges[edgeKey] = true
		subTruth, subTrace := evaluateCondition(*c.Sub, related, t, ctx)
		delete(ctx.visitedEdges, edgeKey)

		if subTruth == value.True {
			trace.Truth = value.True
			trace.Sub = &subTrace
			return value.True, trace
		}
		if subTruth == value.Unknown {
			sawUnknown = true
		}
	}

	if sawUnknown {
		trace.Truth = value.Unknown
		return value.Unknown, trace
	}
	trace.Truth = value.False
	return value.False, trace
}

func evaluateExpr(c rule.Condition, ent entity.Entity, ctx *evalCtx) (value.Truth, TraceNode) {
	trace := TraceNode{Kind: rule.KindExpr}
	if ctx.exprEnv == nil {
		trace.Truth = value.Unknown
		return value.Unknown, trace
	}
	attrs := entityAttributeMap(ent)
	truth := ctx.exprEnv.Eval(c.Expr, attrs)
	trace.Truth = truth
	return truth, trace
}

// entityAttributeMap materializes the attribute set an Entity exposes
// into a plain map for the CEL evaluator, which needs a concrete
// map[string]interface{} rather than the Entity interface.
func entityAttributeMap(ent entity.Entity) map[string]interface{} {
	static, ok := ent.(*entity.Static)
	if !ok {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(static.Attributes()))
	for name, v := range static.Attributes() {
		out[name] = nativeOf(v)
	}
	return out
}

func nativeOf(v value.Value) interface{} {
	switch v.Kind {
	case value.KindInteger:
		return v.Int
	case value.KindFloat:
		return v.Float64
	case value.KindBoolean:
		return v.Bool
	case value.KindText:
		return v.Str
	default:
		return value.Format(v)
	}
}
