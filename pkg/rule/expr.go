package rule

import (
	"fmt"

	"github.com/google/cel-go/cel"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"

	"github.com/legalis-go/core/pkg/value"
)

// ExprEnv compiles and runs the optional KindExpr condition leaf
// (SPEC_FULL.md §11): a CEL expression evaluated against an entity's
// attribute map, exposed as the "entity" variable. It exists for
// statutes whose predicate doesn't fit the structured Leaf/And/Or/Between
// shapes — arithmetic over several attributes, for instance.
//
// Compiled programs are cached by expression source so repeated
// evaluation of the same statute doesn't re-parse CEL on every call.
type ExprEnv struct {
	env      *cel.Env
	programs map[string]cel.Program
}

// NewExprEnv builds a CEL environment with a single "entity" variable of
// type map(string, dyn), mirroring how entity attributes are exposed to
// structured Leaf conditions.
func NewExprEnv() (*ExprEnv, error) {
	env, err := cel.NewEnv(
		cel.Variable("entity", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("rule: building CEL environment: %w", err)
	}
	return &ExprEnv{env: env, programs: make(map[string]cel.Program)}, nil
}

// Compile validates expr is free of the non-deterministic constructs
// Evaluate would otherwise execute unpredictably across runs, then
// caches the compiled program.
func (e *ExprEnv) Compile(expr string) error {
	if _, ok := e.programs[expr]; ok {
		return nil
	}
	ast, issues := e.env.Parse(expr)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("rule: parsing expr condition: %w", issues.Err())
	}
	if err := checkDeterministic(ast.Expr()); err != nil {
		return err
	}
	checked, issues := e.env.Check(ast)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("rule: type-checking expr condition: %w", issues.Err())
	}
	prg, err := e.env.Program(checked)
	if err != nil {
		return fmt.Errorf("rule: building CEL program: %w", err)
	}
	e.programs[expr] = prg
	return nil
}

// Eval runs a previously compiled expression against an attribute map
// and reduces the result to a Truth value. A non-boolean result or a
// runtime error is Unknown rather than a fatal error, consistent with
// every other leaf evaluator in this package.
func (e *ExprEnv) Eval(expr string, attributes map[string]interface{}) value.Truth {
	prg, ok := e.programs[expr]
	if !ok {
		if err := e.Compile(expr); err != nil {
			return value.Unknown
		}
		prg = e.programs[expr]
	}
	out, _, err := prg.Eval(map[string]interface{}{"entity": attributes})
	if err != nil {
		return value.Unknown
	}
	b, ok := out.Value().(bool)
	if !ok {
		return value.Unknown
	}
	return value.BoolTruth(b)
}

// checkDeterministic rejects CEL constructs that would make evaluation
// depend on wall-clock time or map iteration order, which would break
// the determinism guarantee (spec §5, "same inputs produce identical
// outputs").
func checkDeterministic(e *exprpb.Expr) error {
	if e == nil {
		return nil
	}
	switch k := e.ExprKind.(type) {
	case *exprpb.Expr_CallExpr:
		call := k.CallExpr
		switch call.Function {
		case "now":
			return fmt.Errorf("rule: expr condition calls now(), which is non-deterministic")
		case "keys", "values":
			return fmt.Errorf("rule: expr condition iterates map %s(), which is order-dependent", call.Function)
		}
		if call.Target != nil {
			if err := checkDeterministic(call.Target); err != nil {
				return err
			}
		}
		for _, arg := range call.Args {
			if err := checkDeterministic(arg); err != nil {
				return err
			}
		}
	case *exprpb.Expr_SelectExpr:
		return checkDeterministic(k.SelectExpr.Operand)
	case *exprpb.Expr_ListExpr:
		for _, el := range k.ListExpr.Elements {
			if err := checkDeterministic(el); err != nil {
				return err
			}
		}
	case *exprpb.Expr_StructExpr:
		for _, entry := range k.StructExpr.Entries {
			if entry.GetMapKey() != nil {
				if err := checkDeterministic(entry.GetMapKey()); err != nil {
					return err
				}
			}
			if err := checkDeterministic(entry.Value); err != nil {
				return err
			}
		}
	case *exprpb.Expr_ComprehensionExpr:
		comp := k.ComprehensionExpr
		for _, sub := range []*exprpb.Expr{comp.IterRange, comp.AccuInit, comp.LoopCondition, comp.LoopStep, comp.Result} {
			if err := checkDeterministic(sub); err != nil {
				return err
			}
		}
	}
	return nil
}
