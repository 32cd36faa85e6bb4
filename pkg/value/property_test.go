package value_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/legalis-go/core/pkg/value"
)

// TestProperty_IntFormatParseRoundTrip pins spec §8 property 1
// (parse(format(v)) == v) for the Integer and Text variants across a
// large random sample, mirroring the teacher's gopter-based determinism
// properties in pkg/kernel/addenda_property_test.go.
func TestProperty_IntFormatParseRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("integer round-trips through format/parse", prop.ForAll(
		func(i int64) bool {
			v := value.Int(i)
			round := value.Parse(value.Format(v))
			return round.Kind == value.KindInteger && round.Int == i
		},
		gen.Int64(),
	))

	properties.Property("boolean round-trips through format/parse", prop.ForAll(
		func(b bool) bool {
			v := value.Bool(b)
			round := value.Parse(value.Format(v))
			return round.Kind == value.KindBoolean && round.Bool == b
		},
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// TestProperty_CompareIsTotal ensures Compare never panics for any
// combination of kinds it might be handed, satisfying spec §4.1's
// "compare is total" contract.
func TestProperty_CompareIsTotal(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	ops := []value.Op{value.OpEq, value.OpNeq, value.OpLt, value.OpLte, value.OpGt, value.OpGte, value.OpContains, value.OpMatchesRegex}

	properties.Property("Compare never panics across arbitrary text operands", prop.ForAll(
		func(a, b string, opIdx int) bool {
			op := ops[opIdx%len(ops)]
			didNotPanic := true
			func() {
				defer func() {
					if recover() != nil {
						didNotPanic = false
					}
				}()
				value.Compare(value.Text(a), op, value.Text(b))
			}()
			return didNotPanic
		},
		gen.AnyString(),
		gen.AnyString(),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}
