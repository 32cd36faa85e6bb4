package value

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// Op is a comparison operator usable in a Leaf Condition (spec §3.3).
type Op string

const (
	OpEq              Op = "=="
	OpNeq             Op = "!="
	OpLt              Op = "<"
	OpLte             Op = "<="
	OpGt              Op = ">"
	OpGte             Op = ">="
	OpIn              Op = "in"
	OpContains        Op = "contains"
	OpMatchesRegex    Op = "matches-regex"
	OpWithinDurationOf Op = "within-duration-of"
)

// Compare evaluates "a <op> b" and is total (spec §4.1): incompatible
// kinds produce Unknown rather than an error. Money across different
// currencies is always Unknown. Duration comparisons normalize to
// seconds with the fixed ratios in secondsPerUnit. Float comparisons use
// strict ordering; a NaN float is unrepresentable (Format/Parse never
// produce one) but is handled defensively below anyway.
func Compare(a Value, op Op, b Value) Truth {
	switch op {
	case OpEq:
		return equalTruth(a, b)
	case OpNeq:
		return Not(equalTruth(a, b))
	case OpLt:
		return ordered(a, b, func(c int) bool { return c < 0 })
	case OpLte:
		return ordered(a, b, func(c int) bool { return c <= 0 })
	case OpGt:
		return ordered(a, b, func(c int) bool { return c > 0 })
	case OpGte:
		return ordered(a, b, func(c int) bool { return c >= 0 })
	case OpIn:
		return inTruth(a, b)
	case OpContains:
		return containsTruth(a, b)
	case OpMatchesRegex:
		return matchesRegexTruth(a, b)
	case OpWithinDurationOf:
		return withinDurationTruth(a, b)
	default:
		return Unknown
	}
}

func equalTruth(a, b Value) Truth {
	if a.Kind == KindMoney && b.Kind == KindMoney && a.Mon.Currency != b.Mon.Currency {
		return Unknown
	}
	if !comparableKinds(a.Kind, b.Kind) {
		return Unknown
	}
	switch a.Kind {
	case KindInteger:
		if b.Kind == KindFloat {
			return boolTruth(float64(a.Int) == b.Float64)
		}
		return boolTruth(a.Int == b.Int)
	case KindFloat:
		bf := b.Float64
		if b.Kind == KindInteger {
			bf = float64(b.Int)
		}
		if math.IsNaN(a.Float64) || math.IsNaN(bf) {
			return Unknown
		}
		return boolTruth(a.Float64 == bf)
	case KindBoolean:
		return boolTruth(a.Bool == b.Bool)
	case KindText:
		return boolTruth(a.Str == b.Str)
	case KindTimestamp, KindDate:
		return boolTruth(a.Time.Equal(b.Time))
	case KindDuration:
		return boolTruth(a.Dur.Seconds() == b.Dur.Seconds())
	case KindMoney:
		return boolTruth(a.Mon.AmountMinorUnits == b.Mon.AmountMinorUnits)
	case KindNull:
		return boolTruth(b.Kind == KindNull)
	default:
		return Unknown
	}
}

// ordered compares a and b numerically/temporally and applies pred to the
// three-way comparison result (-1, 0, 1). Returns Unknown for
// incomparable kinds per spec §4.1.
func ordered(a, b Value, pred func(int) bool) Truth {
	if a.Kind == KindMoney && b.Kind == KindMoney {
		if a.Mon.Currency != b.Mon.Currency {
			return Unknown
		}
		return boolTruth(pred(compareInt64(a.Mon.AmountMinorUnits, b.Mon.AmountMinorUnits)))
	}
	if a.Kind == KindDuration && b.Kind == KindDuration {
		return boolTruth(pred(compareFloat64(a.Dur.Seconds(), b.Dur.Seconds())))
	}
	if (a.Kind == KindTimestamp || a.Kind == KindDate) && (b.Kind == KindTimestamp || b.Kind == KindDate) {
		if a.Time.Equal(b.Time) {
			return boolTruth(pred(0))
		}
		if a.Time.Before(b.Time) {
			return boolTruth(pred(-1))
		}
		return boolTruth(pred(1))
	}
	if isNumeric(a.Kind) && isNumeric(b.Kind) {
		af, bf := numericOf(a), numericOf(b)
		if math.IsNaN(af) || math.IsNaN(bf) {
			return Unknown
		}
		return boolTruth(pred(compareFloat64(af, bf)))
	}
	if a.Kind == KindText && b.Kind == KindText {
		return boolTruth(pred(strings.Compare(a.Str, b.Str)))
	}
	return Unknown
}

func inTruth(needle, haystack Value) Truth {
	if haystack.Kind != KindList {
		return Unknown
	}
	sawUnknown := false
	for _, item := range haystack.ListItems {
		switch equalTruth(needle, item) {
		case True:
			return True
		case Unknown:
			sawUnknown = true
		}
	}
	if sawUnknown {
		return Unknown
	}
	return False
}

func containsTruth(haystack, needle Value) Truth {
	switch haystack.Kind {
	case KindList:
		return inTruth(needle, haystack)
	case KindText:
		if needle.Kind != KindText {
			return Unknown
		}
		return boolTruth(strings.Contains(haystack.Str, needle.Str))
	default:
		return Unknown
	}
}

func matchesRegexTruth(a, pattern Value) Truth {
	if a.Kind != KindText || pattern.Kind != KindText {
		return Unknown
	}
	re, err := regexp.Compile(pattern.Str)
	if err != nil {
		return Unknown
	}
	return boolTruth(re.MatchString(a.Str))
}

// WithinDurationLiteral builds the literal operand for OpWithinDurationOf:
// a map carrying the reference instant to measure distance from and the
// tolerance window, e.g. "is the attribute within 30 days of reference".
func WithinDurationLiteral(reference Value, tolerance Duration) Value {
	return Map(map[string]Value{
		"reference": reference,
		"tolerance": DurationValue(tolerance.Amount, tolerance.Unit),
	})
}

// withinDurationTruth answers "is |a - literal.reference| <= literal.tolerance|"?
// a must be Timestamp/Date; literal must be the Map built by
// WithinDurationLiteral. Any other shape is Unknown (spec §4.1: compare
// is total over incompatible operands).
func withinDurationTruth(a, literal Value) Truth {
	if a.Kind != KindTimestamp && a.Kind != KindDate {
		return Unknown
	}
	if literal.Kind != KindMap {
		return Unknown
	}
	reference, ok := literal.MapItems["reference"]
	if !ok || (reference.Kind != KindTimestamp && reference.Kind != KindDate) {
		return Unknown
	}
	tolerance, ok := literal.MapItems["tolerance"]
	if !ok || tolerance.Kind != KindDuration {
		return Unknown
	}

	deltaSeconds := a.Time.Sub(reference.Time).Seconds()
	if deltaSeconds < 0 {
		deltaSeconds = -deltaSeconds
	}
	return boolTruth(deltaSeconds <= tolerance.Dur.Seconds())
}

func boolTruth(b bool) Truth {
	if b {
		return True
	}
	return False
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func isNumeric(k Kind) bool { return k == KindInteger || k == KindFloat }

func numericOf(v Value) float64 {
	if v.Kind == KindInteger {
		return float64(v.Int)
	}
	return v.Float64
}

func comparableKinds(a, b Kind) bool {
	if a == b {
		return true
	}
	if isNumeric(a) && isNumeric(b) {
		return true
	}
	return false
}

// SortKey returns a stable structural key for ordering Values, used when
// canonically ordering AND/OR children before hashing (spec §4.2).
func SortKey(v Value) string {
	keyParts := []string{string(v.Kind)}
	switch v.Kind {
	case KindList:
		for _, item := range v.ListItems {
			keyParts = append(keyParts, SortKey(item))
		}
	case KindMap:
		keys := make([]string, 0, len(v.MapItems))
		for k := range v.MapItems {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			keyParts = append(keyParts, k, SortKey(v.MapItems[k]))
		}
	default:
		keyParts = append(keyParts, Format(v))
	}
	return strings.Join(keyParts, "\x1f")
}
