package value

import "fmt"

// CoerceError reports that v cannot be coerced to target.
type CoerceError struct {
	From, To Kind
}

func (e *CoerceError) Error() string {
	return fmt.Sprintf("value: cannot coerce %s to %s", e.From, e.To)
}

// Coerce attempts to convert v to the target Kind, per spec §4.1. Unlike
// Compare and Parse, Coerce is NOT total: conversions with no reasonable
// mapping return a *CoerceError.
func Coerce(v Value, target Kind) (Value, error) {
	if v.Kind == target {
		return v, nil
	}
	switch target {
	case KindInteger:
		switch v.Kind {
		case KindFloat:
			return Int(int64(v.Float64)), nil
		case KindText:
			parsed := Parse(v.Str)
			if parsed.Kind == KindInteger {
				return parsed, nil
			}
		case KindBoolean:
			if v.Bool {
				return Int(1), nil
			}
			return Int(0), nil
		}
	case KindFloat:
		switch v.Kind {
		case KindInteger:
			return Float(float64(v.Int)), nil
		case KindText:
			parsed := Parse(v.Str)
			if parsed.Kind == KindFloat || parsed.Kind == KindInteger {
				return Float(numericOf(parsed)), nil
			}
		}
	case KindText:
		return Text(Format(v)), nil
	case KindBoolean:
		if v.Kind == KindText {
			switch v.Str {
			case "true":
				return Bool(true), nil
			case "false":
				return Bool(false), nil
			}
		}
	case KindTimestamp:
		if v.Kind == KindDate {
			return Timestamp(v.Time), nil
		}
	case KindDate:
		if v.Kind == KindTimestamp {
			return Date(v.Time), nil
		}
	}
	return Value{}, &CoerceError{From: v.Kind, To: target}
}
