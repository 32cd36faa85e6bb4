// Package value implements the AttributeValue model (spec §3.1, §4.1):
// a closed set of typed variants with total parsing, canonical text
// formatting, three-valued comparison, and canonical serialization.
package value

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind identifies an AttributeValue variant. The set is closed: adding a
// Kind is a breaking change to the wire format (spec §3.1).
type Kind string

const (
	KindInteger   Kind = "integer"
	KindFloat     Kind = "float"
	KindBoolean   Kind = "boolean"
	KindText      Kind = "text"
	KindTimestamp Kind = "timestamp"
	KindDate      Kind = "date"
	KindDuration  Kind = "duration"
	KindMoney     Kind = "money"
	KindList      Kind = "list"
	KindMap       Kind = "map"
	KindNull      Kind = "null"
)

// DurationUnit is one of the fixed set of duration units.
type DurationUnit string

const (
	UnitSeconds DurationUnit = "seconds"
	UnitMinutes DurationUnit = "minutes"
	UnitHours   DurationUnit = "hours"
	UnitDays    DurationUnit = "days"
	UnitWeeks   DurationUnit = "weeks"
	UnitMonths  DurationUnit = "months"
	UnitYears   DurationUnit = "years"
)

// secondsPerUnit fixes the comparison ratios spec §4.1 and §9 require to
// be identical across implementations: month = 30 days, year = 365 days.
var secondsPerUnit = map[DurationUnit]float64{
	UnitSeconds: 1,
	UnitMinutes: 60,
	UnitHours:   3600,
	UnitDays:    86400,
	UnitWeeks:   7 * 86400,
	UnitMonths:  30 * 86400,
	UnitYears:   365 * 86400,
}

// Money is an amount in integer minor units plus an ISO-4217 currency code.
type Money struct {
	AmountMinorUnits int64  `json:"amount"`
	Currency         string `json:"currency"`
}

// Duration is an amount paired with one of the fixed units above.
type Duration struct {
	Amount int64        `json:"amount"`
	Unit   DurationUnit `json:"unit"`
}

// Seconds returns the duration normalized to seconds using the fixed
// ratios in secondsPerUnit.
func (d Duration) Seconds() float64 {
	return float64(d.Amount) * secondsPerUnit[d.Unit]
}

// Value is a closed tagged union over the AttributeValue variants. Only
// one of the typed fields is meaningful, selected by Kind; this mirrors
// the wire encoding of spec §6.1 ({kind, value}) while giving Go code a
// single comparable struct to pass around.
type Value struct {
	Kind Kind

	Int       int64
	Float64   float64
	Bool      bool
	Str       string
	Time      time.Time // Timestamp and Date kinds
	Dur       Duration
	Mon       Money
	ListItems []Value
	MapItems  map[string]Value
}

func Null() Value                 { return Value{Kind: KindNull} }
func Int(i int64) Value           { return Value{Kind: KindInteger, Int: i} }
func Float(f float64) Value       { return Value{Kind: KindFloat, Float64: f} }
func Bool(b bool) Value           { return Value{Kind: KindBoolean, Bool: b} }
func Text(s string) Value         { return Value{Kind: KindText, Str: s} }
func Timestamp(t time.Time) Value { return Value{Kind: KindTimestamp, Time: t.UTC()} }
func Date(t time.Time) Value {
	y, m, d := t.UTC().Date()
	return Value{Kind: KindDate, Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}
func DurationValue(amount int64, unit DurationUnit) Value {
	return Value{Kind: KindDuration, Dur: Duration{Amount: amount, Unit: unit}}
}
func MoneyValue(amountMinorUnits int64, currency string) Value {
	return Value{Kind: KindMoney, Mon: Money{AmountMinorUnits: amountMinorUnits, Currency: strings.ToUpper(currency)}}
}
func List(items ...Value) Value { return Value{Kind: KindList, ListItems: items} }
func Map(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{Kind: KindMap, MapItems: m}
}

// Format renders the canonical text form of v. parse(format(v)) == v is a
// universal invariant (spec §8 property 1).
func Format(v Value) string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return formatFloat(v.Float64)
	case KindBoolean:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindText:
		return v.Str
	case KindTimestamp:
		return v.Time.UTC().Format(time.RFC3339)
	case KindDate:
		return v.Time.UTC().Format("2006-01-02")
	case KindDuration:
		return fmt.Sprintf("%d%s", v.Dur.Amount, unitSuffix(v.Dur.Unit))
	case KindMoney:
		return fmt.Sprintf("%d %s", v.Mon.AmountMinorUnits, v.Mon.Currency)
	case KindList:
		parts := make([]string, len(v.ListItems))
		for i, item := range v.ListItems {
			parts[i] = Format(item)
		}
		return strings.Join(parts, ",")
	case KindMap:
		keys := make([]string, 0, len(v.MapItems))
		for k := range v.MapItems {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + Format(v.MapItems[k])
		}
		return strings.Join(parts, ",")
	default:
		return ""
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func unitSuffix(u DurationUnit) string {
	switch u {
	case UnitSeconds:
		return "s"
	case UnitMinutes:
		return "min"
	case UnitHours:
		return "h"
	case UnitDays:
		return "d"
	case UnitWeeks:
		return "w"
	case UnitMonths:
		return "mo"
	case UnitYears:
		return "y"
	default:
		return ""
	}
}

var (
	durationRe = regexp.MustCompile(`^(-?\d+)(s|min|h|d|w|mo|y)$`)
	moneyRe    = regexp.MustCompile(`^(-?\d+)\s+([A-Za-z]{3})$`)
)

// Parse converts a text form into a Value. Parsing is total (spec §3.1):
// any input that fails to match a structured variant becomes Text, and
// Parse never errors and never panics.
func Parse(s string) Value {
	if s == "" {
		return Null()
	}
	if s == "true" || s == "false" {
		return Bool(s == "true")
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return Float(f)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return Timestamp(t)
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return Date(t)
	}
	if m := durationRe.FindStringSubmatch(s); m != nil {
		amount, _ := strconv.ParseInt(m[1], 10, 64)
		return DurationValue(amount, unitFromSuffix(m[2]))
	}
	if m := moneyRe.FindStringSubmatch(s); m != nil {
		amount, _ := strconv.ParseInt(m[1], 10, 64)
		return MoneyValue(amount, m[2])
	}
	return Text(s)
}

func unitFromSuffix(suffix string) DurationUnit {
	switch suffix {
	case "s":
		return UnitSeconds
	case "min":
		return UnitMinutes
	case "h":
		return UnitHours
	case "d":
		return UnitDays
	case "w":
		return UnitWeeks
	case "mo":
		return UnitMonths
	case "y":
		return UnitYears
	default:
		return UnitSeconds
	}
}
