package value_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/legalis-go/core/pkg/value"
)

func TestParse_TotalAndNeverPanics(t *testing.T) {
	inputs := []string{
		"", "true", "false", "42", "-7", "3.14", "hello world",
		"2024-01-01T00:00:00Z", "2024-01-01", "30d", "100 USD",
		"\x00\x01control-chars", "9999999999999999999999999999", "  spaced  ",
	}
	for _, in := range inputs {
		require.NotPanics(t, func() {
			_ = value.Parse(in)
		})
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	cases := []value.Value{
		value.Int(42),
		value.Float(3.5),
		value.Bool(true),
		value.Bool(false),
		value.Text("arbitrary text"),
		value.DurationValue(30, value.UnitDays),
		value.MoneyValue(10050, "USD"),
	}
	for _, v := range cases {
		round := value.Parse(value.Format(v))
		require.Equal(t, v.Kind, round.Kind, "kind mismatch for %+v", v)
	}
}

func TestParse_UnmatchedFallsBackToText(t *testing.T) {
	v := value.Parse("not-a-known-shape!!")
	require.Equal(t, value.KindText, v.Kind)
	require.Equal(t, "not-a-known-shape!!", v.Str)
}

func TestCompare_IncompatibleKindsAreUnknown(t *testing.T) {
	require.Equal(t, value.Unknown, value.Compare(value.Bool(true), value.OpEq, value.Int(1)))
}

func TestCompare_MoneyCrossCurrencyIsUnknown(t *testing.T) {
	usd := value.MoneyValue(100, "USD")
	eur := value.MoneyValue(100, "EUR")
	require.Equal(t, value.Unknown, value.Compare(usd, value.OpEq, eur))
	require.Equal(t, value.Unknown, value.Compare(usd, value.OpLt, eur))
}

func TestCompare_DurationNormalizesWithFixedRatios(t *testing.T) {
	oneMonth := value.DurationValue(1, value.UnitMonths)
	thirtyDays := value.DurationValue(30, value.UnitDays)
	require.Equal(t, value.True, value.Compare(oneMonth, value.OpEq, thirtyDays))

	oneYear := value.DurationValue(1, value.UnitYears)
	threeSixtyFiveDays := value.DurationValue(365, value.UnitDays)
	require.Equal(t, value.True, value.Compare(oneYear, value.OpEq, threeSixtyFiveDays))
}

func TestCompare_WithinDurationOf(t *testing.T) {
	ref := value.Timestamp(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	literal := value.WithinDurationLiteral(ref, value.Duration{Amount: 5, Unit: value.UnitDays})

	within := value.Timestamp(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
	outside := value.Timestamp(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))

	require.Equal(t, value.True, value.Compare(within, value.OpWithinDurationOf, literal))
	require.Equal(t, value.False, value.Compare(outside, value.OpWithinDurationOf, literal))
}

func TestCompare_InAndContains(t *testing.T) {
	list := value.List(value.Text("a"), value.Text("b"), value.Text("c"))
	require.Equal(t, value.True, value.Compare(value.Text("b"), value.OpIn, list))
	require.Equal(t, value.False, value.Compare(value.Text("z"), value.OpIn, list))
	require.Equal(t, value.True, value.Compare(value.Text("hello world"), value.OpContains, value.Text("lo wo")))
}

func TestCompare_MatchesRegex(t *testing.T) {
	require.Equal(t, value.True, value.Compare(value.Text("abc123"), value.OpMatchesRegex, value.Text(`^[a-z]+\d+$`)))
	require.Equal(t, value.False, value.Compare(value.Text("!!!"), value.OpMatchesRegex, value.Text(`^[a-z]+\d+$`)))
}

func TestSerialize_WireEnvelope(t *testing.T) {
	v := value.MoneyValue(12345, "usd")
	b, err := json.Marshal(v)
	require.NoError(t, err)
	require.JSONEq(t, `{"kind":"money","value":{"amount":12345,"currency":"USD"}}`, string(b))

	var round value.Value
	require.NoError(t, json.Unmarshal(b, &round))
	require.Equal(t, v, round)
}

func TestSerialize_RoundTripIdempotent(t *testing.T) {
	cases := []value.Value{
		value.Int(7),
		value.Float(1.5),
		value.Bool(false),
		value.Text("hi"),
		value.Timestamp(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		value.Date(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
		value.DurationValue(3, value.UnitWeeks),
		value.MoneyValue(999, "GBP"),
		value.List(value.Int(1), value.Int(2)),
		value.Map(map[string]value.Value{"a": value.Int(1), "b": value.Bool(true)}),
		value.Null(),
	}
	for _, v := range cases {
		b1, err := json.Marshal(v)
		require.NoError(t, err)

		var round value.Value
		require.NoError(t, json.Unmarshal(b1, &round))

		b2, err := json.Marshal(round)
		require.NoError(t, err)
		require.JSONEq(t, string(b1), string(b2))
	}
}

func TestCoerce_SuccessAndFailure(t *testing.T) {
	out, err := value.Coerce(value.Float(3.9), value.KindInteger)
	require.NoError(t, err)
	require.Equal(t, int64(3), out.Int)

	_, err = value.Coerce(value.Text("not a bool"), value.KindBoolean)
	require.Error(t, err)
}
