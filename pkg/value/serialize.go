package value

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// wireEnvelope is the {kind, value} document shape from spec §6.1.
type wireEnvelope struct {
	Kind  Kind            `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON implements the {kind, value} wire format. Money encodes as
// {amount, currency}; Duration as {amount, unit}; Timestamp/Date as
// RFC 3339 strings; missing optional fields are omitted, not null.
func (v Value) MarshalJSON() ([]byte, error) {
	env := wireEnvelope{Kind: v.Kind}
	var payload interface{}

	switch v.Kind {
	case KindNull:
		env.Value = nil
		return json.Marshal(env)
	case KindInteger:
		payload = v.Int
	case KindFloat:
		payload = v.Float64
	case KindBoolean:
		payload = v.Bool
	case KindText:
		payload = v.Str
	case KindTimestamp:
		payload = v.Time.UTC().Format(time.RFC3339)
	case KindDate:
		payload = v.Time.UTC().Format("2006-01-02")
	case KindDuration:
		payload = v.Dur
	case KindMoney:
		payload = struct {
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
		}{v.Mon.AmountMinorUnits, v.Mon.Currency}
	case KindList:
		payload = v.ListItems
	case KindMap:
		payload = sortedMap(v.MapItems)
	default:
		return nil, fmt.Errorf("value: unknown kind %q", v.Kind)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("value: marshal payload for kind %q: %w", v.Kind, err)
	}
	env.Value = raw
	return json.Marshal(env)
}

// sortedMap re-keys a map in a deterministic order for JSON encoding.
// encoding/json already sorts map[string]X keys, but Value's MapItems
// holds Value (a struct with a custom marshaler), so we go through an
// explicit ordered slice to keep the dependency on stdlib's map-sorting
// behavior documented rather than implicit.
func sortedMap(m map[string]Value) map[string]Value {
	if len(m) == 0 {
		return map[string]Value{}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]Value, len(m))
	for _, k := range keys {
		out[k] = m[k]
	}
	return out
}

// UnmarshalJSON parses the {kind, value} wire format back into a Value.
func (v *Value) UnmarshalJSON(data []byte) error {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("value: decode envelope: %w", err)
	}

	switch env.Kind {
	case KindNull, "":
		*v = Null()
		return nil
	case KindInteger:
		var i int64
		if err := json.Unmarshal(env.Value, &i); err != nil {
			return fmt.Errorf("value: decode integer: %w", err)
		}
		*v = Int(i)
	case KindFloat:
		var f float64
		if err := json.Unmarshal(env.Value, &f); err != nil {
			return fmt.Errorf("value: decode float: %w", err)
		}
		*v = Float(f)
	case KindBoolean:
		var b bool
		if err := json.Unmarshal(env.Value, &b); err != nil {
			return fmt.Errorf("value: decode boolean: %w", err)
		}
		*v = Bool(b)
	case KindText:
		var s string
		if err := json.Unmarshal(env.Value, &s); err != nil {
			return fmt.Errorf("value: decode text: %w", err)
		}
		*v = Text(s)
	case KindTimestamp:
		var s string
		if err := json.Unmarshal(env.Value, &s); err != nil {
			return fmt.Errorf("value: decode timestamp: %w", err)
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("value: parse timestamp: %w", err)
		}
		*v = Timestamp(t)
	case KindDate:
		var s string
		if err := json.Unmarshal(env.Value, &s); err != nil {
			return fmt.Errorf("value: decode date: %w", err)
		}
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return fmt.Errorf("value: parse date: %w", err)
		}
		*v = Date(t)
	case KindDuration:
		var d Duration
		if err := json.Unmarshal(env.Value, &d); err != nil {
			return fmt.Errorf("value: decode duration: %w", err)
		}
		*v = DurationValue(d.Amount, d.Unit)
	case KindMoney:
		var m struct {
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
		}
		if err := json.Unmarshal(env.Value, &m); err != nil {
			return fmt.Errorf("value: decode money: %w", err)
		}
		*v = MoneyValue(m.Amount, m.Currency)
	case KindList:
		var items []Value
		if err := json.Unmarshal(env.Value, &items); err != nil {
			return fmt.Errorf("value: decode list: %w", err)
		}
		*v = List(items...)
	case KindMap:
		var m map[string]Value
		if err := json.Unmarshal(env.Value, &m); err != nil {
			return fmt.Errorf("value: decode map: %w", err)
		}
		*v = Map(m)
	default:
		return fmt.Errorf("value: unknown kind %q", env.Kind)
	}
	return nil
}
