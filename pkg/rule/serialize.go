package rule

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/legalis-go/core/pkg/value"
)

// CurrentSchemaVersion is the schema_version a writer stamps on every
// statute document (spec §6.1). Readers reject any higher major version.
const CurrentSchemaVersion = 1

// wireCondition mirrors Condition's tagged-union shape for JSON, omitting
// fields that don't apply to the node's kind.
type wireCondition struct {
	Kind ConditionKind `json:"kind"`

	Attribute string      `json:"attribute,omitempty"`
	Op        value.Op    `json:"op,omitempty"`
	Literal   *value.Value `json:"literal,omitempty"`

	Children []wireCondition `json:"children,omitempty"`

	Start *value.Value `json:"start,omitempty"`
	End   *value.Value `json:"end,omitempty"`

	RelationshipKind string         `json:"relationship_kind,omitempty"`
	Sub              *wireCondition `json:"sub,omitempty"`

	Expr string `json:"expr,omitempty"`
}

func toWireCondition(c Condition) wireCondition {
	w := wireCondition{Kind: c.Kind}
	switch c.Kind {
	case KindLeaf:
		w.Attribute = c.Attribute
		w.Op = c.Op
		lit := c.Literal
		w.Literal = &lit
	case KindAnd, KindOr, KindNot:
		w.Children = make([]wireCondition, len(c.Children))
		for i, child := range c.Children {
			w.Children[i] = toWireCondition(child)
		}
	case KindBetween:
		start, end := c.Start, c.End
		w.Start = &start
		w.End = &end
	case KindAfter, KindBefore:
		start := c.Start
		w.Start = &start
	case KindExists:
		w.RelationshipKind = c.RelationshipKind
		if c.Sub != nil {
			sub := toWireCondition(*c.Sub)
			w.Sub = &sub
		}
	case KindExpr:
		w.Expr = c.Expr
	}
	return w
}

func fromWireCondition(w wireCondition) (Condition, error) {
	c := Condition{Kind: w.Kind}
	switch w.Kind {
	case KindLeaf:
		if w.Literal == nil {
			return Condition{}, fmt.Errorf("rule: leaf condition missing literal")
		}
		c.Attribute = w.Attribute
		c.Op = w.Op
		c.Literal = *w.Literal
	case KindAnd, KindOr, KindNot:
		c.Children = make([]Condition, len(w.Children))
		for i, wc := range w.Children {
			child, err := fromWireCondition(wc)
			if err != nil {
				return Condition{}, err
			}
			c.Children[i] = child
		}
	case KindBetween:
		if w.Start == nil || w.End == nil {
			return Condition{}, fmt.Errorf("rule: between condition missing start/end")
		}
		c.Start = *w.Start
		c.End = *w.End
	case KindAfter, KindBefore:
		if w.Start == nil {
			return Condition{}, fmt.Errorf("rule: %s condition missing start", w.Kind)
		}
		c.Start = *w.Start
	case KindExists:
		c.RelationshipKind = w.RelationshipKind
		if w.Sub != nil {
			sub, err := fromWireCondition(*w.Sub)
			if err != nil {
				return Condition{}, err
			}
			c.Sub = &sub
		}
	case KindExpr:
		c.Expr = w.Expr
	default:
		return Condition{}, fmt.Errorf("rule: unknown condition kind %q", w.Kind)
	}
	return c, nil
}

func (c Condition) MarshalJSON() ([]byte, error) {
	return json.Marshal(toWireCondition(c))
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	var w wireCondition
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("rule: decode condition: %w", err)
	}
	parsed, err := fromWireCondition(w)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// wireEffect is Effect's wire shape; Value is omitted when Null since
// most effect kinds (Grant, Deny, Prohibit) carry no magnitude.
type wireEffect struct {
	Kind        EffectKind  `json:"kind"`
	Target      string      `json:"target"`
	Value       *value.Value `json:"value,omitempty"`
	Description string      `json:"description,omitempty"`
}

func (e Effect) MarshalJSON() ([]byte, error) {
	w := wireEffect{Kind: e.Kind, Target: e.Target, Description: e.Description}
	if e.Value.Kind != value.KindNull && e.Value.Kind != "" {
		v := e.Value
		w.Value = &v
	}
	return json.Marshal(w)
}

func (e *Effect) UnmarshalJSON(data []byte) error {
	var w wireEffect
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("rule: decode effect: %w", err)
	}
	e.Kind = w.Kind
	e.Target = w.Target
	e.Description = w.Description
	if w.Value != nil {
		e.Value = *w.Value
	} else {
		e.Value = value.Null()
	}
	return nil
}

// wireRegion and wireStatuteDocument give Statute its on-disk shape,
// wrapped with the schema_version spec §6.1 requires.
type wireRegion struct {
	Kind RegionKind `json:"kind"`
	ID   string     `json:"id,omitempty"`
}

type wireStatuteDocument struct {
	SchemaVersion int             `json:"schema_version"`
	ID            string          `json:"id"`
	Title         string          `json:"title,omitempty"`
	Body          string          `json:"body,omitempty"`
	Version       int             `json:"version"`
	RegionScope   []wireRegion    `json:"region_scope,omitempty"`
	EffectiveFrom time.Time       `json:"effective_from"`
	EffectiveUntil *time.Time     `json:"effective_until,omitempty"`
	Conditions    []Condition     `json:"conditions,omitempty"`
	Effects       []Effect        `json:"effects"`
	Precedence    int             `json:"precedence,omitempty"`
	Hierarchy     HierarchyTag    `json:"hierarchy,omitempty"`
}

// MarshalStatute encodes a Statute as a schema_version-stamped document
// (spec §6.1).
func MarshalStatute(s Statute) ([]byte, error) {
	doc := wireStatuteDocument{
		SchemaVersion:  CurrentSchemaVersion,
		ID:             s.ID,
		Title:          s.Title,
		Body:           s.Body,
		Version:        s.Version,
		EffectiveFrom:  s.EffectiveFrom.UTC(),
		EffectiveUntil: s.EffectiveUntil,
		Conditions:     s.Conditions,
		Effects:        s.Effects,
		Precedence:     s.Precedence,
		Hierarchy:      s.Hierarchy,
	}
	for _, r := range s.RegionScope {
		doc.RegionScope = append(doc.RegionScope, wireRegion{Kind: r.Kind, ID: r.ID})
	}
	return json.Marshal(doc)
}

// UnmarshalStatute decodes a statute document, rejecting any
// schema_version newer than this reader understands.
func UnmarshalStatute(data []byte) (Statute, error) {
	var doc wireStatuteDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return Statute{}, fmt.Errorf("rule: decode statute document: %w", err)
	}
	if doc.SchemaVersion > CurrentSchemaVersion {
		return Statute{}, fmt.Errorf("rule: statute document schema_version %d is newer than supported version %d", doc.SchemaVersion, CurrentSchemaVersion)
	}
	s := Statute{
		ID:             doc.ID,
		Title:          doc.Title,
		Body:           doc.Body,
		Version:        doc.Version,
		EffectiveFrom:  doc.EffectiveFrom.UTC(),
		EffectiveUntil: doc.EffectiveUntil,
		Conditions:     doc.Conditions,
		Effects:        doc.Effects,
		Precedence:     doc.Precedence,
		Hierarchy:      doc.Hierarchy,
	}
	for _, r := range doc.RegionScope {
		s.RegionScope = append(s.RegionScope, Region{Kind: r.Kind, ID: r.ID})
	}
	return s, nil
}
