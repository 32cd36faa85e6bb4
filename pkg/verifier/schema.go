package verifier

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/legalis-go/core/pkg/value"
)

// EntitySchema is the optional caller-supplied description of what
// attributes and regions a rule set is allowed to reference (spec §4.5
// "dangling references... in the caller-provided schema, if supplied").
// Without one, the Verifier falls back to inferring attribute kinds
// from usage consensus across the rule set and skips dangling-reference
// checks entirely.
type EntitySchema struct {
	Attributes map[string]value.Kind
	Regions    map[string]bool
}

var jsonSchemaTypeToKind = map[string]value.Kind{
	"integer": value.KindInteger,
	"number":  value.KindFloat,
	"boolean": value.KindBoolean,
	"string":  value.KindText,
	"object":  value.KindMap,
	"array":   value.KindList,
}

// FromJSONSchema builds an EntitySchema from a JSON Schema document's
// top-level "properties" object, mapping each property's declared JSON
// type to the nearest AttributeValue kind. Regions are not expressible
// in a generic JSON Schema document, so Regions is left nil and region
// dangling-reference checks are skipped unless a caller populates that
// field directly.
//
// Grounded on the teacher's firewall compile-then-introspect pattern
// (pkg/firewall/firewall.go AllowTool): compile with jsonschema.Draft2020
// and read the compiled Schema's own Properties map rather than
// re-parsing the raw document.
func FromJSONSchema(doc []byte) (*EntitySchema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	const url = "https://legalis.local/verifier/entity.schema.json"
	if err := compiler.AddResource(url, strings.NewReader(string(doc))); err != nil {
		return nil, fmt.Errorf("verifier: loading entity schema: %w", err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("verifier: compiling entity schema: %w", err)
	}

	schema := &EntitySchema{Attributes: make(map[string]value.Kind)}
	for name, prop := range compiled.Properties {
		if len(prop.Types) == 0 {
			continue
		}
		if kind, ok := jsonSchemaTypeToKind[prop.Types[0]]; ok {
			schema.Attributes[name] = kind
		}
	}
	return schema, nil
}
