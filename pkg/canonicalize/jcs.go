// Package canonicalize implements RFC 8785 (JSON Canonicalization Scheme)
// serialization so that two conforming implementations of the engine
// produce byte-identical output for the same logical value, which is the
// foundation for statute hashing, audit-record chaining, and evaluator
// determinism.
package canonicalize

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// JCS returns the RFC 8785 canonical JSON representation of v.
//
// v is first marshaled with the standard library (so struct tags and
// custom MarshalJSON methods are respected), then decoded into a generic
// tree and re-encoded with sorted object keys, HTML escaping disabled,
// and json.Number preserved so integers and floats round-trip exactly.
func JCS(v interface{}) ([]byte, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: marshal failed: %w", err)
	}

	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(intermediate))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonicalize: intermediate decode failed: %w", err)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Hash returns the SHA-256 hex digest of the canonical JSON form of v,
// prefixed with "sha256:" so the algorithm is explicit in stored records.
func Hash(v interface{}) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes computes the SHA-256 hex digest of raw bytes, "sha256:"-prefixed.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func writeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case json.Number:
		buf.WriteString(t.String())
		return nil
	case string:
		return writeCanonicalString(buf, t)
	case []interface{}:
		buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		// Shouldn't happen given UseNumber(), but stay total rather than panic.
		enc, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("canonicalize: unsupported value %T: %w", v, err)
		}
		buf.Write(enc)
		return nil
	}
}

func writeCanonicalString(buf *bytes.Buffer, s string) error {
	var inner bytes.Buffer
	enc := json.NewEncoder(&inner)
	enc.SetEscapeHTML(false) // RFC 8785 forbids HTML escaping
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("canonicalize: string encode failed: %w", err)
	}
	buf.Write(bytes.TrimSuffix(inner.Bytes(), []byte{'\n'}))
	return nil
}
