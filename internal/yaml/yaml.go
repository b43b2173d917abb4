// Package yaml holds the YAML conventions shared by every state file: a
// canonical two-space encoding, and a generic decoder that never reinterprets
// scalars the way plain map decoding would.
package yaml

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

const timestampTag = "!!timestamp"

// Marshal encodes v using two-space indentation. The output is deterministic
// for structs and for maps, whose keys are sorted.
func Marshal(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := yaml.NewEncoder(buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("error marshaling YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("error marshaling YAML: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a single YAML document into a generic value built from
// map[string]any, []any and scalars. Unlike decoding straight into an any,
// timestamps are kept as the strings they were written as, so that values
// survive a load and write cycle unchanged. An empty document decodes to
// nil.
func Unmarshal(data []byte) (any, error) {
	doc := &yaml.Node{}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, nil
	}
	return nodeValue(doc.Content[0])
}

// UnmarshalMap is like Unmarshal but requires the document to be a mapping.
// An empty document yields an empty map.
func UnmarshalMap(data []byte) (map[string]any, error) {
	v, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return map[string]any{}, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a mapping, got %T", v)
	}
	return m, nil
}

// Convert re-encodes in and decodes the result into out. It is used to move
// between the generic representation used for merging and typed structs.
func Convert(in any, out any) error {
	data, err := yaml.Marshal(in)
	if err != nil {
		return fmt.Errorf("error marshaling YAML: %w", err)
	}
	if err = yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("error unmarshaling YAML: %w", err)
	}
	return nil
}

// ToMap converts a typed value into its generic mapping representation.
func ToMap(in any) (map[string]any, error) {
	data, err := yaml.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("error marshaling YAML: %w", err)
	}
	return UnmarshalMap(data)
}

func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return nodeValue(n.Content[0])
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			var key string
			if err := n.Content[i].Decode(&key); err != nil {
				return nil, fmt.Errorf("line %d: non-string key: %w", n.Content[i].Line, err)
			}
			v, err := nodeValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m[key] = v
		}
		return m, nil
	case yaml.SequenceNode:
		s := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeValue(c)
			if err != nil {
				return nil, err
			}
			s = append(s, v)
		}
		return s, nil
	default:
		if n.ShortTag() == timestampTag {
			return n.Value, nil
		}
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	}
}
