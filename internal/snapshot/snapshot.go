// Package snapshot reads resource snapshots from JSON or YAML documents.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"oswl-go/internal/oswl"
)

// Format is an input document format.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// FormatFromPath picks the format from a file extension. Anything that is
// not .yaml or .yml is read as JSON, including stdin ("-" or "").
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	default:
		return JSON
	}
}

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case JSON:
		return JSON, nil
	case YAML, "yml":
		return YAML, nil
	default:
		return "", fmt.Errorf("unknown snapshot format %q (want json or yaml)", s)
	}
}

// Load decodes a snapshot, a top-level array of resource objects, from r.
// JSON numbers are kept as json.Number. YAML documents are normalized to
// the same JSON data model.
func Load(r io.Reader, format Format) (oswl.Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	switch format {
	case JSON:
		return decodeJSON(data)
	case YAML:
		return decodeYAML(data)
	default:
		return nil, fmt.Errorf("unknown snapshot format %q", format)
	}
}

func decodeJSON(data []byte) (oswl.Snapshot, error) {
	var s oswl.Snapshot
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding json snapshot: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("decoding json snapshot: trailing data after array")
	}
	return orEmpty(s), nil
}

func decodeYAML(data []byte) (oswl.Snapshot, error) {
	var raw []any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding yaml snapshot: %w", err)
	}

	s := make(oswl.Snapshot, len(raw))
	for i, item := range raw {
		if item == nil {
			continue
		}
		m, ok := normalize(item).(map[string]any)
		if !ok {
			return nil, fmt.Errorf("decoding yaml snapshot: item %d is not a mapping", i)
		}
		s[i] = oswl.Resource(m)
	}
	return s, nil
}

// normalize converts YAML-decoded values into JSON-compatible ones: mapping
// keys become strings.
func normalize(v any) any {
	switch v := v.(type) {
	case map[string]any:
		for k, e := range v {
			v[k] = normalize(e)
		}
		return v
	case map[any]any:
		m := make(map[string]any, len(v))
		for k, e := range v {
			m[fmt.Sprint(k)] = normalize(e)
		}
		return m
	case []any:
		for i, e := range v {
			v[i] = normalize(e)
		}
		return v
	default:
		return v
	}
}

func orEmpty(s oswl.Snapshot) oswl.Snapshot {
	if s == nil {
		return oswl.Snapshot{}
	}
	return s
}
