package store

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Entity is a keyed record inside a collection of the document. Values are
// JSON-shaped: string, float64 or int, bool, nil, []string, []any, Entity,
// []Entity or map[string]any.
type Entity map[string]any

// Document is the root of the configuration graph. Each property is either a
// collection ([]Entity) or a singleton object entity (Entity).
type Document map[string]any

// Str returns the string value of field, or "" when absent or not a string.
func (e Entity) Str(field string) string {
	if e == nil {
		return ""
	}
	s, _ := e[field].(string)
	return s
}

// Strings returns field as a string list. Non-string members are skipped.
func (e Entity) Strings(field string) []string {
	if e == nil {
		return nil
	}
	list, _ := asStrings(e[field])
	return list
}

// Bool returns the boolean value of field.
func (e Entity) Bool(field string) bool {
	if e == nil {
		return false
	}
	b, _ := e[field].(bool)
	return b
}

// IsNull reports whether field is absent, nil or the empty string.
func (e Entity) IsNull(field string) bool {
	if e == nil {
		return true
	}
	v, ok := e[field]
	if !ok || v == nil {
		return true
	}
	if s, isStr := v.(string); isStr && s == "" {
		return true
	}
	return false
}

// Entities returns the nested collection stored under field. The returned
// records alias the live document.
func (e Entity) Entities(field string) []Entity {
	if e == nil {
		return nil
	}
	list, _ := asEntities(e[field])
	return list
}

// Clone returns a deep copy of the entity.
func (e Entity) Clone() Entity {
	if e == nil {
		return nil
	}
	return cloneValue(map[string]any(e)).(Entity)
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return Document(cloneValue(map[string]any(d)).(Entity))
}

// JSON encodes the document. Map keys are sorted by encoding/json, so two
// equal documents always produce identical bytes.
func (d Document) JSON() ([]byte, error) {
	return json.Marshal(d)
}

// Keys returns the sorted property names of the document.
func (d Document) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DecodeDocument parses a JSON document.
func DecodeDocument(data []byte) (Document, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, newError(ErrorClassIngest, ErrCodeDecode, "failed to decode document", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return Document(raw), nil
}

// asEntity coerces an object-shaped value to Entity without copying.
func asEntity(v any) (Entity, bool) {
	switch val := v.(type) {
	case Entity:
		return val, val != nil
	case map[string]any:
		return Entity(val), val != nil
	case Document:
		return Entity(val), val != nil
	default:
		return nil, false
	}
}

// asEntities coerces a list of objects to []Entity. The records themselves
// are not copied, so edits through the result reach the document. The second
// return value is false when v is not a list at all; non-object members of a
// list are dropped.
func asEntities(v any) ([]Entity, bool) {
	switch val := v.(type) {
	case []Entity:
		if isEntityList(val) {
			return val, true
		}
		out := make([]Entity, 0, len(val))
		for _, e := range val {
			if e != nil {
				out = append(out, e)
			}
		}
		return out, true
	case []map[string]any:
		out := make([]Entity, 0, len(val))
		for _, m := range val {
			if m != nil {
				out = append(out, Entity(m))
			}
		}
		return out, true
	case []any:
		out := make([]Entity, 0, len(val))
		for _, item := range val {
			if e, ok := asEntity(item); ok {
				out = append(out, e)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

// isEntityList reports whether v is already a well-formed []Entity.
func isEntityList(v any) bool {
	list, ok := v.([]Entity)
	if !ok {
		return false
	}
	for _, e := range list {
		if e == nil {
			return false
		}
	}
	return true
}

// asStrings coerces a list of strings. The second return value is false when
// v is not a list.
func asStrings(v any) ([]string, bool) {
	switch val := v.(type) {
	case []string:
		return val, true
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

// keyString renders a key value for comparison. Keys are usually strings but
// legacy documents sometimes carry numbers.
func keyString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case nil:
		return "", false
	case float64, int, int64, bool:
		return fmt.Sprint(val), true
	default:
		return "", false
	}
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Entity:
		if val == nil {
			return Entity(nil)
		}
		out := make(Entity, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case map[string]any:
		if val == nil {
			return map[string]any(nil)
		}
		out := make(Entity, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case Document:
		out := make(Entity, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []Entity:
		if val == nil {
			return []Entity(nil)
		}
		out := make([]Entity, len(val))
		for i, item := range val {
			out[i] = cloneValue(item).(Entity)
		}
		return out
	case []any:
		if val == nil {
			return []any(nil)
		}
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		if val == nil {
			return []string(nil)
		}
		out := make([]string, len(val))
		copy(out, val)
		return out
	default:
		return val
	}
}
