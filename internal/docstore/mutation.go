package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Op is a field mutation kind.
type Op int

const (
	OpSet Op = iota
	OpArrayUnion
	OpArrayRemove
)

func (o Op) String() string {
	switch o {
	case OpSet:
		return "set"
	case OpArrayUnion:
		return "arrayUnion"
	case OpArrayRemove:
		return "arrayRemove"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Mutation changes one top-level field of a document.
type Mutation struct {
	Field  string
	Op     Op
	Values []any
}

// SetField replaces field with value.
func SetField(field string, value any) Mutation {
	return Mutation{Field: field, Op: OpSet, Values: []any{value}}
}

// ArrayUnion appends each value not already present in the array field.
// A missing field is treated as an empty array.
func ArrayUnion(field string, values ...any) Mutation {
	return Mutation{Field: field, Op: OpArrayUnion, Values: values}
}

// ArrayRemove removes every element equal to any of values.
func ArrayRemove(field string, values ...any) Mutation {
	return Mutation{Field: field, Op: OpArrayRemove, Values: values}
}

// Apply returns doc with mutations applied in order. Array elements are
// compared by canonical JSON (object keys sorted), so a struct and a map
// holding the same fields are equal.
func Apply(doc json.RawMessage, mutations ...Mutation) (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(doc)) > 0 {
		if err := json.Unmarshal(doc, &fields); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
	}

	for _, m := range mutations {
		if m.Field == "" {
			return nil, fmt.Errorf("%s: empty field name", m.Op)
		}
		switch m.Op {
		case OpSet:
			if len(m.Values) != 1 {
				return nil, fmt.Errorf("set %s: want exactly one value", m.Field)
			}
			raw, err := encode(m.Values[0])
			if err != nil {
				return nil, fmt.Errorf("set %s: %w", m.Field, err)
			}
			fields[m.Field] = raw

		case OpArrayUnion, OpArrayRemove:
			arr, err := decodeArray(fields[m.Field])
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", m.Op, m.Field, err)
			}
			if m.Op == OpArrayUnion {
				arr, err = union(arr, m.Values)
			} else {
				arr, err = remove(arr, m.Values)
			}
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", m.Op, m.Field, err)
			}
			raw, err := json.Marshal(arr)
			if err != nil {
				return nil, err
			}
			fields[m.Field] = raw

		default:
			return nil, fmt.Errorf("unknown op %s", m.Op)
		}
	}

	return json.Marshal(fields)
}

func decodeArray(raw json.RawMessage) ([]json.RawMessage, error) {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return []json.RawMessage{}, nil
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, fmt.Errorf("field is not an array: %w", err)
	}
	return arr, nil
}

func union(arr []json.RawMessage, values []any) ([]json.RawMessage, error) {
	seen := make(map[string]struct{}, len(arr))
	for _, el := range arr {
		key, err := canonical(el)
		if err != nil {
			return nil, err
		}
		seen[key] = struct{}{}
	}
	for _, v := range values {
		raw, err := encode(v)
		if err != nil {
			return nil, err
		}
		key, err := canonical(raw)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		arr = append(arr, raw)
	}
	return arr, nil
}

func remove(arr []json.RawMessage, values []any) ([]json.RawMessage, error) {
	drop := make(map[string]struct{}, len(values))
	for _, v := range values {
		raw, err := encode(v)
		if err != nil {
			return nil, err
		}
		key, err := canonical(raw)
		if err != nil {
			return nil, err
		}
		drop[key] = struct{}{}
	}
	out := arr[:0]
	for _, el := range arr {
		key, err := canonical(el)
		if err != nil {
			return nil, err
		}
		if _, ok := drop[key]; !ok {
			out = append(out, el)
		}
	}
	return out, nil
}

// canonical re-encodes raw with sorted object keys and untouched number
// literals.
func canonical(raw json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// fieldEquals reports whether doc's top-level field equals value.
func fieldEquals(doc json.RawMessage, field string, value any) (bool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return false, err
	}
	got, ok := fields[field]
	if !ok {
		return false, nil
	}
	want, err := encode(value)
	if err != nil {
		return false, err
	}
	a, err := canonical(got)
	if err != nil {
		return false, err
	}
	b, err := canonical(want)
	if err != nil {
		return false, err
	}
	return a == b, nil
}
