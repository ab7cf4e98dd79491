package store

import (
	"database/sql/driver"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// CommaList stores a small string slice as a single comma-joined column,
// the same shortcut the teacher's backend/csv_parser.go takes for
// delimiter-joined fields instead of a join table.
type CommaList []string

func (l CommaList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "", nil
	}
	return strings.Join(l, ","), nil
}

func (l *CommaList) Scan(v interface{}) error {
	if v == nil {
		*l = nil
		return nil
	}
	s, ok := v.(string)
	if !ok {
		b, ok := v.([]byte)
		if !ok {
			return errors.Errorf("store: cannot scan %T into CommaList", v)
		}
		s = string(b)
	}
	if s == "" {
		*l = nil
		return nil
	}
	*l = strings.Split(s, ",")
	return nil
}

// JSONMap stores an arbitrary string-keyed map as a JSON column.
type JSONMap map[string]float64

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func (m *JSONMap) Scan(v interface{}) error {
	if v == nil {
		*m = nil
		return nil
	}
	var b []byte
	switch t := v.(type) {
	case []byte:
		b = t
	case string:
		b = []byte(t)
	default:
		return errors.Errorf("store: cannot scan %T into JSONMap", v)
	}
	if len(b) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(b, m)
}

// JSONIntSlice stores a small int slice as a JSON array column.
type JSONIntSlice []int

func (s JSONIntSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]int(s))
	return string(b), err
}

func (s *JSONIntSlice) Scan(v interface{}) error {
	if v == nil {
		*s = nil
		return nil
	}
	var b []byte
	switch t := v.(type) {
	case []byte:
		b = t
	case string:
		b = []byte(t)
	default:
		return errors.Errorf("store: cannot scan %T into JSONIntSlice", v)
	}
	if len(b) == 0 {
		*s = nil
		return nil
	}
	return json.Unmarshal(b, (*[]int)(s))
}

// JSONRaw stores an opaque JSON document, used for the rules engine's
// tagged-union condition/action lists which are validated by the rules
// package rather than by the store.
type JSONRaw []byte

func (r JSONRaw) Value() (driver.Value, error) {
	if len(r) == 0 {
		return "{}", nil
	}
	return string(r), nil
}

func (r *JSONRaw) Scan(v interface{}) error {
	if v == nil {
		*r = nil
		return nil
	}
	switch t := v.(type) {
	case []byte:
		*r = append(JSONRaw(nil), t...)
	case string:
		*r = JSONRaw(t)
	default:
		return errors.Errorf("store: cannot scan %T into JSONRaw", v)
	}
	return nil
}

func (r JSONRaw) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

func (r *JSONRaw) UnmarshalJSON(data []byte) error {
	*r = append((*r)[0:0], data...)
	return nil
}
