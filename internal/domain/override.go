package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type OverrideOp int

const (
	// OverrideUnchanged leaves the field as it was.
	OverrideUnchanged OverrideOp = iota
	// OverrideClear resets the field to null/zero.
	OverrideClear
	// OverrideSet replaces the field with the supplied value.
	OverrideSet
)

// OverrideValue is a manual input for one field: unchanged, clear, or set.
type OverrideValue struct {
	Op   OverrideOp
	Text string
}

// Set returns an override that sets a numeric field.
func Set(v float64) OverrideValue {
	return OverrideValue{Op: OverrideSet, Text: strconv.FormatFloat(v, 'f', -1, 64)}
}

// SetText returns an override that sets a text field.
func SetText(s string) OverrideValue {
	return OverrideValue{Op: OverrideSet, Text: s}
}

// Clear returns an override that resets a field.
func Clear() OverrideValue {
	return OverrideValue{Op: OverrideClear}
}

// Float parses the set value as a number.
func (v OverrideValue) Float() (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v.Text), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrValidation, v.Text)
	}
	return f, nil
}

// ApplyFloat returns the new value of a nullable numeric field.
func (v OverrideValue) ApplyFloat(current *float64) (*float64, error) {
	switch v.Op {
	case OverrideClear:
		return nil, nil
	case OverrideSet:
		f, err := v.Float()
		if err != nil {
			return current, err
		}
		return &f, nil
	}
	return current, nil
}

// ApplyText returns the new value of a text field.
func (v OverrideValue) ApplyText(current string) string {
	switch v.Op {
	case OverrideClear:
		return ""
	case OverrideSet:
		return strings.TrimSpace(v.Text)
	}
	return current
}

func (v OverrideValue) MarshalJSON() ([]byte, error) {
	switch v.Op {
	case OverrideClear:
		return []byte("null"), nil
	case OverrideSet:
		return json.Marshal(v.Text)
	}
	return nil, fmt.Errorf("unchanged override has no JSON form")
}

// ManualOverride is a sparse set of field changes for one row. A field
// absent from Fields is unchanged; JSON null clears it.
type ManualOverride struct {
	RowID  string                   `json:"row_id"`
	Fields map[string]OverrideValue `json:"fields"`
}

func (m *ManualOverride) UnmarshalJSON(data []byte) error {
	var raw struct {
		RowID  string                     `json:"row_id"`
		Fields map[string]json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.RowID = raw.RowID
	m.Fields = make(map[string]OverrideValue, len(raw.Fields))
	for name, msg := range raw.Fields {
		msg = bytes.TrimSpace(msg)
		switch {
		case bytes.Equal(msg, []byte("null")):
			m.Fields[name] = Clear()
		case len(msg) > 0 && msg[0] == '"':
			var s string
			if err := json.Unmarshal(msg, &s); err != nil {
				return fmt.Errorf("field %s: %w", name, err)
			}
			m.Fields[name] = SetText(s)
		default:
			var n json.Number
			if err := json.Unmarshal(msg, &n); err != nil {
				return fmt.Errorf("field %s: %w", name, err)
			}
			m.Fields[name] = SetText(n.String())
		}
	}
	return nil
}
