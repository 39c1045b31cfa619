package httpapi

import (
	"bytes"
	"encoding/json"
)

// FieldValue is one entry in a part detail's "fields" object.
type FieldValue struct {
	Value   string
	Visible *string // nil => omit "visible" entirely; else "False"
}

func (v FieldValue) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	buf.WriteString(`"value":`)
	valueJSON, err := json.Marshal(v.Value)
	if err != nil {
		return nil, err
	}
	buf.Write(valueJSON)
	if v.Visible != nil {
		buf.WriteString(`,"visible":`)
		visibleJSON, err := json.Marshal(*v.Visible)
		if err != nil {
			return nil, err
		}
		buf.Write(visibleJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FieldsMap is an ordered mapping of display name to FieldValue. Clients
// rely on stable field order, so it marshals as a JSON object in
// insertion order rather than through a plain Go map.
type FieldsMap struct {
	keys   []string
	values map[string]FieldValue
}

func NewFieldsMap() *FieldsMap {
	return &FieldsMap{values: make(map[string]FieldValue)}
}

func (f *FieldsMap) Set(displayName string, v FieldValue) {
	if _, ok := f.values[displayName]; !ok {
		f.keys = append(f.keys, displayName)
	}
	f.values[displayName] = v
}

func (f *FieldsMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range f.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		valJSON, err := json.Marshal(f.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(valJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
