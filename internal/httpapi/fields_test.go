package httpapi

import (
	"encoding/json"
	"testing"
)

func TestFieldValueOmitsVisibleWhenNil(t *testing.T) {
	t.Parallel()
	data, err := json.Marshal(FieldValue{Value: "10K"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if got := string(data); got != `{"value":"10K"}` {
		t.Errorf("got %s, want {\"value\":\"10K\"}", got)
	}
}

func TestFieldValueIncludesVisibleFalse(t *testing.T) {
	t.Parallel()
	hidden := "False"
	data, err := json.Marshal(FieldValue{Value: "10K", Visible: &hidden})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if got := string(data); got != `{"value":"10K","visible":"False"}` {
		t.Errorf("got %s, want {\"value\":\"10K\",\"visible\":\"False\"}", got)
	}
}

func TestFieldsMapPreservesInsertionOrder(t *testing.T) {
	t.Parallel()
	fields := NewFieldsMap()
	fields.Set("Zeta", FieldValue{Value: "1"})
	fields.Set("Alpha", FieldValue{Value: "2"})
	fields.Set("Zeta", FieldValue{Value: "3"})

	data, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"Zeta":{"value":"3"},"Alpha":{"value":"2"}}`
	if got := string(data); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}
