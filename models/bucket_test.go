package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeValueFloat(t *testing.T) {
	f := 42.5
	v, err := DecodeValue(&f, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != ValueKindDouble || v.Double != 42.5 {
		t.Errorf("expected double 42.5, got %+v", v)
	}
}

func TestDecodeValueJSON(t *testing.T) {
	v, err := DecodeValue(nil, []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != ValueKindJSON || string(v.JSON) != `{"a":1}` {
		t.Errorf("expected json document, got %+v", v)
	}
}

func TestDecodeValueFloatWinsOverJSON(t *testing.T) {
	f := 1.0
	v, err := DecodeValue(&f, []byte(`"stale"`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != ValueKindDouble {
		t.Errorf("expected double to win, got %+v", v)
	}
}

func TestDecodeValueCorruptRow(t *testing.T) {
	v, err := DecodeValue(nil, nil)
	if !errors.Is(err, ErrCorruptEntry) {
		t.Fatalf("expected ErrCorruptEntry, got %v", err)
	}
	if v.Kind != ValueKindJSON || string(v.JSON) != "null" {
		t.Errorf("expected json null fallback, got %+v", v)
	}
}

func TestValueIsZero(t *testing.T) {
	if !(Value{}).IsZero() {
		t.Error("empty value should be zero")
	}
	if JSONValue(json.RawMessage("null")).IsZero() {
		t.Error("json null is a real value, not zero")
	}
	if DoubleValue(0).IsZero() {
		t.Error("double 0 is a real value, not zero")
	}
}

func TestSortOrderValid(t *testing.T) {
	if !OrderAscending.Valid() || !OrderDescending.Valid() {
		t.Error("known orders should validate")
	}
	if SortOrder("sideways").Valid() {
		t.Error("unknown order should not validate")
	}
}
