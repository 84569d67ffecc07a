package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestValueJSONRoundTrip(t *testing.T) {
	cases := []Value{
		NullValue(),
		BoolValue(true),
		IntValue(-42),
		FloatValue(3.25),
		TextValue("hello"),
		BytesValue([]byte{0x01, 0x02, 0xff}),
		JSONValue(map[string]any{"a": float64(1)}),
		ArrayValue([]Value{IntValue(1), TextValue("x")}),
	}
	for _, v := range cases {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("Marshal(%#v) error: %v", v, err)
		}
		var got Value
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal(%s) error: %v", data, err)
		}
		if !reflect.DeepEqual(v, got) {
			t.Errorf("round trip mismatch: sent %#v, got %#v (wire: %s)", v, got, data)
		}
	}
}

func TestValueBytesAreBase64OnWire(t *testing.T) {
	v := BytesValue([]byte("hi"))
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var wire map[string]string
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if wire["Bytes"] != "aGk=" {
		t.Fatalf("Bytes wire form = %q, want base64 \"aGk=\"", wire["Bytes"])
	}
}

func TestValueNullIsExternallyTagged(t *testing.T) {
	data, err := json.Marshal(NullValue())
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var wire map[string]any
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if _, ok := wire["Null"]; !ok {
		t.Fatalf("expected a \"Null\" tag in wire form, got %s", data)
	}
	if len(wire) != 1 {
		t.Fatalf("expected exactly one variant tag, got %s", data)
	}
}

func TestRowDataSortedColumnsIsDeterministic(t *testing.T) {
	d := RowData{
		"zeta":  IntValue(1),
		"alpha": IntValue(2),
		"mid":   IntValue(3),
	}
	want := []string{"alpha", "mid", "zeta"}
	got := d.SortedColumns()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SortedColumns() = %v, want %v", got, want)
	}
}

func TestValueIsNull(t *testing.T) {
	if !NullValue().IsNull() {
		t.Fatal("NullValue().IsNull() should be true")
	}
	if IntValue(0).IsNull() {
		t.Fatal("IntValue(0).IsNull() should be false")
	}
}
