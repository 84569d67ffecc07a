package model

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindInt64
	KindFloat64
	KindText
	KindBytes
	KindJSON
	KindArray
)

// Value is the tagged sum every driver converts its native result types
// into before a row crosses back to the caller. Only one of the typed
// fields is meaningful, selected by Kind.
type Value struct {
	Kind  ValueKind
	Bool  bool
	Int   int64
	Float float64
	Text  string
	Bytes []byte
	JSON  any   // decoded JSON document (map[string]any, []any, or scalar)
	Array []Value
}

func NullValue() Value                { return Value{Kind: KindNull} }
func BoolValue(b bool) Value           { return Value{Kind: KindBool, Bool: b} }
func IntValue(i int64) Value           { return Value{Kind: KindInt64, Int: i} }
func FloatValue(f float64) Value       { return Value{Kind: KindFloat64, Float: f} }
func TextValue(s string) Value         { return Value{Kind: KindText, Text: s} }
func BytesValue(b []byte) Value        { return Value{Kind: KindBytes, Bytes: b} }
func JSONValue(v any) Value            { return Value{Kind: KindJSON, JSON: v} }
func ArrayValue(vs []Value) Value      { return Value{Kind: KindArray, Array: vs} }

func (v Value) IsNull() bool { return v.Kind == KindNull }

// valueWire is the externally-tagged JSON form of Value, following the
// same {"Variant": payload} convention as SshAuth: exactly one field is
// ever populated, selected by Kind. Bytes travels as standard base64
// per the external boundary contract.
type valueWire struct {
	Null   *struct{} `json:"Null,omitempty"`
	Bool   *bool     `json:"Bool,omitempty"`
	Int64  *int64    `json:"Int64,omitempty"`
	Float64 *float64 `json:"Float64,omitempty"`
	Text   *string   `json:"Text,omitempty"`
	Bytes  *string   `json:"Bytes,omitempty"`
	Json   *any      `json:"Json,omitempty"`
	Array  *[]Value  `json:"Array,omitempty"`
}

// MarshalJSON renders Value in its externally-tagged wire form, base64
// encoding Bytes so no raw binary ever crosses the external boundary.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return json.Marshal(valueWire{Null: &struct{}{}})
	case KindBool:
		return json.Marshal(valueWire{Bool: &v.Bool})
	case KindInt64:
		return json.Marshal(valueWire{Int64: &v.Int})
	case KindFloat64:
		return json.Marshal(valueWire{Float64: &v.Float})
	case KindText:
		return json.Marshal(valueWire{Text: &v.Text})
	case KindBytes:
		encoded := base64.StdEncoding.EncodeToString(v.Bytes)
		return json.Marshal(valueWire{Bytes: &encoded})
	case KindJSON:
		return json.Marshal(valueWire{Json: &v.JSON})
	case KindArray:
		arr := v.Array
		if arr == nil {
			arr = []Value{}
		}
		return json.Marshal(valueWire{Array: &arr})
	default:
		return nil, fmt.Errorf("model: unknown value kind %d", v.Kind)
	}
}

// UnmarshalJSON accepts the externally-tagged wire form produced by
// MarshalJSON, rejecting a payload that names more than one variant.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w valueWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	named := 0
	for _, present := range []bool{w.Null != nil, w.Bool != nil, w.Int64 != nil, w.Float64 != nil, w.Text != nil, w.Bytes != nil, w.Json != nil, w.Array != nil} {
		if present {
			named++
		}
	}
	if named > 1 {
		return fmt.Errorf("model: Value payload names more than one variant")
	}
	switch {
	case w.Null != nil:
		*v = NullValue()
	case w.Bool != nil:
		*v = BoolValue(*w.Bool)
	case w.Int64 != nil:
		*v = IntValue(*w.Int64)
	case w.Float64 != nil:
		*v = FloatValue(*w.Float64)
	case w.Text != nil:
		*v = TextValue(*w.Text)
	case w.Bytes != nil:
		b, err := base64.StdEncoding.DecodeString(*w.Bytes)
		if err != nil {
			return fmt.Errorf("model: invalid base64 in Value.Bytes: %w", err)
		}
		*v = BytesValue(b)
	case w.Json != nil:
		*v = JSONValue(*w.Json)
	case w.Array != nil:
		*v = ArrayValue(*w.Array)
	default:
		*v = NullValue()
	}
	return nil
}

// Row is a positional result row, ordered to match QueryResult.Columns.
type Row []Value

// RowData maps column name to Value for mutation operations. The SQL
// column list generated from RowData is always sorted by column name so
// that SQL generation is deterministic.
type RowData map[string]Value

// SortedColumns returns the column names of d in deterministic sorted
// order — the order every mutation's generated column list and bind-value
// list follows.
func (d RowData) SortedColumns() []string {
	cols := make([]string, 0, len(d))
	for c := range d {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Column describes one result or schema column.
type Column struct {
	Name     string
	DataType string // engine-reported type tag, e.g. "int4", "varchar", "bool"
	Nullable bool
}

// QueryResult is the uniform shape returned by execute, regardless of
// engine.
type QueryResult struct {
	Columns       []Column
	Rows          []Row
	AffectedCount *int64 // set for mutations; nil for row-returning queries
	DurationMs    int64
}

// SchemaColumn extends Column with the introspection fields describe_table
// needs.
type SchemaColumn struct {
	Column
	Default      *string
	IsPrimaryKey bool
}

// TableSchema is the result of describe_table.
type TableSchema struct {
	Columns       []SchemaColumn
	PrimaryKey    []string // ordered, nil if the table has none
	RowCountEstimate *int64
}
