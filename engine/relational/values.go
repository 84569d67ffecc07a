package relational

import (
	"encoding/json"
	"time"

	"github.com/oarkflow/convert"
	"github.com/qoredb/core/model"
)

// convertScanned turns whatever database/sql handed back for one column
// into a model.Value.
//
// The probing order below is a contract, not an accident: widest
// integers first, booleans only after integers
// (so a MySQL tinyint(1) is never misread as bool before a real
// smallint has a chance to match), floats next, arbitrary-precision
// decimals coerced to float64 after that, then text, then date/time
// normalized to RFC-3339, then []byte payloads: decoded as JSON when they
// hold valid JSON, kept as bytes otherwise. A binary column whose
// contents happen to be valid JSON therefore comes back as JSON, not
// bytes. Anything that falls through every typed probe becomes null
// rather than panicking.
func convertScanned(raw any) model.Value {
	if raw == nil {
		return model.NullValue()
	}

	switch v := raw.(type) {
	case int64:
		return model.IntValue(v)
	case int32:
		return model.IntValue(int64(v))
	case int16:
		return model.IntValue(int64(v))
	case int8:
		return model.IntValue(int64(v))
	case int:
		return model.IntValue(int64(v))
	case uint64:
		return model.IntValue(int64(v))
	}

	switch v := raw.(type) {
	case bool:
		return model.BoolValue(v)
	}

	switch v := raw.(type) {
	case float64:
		return model.FloatValue(v)
	case float32:
		return model.FloatValue(float64(v))
	}

	// Arbitrary-precision decimals surface from the driver as []byte or
	// string (e.g. Postgres NUMERIC, MySQL DECIMAL); coerce to float64
	// before falling back to plain text.
	if s, ok := asDecimalString(raw); ok {
		if f, err := convert.ToFloat64(s); err == nil {
			return model.FloatValue(f)
		}
	}

	switch v := raw.(type) {
	case string:
		return model.TextValue(v)
	}

	if t, ok := raw.(time.Time); ok {
		return model.TextValue(t.Format(time.RFC3339))
	}

	if b, ok := raw.([]byte); ok {
		// JSON-shaped columns (Postgres jsonb/json, MySQL JSON) arrive as
		// []byte; try decoding before treating it as an opaque blob.
		var doc any
		if json.Valid(b) {
			if err := json.Unmarshal(b, &doc); err == nil {
				return model.JSONValue(doc)
			}
		}
		return model.BytesValue(append([]byte(nil), b...))
	}

	return model.NullValue()
}

// asDecimalString reports whether raw looks like a driver-returned
// arbitrary-precision numeric literal (string or []byte containing only
// a numeric-looking payload), without yet committing to the float64
// conversion — that happens in convertScanned immediately after.
func asDecimalString(raw any) (string, bool) {
	switch v := raw.(type) {
	case []byte:
		if looksNumeric(v) {
			return string(v), true
		}
	case string:
		if looksNumeric([]byte(v)) {
			return v, true
		}
	}
	return "", false
}

func looksNumeric(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	sawDigit := false
	for i, c := range b {
		switch {
		case c >= '0' && c <= '9':
			sawDigit = true
		case c == '.' || c == '-' || c == '+':
			// sign/decimal point allowed anywhere in this simple scan
		case c == 'e' || c == 'E':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return sawDigit
}
