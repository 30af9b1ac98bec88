// Package jsonutil decodes loosely typed JSON cell values.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FlexibleStringValue converts a JSON scalar to its text form, so inline
// column values may be sent as numbers or booleans as well as strings.
// null and empty input give "". Objects and arrays are returned raw.
func FlexibleStringValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	// Numbers keep their literal digits so large identifiers survive.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err == nil {
		switch val := v.(type) {
		case json.Number:
			return normalizeNumber(val.String())
		case bool:
			if val {
				return "true"
			}
			return "false"
		}
	}

	return string(raw)
}

// normalizeNumber drops a zero fraction: "42.0" becomes "42".
func normalizeNumber(s string) string {
	if i := strings.IndexByte(s, '.'); i >= 0 && !strings.ContainsAny(s, "eE") {
		frac := strings.TrimRight(s[i+1:], "0")
		if frac == "" {
			return s[:i]
		}
		return s[:i+1] + frac
	}
	return s
}

// FlexibleString is a string that accepts any JSON scalar when decoded.
type FlexibleString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexibleString) UnmarshalJSON(data []byte) error {
	*f = FlexibleString(FlexibleStringValue(data))
	return nil
}

// Strings converts a decoded slice to plain strings.
func Strings(values []FlexibleString) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
