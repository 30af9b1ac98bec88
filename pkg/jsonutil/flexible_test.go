package jsonutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexibleStringValue(t *testing.T) {
	tests := []struct {
		name  string
		input json.RawMessage
		want  string
	}{
		{"string value", json.RawMessage(`"Cash(s)"`), "Cash(s)"},
		{"integer value", json.RawMessage(`42`), "42"},
		{"float value", json.RawMessage(`3.14`), "3.14"},
		{"whole float", json.RawMessage(`1001.0`), "1001"},
		{"trailing zeros", json.RawMessage(`2.50`), "2.5"},
		{"exponent kept", json.RawMessage(`1e3`), "1e3"},
		{"boolean true", json.RawMessage(`true`), "true"},
		{"boolean false", json.RawMessage(`false`), "false"},
		{"null value", json.RawMessage(`null`), ""},
		{"empty raw message", json.RawMessage{}, ""},
		{"nil raw message", nil, ""},
		{"large integer preserves precision", json.RawMessage(`9007199254740993`), "9007199254740993"},
		{"nested object falls back to raw string", json.RawMessage(`{"a":1}`), `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FlexibleStringValue(tt.input))
		})
	}
}

func TestFlexibleString_Unmarshal(t *testing.T) {
	var values []FlexibleString
	require.NoError(t, json.Unmarshal([]byte(`["Cash", 1001, null, true, " Pref.Equity "]`), &values))
	assert.Equal(t, []string{"Cash", "1001", "", "true", " Pref.Equity "}, Strings(values))
}
