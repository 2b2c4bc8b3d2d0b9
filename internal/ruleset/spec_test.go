package ruleset_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-token-gate/internal/ruleset"
)

func TestAliasValue_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name        string
		doc         string
		expected    ruleset.AliasValue
		expectedErr string
	}{
		{
			name:     "bare number collapses to a unit range",
			doc:      `7`,
			expected: ruleset.AliasValue{From: 7, To: 7},
		},
		{
			name:     "range object",
			doc:      `{"from": 10, "to": 20}`,
			expected: ruleset.AliasValue{From: 10, To: 20},
		},
		{
			name:        "range missing to",
			doc:         `{"from": 10}`,
			expectedErr: "must set both from and to",
		},
		{
			name:        "wrong JSON type",
			doc:         `true`,
			expectedErr: "must be a number or a {from, to} object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v ruleset.AliasValue
			err := json.Unmarshal([]byte(tt.doc), &v)
			if tt.expectedErr != "" {
				assert.ErrorContains(t, err, tt.expectedErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestAliasValue_MarshalJSON(t *testing.T) {
	single, err := json.Marshal(ruleset.AliasValue{From: 7, To: 7})
	require.NoError(t, err)
	assert.JSONEq(t, `7`, string(single))

	rng, err := json.Marshal(ruleset.AliasValue{From: 10, To: 20})
	require.NoError(t, err)
	assert.JSONEq(t, `{"from": 10, "to": 20}`, string(rng))
}

func TestTokenReference_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name        string
		doc         string
		expected    ruleset.TokenReference
		expectedErr string
	}{
		{
			name:     "number is numeric",
			doc:      `42`,
			expected: ruleset.NumericRef(42),
		},
		{
			name:     "numeric string is numeric",
			doc:      `"42"`,
			expected: ruleset.NumericRef(42),
		},
		{
			name:     "plain string is symbolic",
			doc:      `"gold"`,
			expected: ruleset.SymbolicRef("gold"),
		},
		{
			name:        "wrong JSON type",
			doc:         `{"id": 1}`,
			expectedErr: "must be a number or a string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ref ruleset.TokenReference
			err := json.Unmarshal([]byte(tt.doc), &ref)
			if tt.expectedErr != "" {
				assert.ErrorContains(t, err, tt.expectedErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, ref)
		})
	}
}

func TestTokenReference_String(t *testing.T) {
	assert.Equal(t, "42", ruleset.NumericRef(42).String())
	assert.Equal(t, "gold", ruleset.SymbolicRef("gold").String())
}

func TestEndpointRules_JSONRoundTrip(t *testing.T) {
	doc := `{"/vip": ["gold", 99], "/open": "no_rules"}`

	var endpoints map[string]ruleset.EndpointRules
	require.NoError(t, json.Unmarshal([]byte(doc), &endpoints))

	assert.Equal(t, ruleset.EndpointRules{OneOf: []ruleset.TokenReference{
		ruleset.SymbolicRef("gold"),
		ruleset.NumericRef(99),
	}}, endpoints["/vip"])
	assert.Equal(t, ruleset.EndpointRules{NoRules: true}, endpoints["/open"])

	out, err := json.Marshal(endpoints)
	require.NoError(t, err)
	assert.JSONEq(t, doc, string(out))
}
