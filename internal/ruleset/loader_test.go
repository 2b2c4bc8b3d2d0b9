package ruleset_test

import (
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-token-gate/internal/adapter"
	"github.com/feral-file/ff-token-gate/internal/mocks"
	"github.com/feral-file/ff-token-gate/internal/ruleset"
)

const validRulesDoc = `{
	"schema": "public",
	"table": "erc1155_ledger",
	"columns": {"address": "holder", "token": "token_id", "amount": "amount"},
	"aliases": {
		"gold": {"from": 10, "to": 20},
		"vip": 7
	},
	"endpoints": {
		"/vip": ["gold", 99],
		"/open": "no_rules"
	}
}`

func TestLoader_Load(t *testing.T) {
	loader := ruleset.NewLoader(fixedFS(validRulesDoc), adapter.NewJSON())

	spec, err := loader.Load("rules.json")
	require.NoError(t, err)

	assert.Equal(t, "public", spec.Schema)
	assert.Equal(t, "erc1155_ledger", spec.Table)
	assert.Equal(t, ruleset.Columns{Address: "holder", Token: "token_id", Amount: "amount"}, spec.Columns)
	assert.Equal(t, map[string]ruleset.AliasValue{
		"gold": {From: 10, To: 20},
		"vip":  {From: 7, To: 7},
	}, spec.Aliases)

	assert.Equal(t, ruleset.EndpointRules{OneOf: []ruleset.TokenReference{
		ruleset.SymbolicRef("gold"),
		ruleset.NumericRef(99),
	}}, spec.Endpoints["/vip"])
	assert.Equal(t, ruleset.EndpointRules{NoRules: true}, spec.Endpoints["/open"])
}

func TestLoader_LoadErrors(t *testing.T) {
	tests := []struct {
		name        string
		doc         string
		readErr     error
		expectedErr string
	}{
		{
			name:        "read failure",
			readErr:     errors.New("no such file"),
			expectedErr: "failed to read rules file",
		},
		{
			name:        "malformed JSON",
			doc:         `{"table": `,
			expectedErr: "failed to parse rules JSON",
		},
		{
			name:        "missing table name",
			doc:         `{"columns": {"address": "a", "token": "t", "amount": "m"}, "endpoints": {}}`,
			expectedErr: "missing the ledger table name",
		},
		{
			name:        "missing column name",
			doc:         `{"table": "ledger", "columns": {"address": "a", "token": "t"}, "endpoints": {}}`,
			expectedErr: "must name the address, token and amount columns",
		},
		{
			name:        "unknown endpoint marker",
			doc:         `{"table": "ledger", "columns": {"address": "a", "token": "t", "amount": "m"}, "endpoints": {"/x": "anything_goes"}}`,
			expectedErr: "failed to parse rules JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			fs := mocks.NewMockFileSystem(ctrl)
			if tt.readErr != nil {
				fs.EXPECT().ReadFile("rules.json").Return(nil, tt.readErr)
			} else {
				fs.EXPECT().ReadFile("rules.json").Return([]byte(tt.doc), nil)
			}

			loader := ruleset.NewLoader(fs, adapter.NewJSON())
			spec, err := loader.Load("rules.json")
			assert.Nil(t, spec)
			assert.ErrorContains(t, err, tt.expectedErr)
		})
	}
}

func TestLoader_LoadPropagatesUnmarshalError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fs := mocks.NewMockFileSystem(ctrl)
	fs.EXPECT().ReadFile("rules.json").Return([]byte("{}"), nil)

	jsonAdapter := mocks.NewMockJSON(ctrl)
	jsonAdapter.EXPECT().
		Unmarshal([]byte("{}"), gomock.Any()).
		Return(errors.New("boom"))

	loader := ruleset.NewLoader(fs, jsonAdapter)
	spec, err := loader.Load("rules.json")
	assert.Nil(t, spec)
	assert.ErrorContains(t, err, "failed to parse rules JSON")
}

// fixedFS returns a FileSystem whose every read yields doc
func fixedFS(doc string) adapter.FileSystem {
	return staticFS{doc: []byte(doc)}
}

type staticFS struct {
	doc []byte
}

func (fs staticFS) ReadFile(string) ([]byte, error) {
	return fs.doc, nil
}
