package gate_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-token-gate/internal/domain"
	"github.com/feral-file/ff-token-gate/internal/gate"
	"github.com/feral-file/ff-token-gate/internal/logger"
	"github.com/feral-file/ff-token-gate/internal/mocks"
	"github.com/feral-file/ff-token-gate/internal/ruleset"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

func testSpec() *ruleset.Spec {
	return &ruleset.Spec{
		Table:   "erc1155_ledger",
		Columns: ruleset.Columns{Address: "holder", Token: "token_id", Amount: "amount"},
		Aliases: map[string]ruleset.AliasValue{
			"gold": {From: 10, To: 10},
		},
		Endpoints: map[string]ruleset.EndpointRules{
			"/vip": {OneOf: []ruleset.TokenReference{ruleset.SymbolicRef("gold")}},
		},
	}
}

func TestEngine_Decide(t *testing.T) {
	const ownerAddr = "0x1111111111111111111111111111111111111111"
	const strangerAddr = "0x2222222222222222222222222222222222222222"

	tests := []struct {
		name        string
		spec        *ruleset.Spec
		opts        gate.Options
		path        string
		address     string
		setupMocks  func(*mocks.MockStore)
		expected    domain.Decision
		expectedErr string
	}{
		{
			name:    "owner of required token is allowed",
			spec:    testSpec(),
			path:    "/vip/items",
			address: ownerAddr,
			setupMocks: func(store *mocks.MockStore) {
				store.EXPECT().
					OwnsAny(gomock.Any(), ownerAddr, []int64{10}).
					Return(true, nil)
			},
			expected: domain.DecisionAllow,
		},
		{
			name:    "non-owner is denied",
			spec:    testSpec(),
			path:    "/vip/items",
			address: strangerAddr,
			setupMocks: func(store *mocks.MockStore) {
				store.EXPECT().
					OwnsAny(gomock.Any(), strangerAddr, []int64{10}).
					Return(false, nil)
			},
			expected: domain.DecisionDeny,
		},
		{
			name: "explicit no_rules at root allows everything",
			spec: &ruleset.Spec{
				Table:   "erc1155_ledger",
				Columns: ruleset.Columns{Address: "holder", Token: "token_id", Amount: "amount"},
				Endpoints: map[string]ruleset.EndpointRules{
					"/": {NoRules: true},
				},
			},
			path:     "/anything/whatsoever",
			address:  "",
			expected: domain.DecisionAllow,
		},
		{
			name:     "token rule without caller identity is a deny, not an error",
			spec:     testSpec(),
			path:     "/vip/items",
			address:  "",
			expected: domain.DecisionDeny,
		},
		{
			name:     "path without any registered ancestor is an implicit allow",
			spec:     testSpec(),
			path:     "/public/docs",
			address:  "",
			expected: domain.DecisionAllow,
		},
		{
			name:    "whitelist enforced and address not whitelisted",
			spec:    testSpec(),
			opts:    gate.Options{EnforceWhitelist: true},
			path:    "/vip/items",
			address: ownerAddr,
			setupMocks: func(store *mocks.MockStore) {
				store.EXPECT().
					IsWhitelisted(gomock.Any(), ownerAddr).
					Return(false, nil)
			},
			expected: domain.DecisionDeny,
		},
		{
			name:    "whitelist enforced and both checks pass",
			spec:    testSpec(),
			opts:    gate.Options{EnforceWhitelist: true},
			path:    "/vip/items",
			address: ownerAddr,
			setupMocks: func(store *mocks.MockStore) {
				store.EXPECT().
					IsWhitelisted(gomock.Any(), ownerAddr).
					Return(true, nil)
				store.EXPECT().
					OwnsAny(gomock.Any(), ownerAddr, []int64{10}).
					Return(true, nil)
			},
			expected: domain.DecisionAllow,
		},
		{
			name:    "ledger failure surfaces as an evaluation error",
			spec:    testSpec(),
			path:    "/vip/items",
			address: ownerAddr,
			setupMocks: func(store *mocks.MockStore) {
				store.EXPECT().
					OwnsAny(gomock.Any(), ownerAddr, []int64{10}).
					Return(false, errors.New("connection refused"))
			},
			expectedErr: "ownership check failed",
		},
		{
			name:    "whitelist failure surfaces as an evaluation error",
			spec:    testSpec(),
			opts:    gate.Options{EnforceWhitelist: true},
			path:    "/vip/items",
			address: ownerAddr,
			setupMocks: func(store *mocks.MockStore) {
				store.EXPECT().
					IsWhitelisted(gomock.Any(), ownerAddr).
					Return(false, errors.New("connection refused"))
			},
			expectedErr: "whitelist check failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			store := mocks.NewMockStore(ctrl)
			if tt.setupMocks != nil {
				tt.setupMocks(store)
			}

			engine := gate.NewEngine(store, store, tt.opts)
			require.NoError(t, engine.Configure(tt.spec))

			decision, err := engine.Decide(context.Background(), tt.path, tt.address)
			if tt.expectedErr != "" {
				assert.ErrorContains(t, err, tt.expectedErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, decision)
		})
	}
}

func TestEngine_DecideBeforeConfigure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	engine := gate.NewEngine(mocks.NewMockStore(ctrl), mocks.NewMockStore(ctrl), gate.Options{})

	decision, err := engine.Decide(context.Background(), "/vip/items", "0xabc")
	assert.NoError(t, err)
	assert.Equal(t, domain.DecisionAllow, decision)
	assert.Nil(t, engine.CurrentSpec())
}

func TestEngine_DecideIsIdempotent(t *testing.T) {
	const addr = "0x1111111111111111111111111111111111111111"

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockStore(ctrl)
	store.EXPECT().
		OwnsAny(gomock.Any(), addr, []int64{10}).
		Return(true, nil).
		Times(3)

	engine := gate.NewEngine(store, store, gate.Options{})
	require.NoError(t, engine.Configure(testSpec()))

	for range 3 {
		decision, err := engine.Decide(context.Background(), "/vip/items", addr)
		require.NoError(t, err)
		assert.Equal(t, domain.DecisionAllow, decision)
	}
}

func TestEngine_ConfigureRejectsUnknownAlias(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockStore(ctrl)
	engine := gate.NewEngine(store, store, gate.Options{})
	require.NoError(t, engine.Configure(testSpec()))

	bad := testSpec()
	bad.Endpoints["/mythical"] = ruleset.EndpointRules{
		OneOf: []ruleset.TokenReference{ruleset.SymbolicRef("unicorn")},
	}

	err := engine.Configure(bad)
	require.ErrorIs(t, err, domain.ErrUnknownTokenReference)
	assert.ErrorContains(t, err, "/mythical")

	// The failed load must leave the previous configuration serving
	current := engine.CurrentSpec()
	require.NotNil(t, current)
	assert.NotContains(t, current.Endpoints, "/mythical")
	assert.Contains(t, current.Endpoints, "/vip")
}

func TestEngine_ConfigureRejectsEmptyTokenList(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockStore(ctrl)
	engine := gate.NewEngine(store, store, gate.Options{})
	require.NoError(t, engine.Configure(testSpec()))

	// A gated endpoint whose token list is empty must fail the load,
	// never collapse into an implicit allow
	bad := testSpec()
	bad.Endpoints["/vip"] = ruleset.EndpointRules{OneOf: []ruleset.TokenReference{}}

	err := engine.Configure(bad)
	require.ErrorIs(t, err, domain.ErrEmptyTokenSet)
	assert.ErrorContains(t, err, "/vip")

	// The previous configuration keeps serving: /vip still requires the
	// gold token and still shows up in the rendered spec
	decision, err := engine.Decide(context.Background(), "/vip/items", "")
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionDeny, decision)

	current := engine.CurrentSpec()
	require.NotNil(t, current)
	assert.Contains(t, current.Endpoints, "/vip")
}

func TestEngine_ConfigureRejectsBadAliases(t *testing.T) {
	tests := []struct {
		name        string
		aliases     map[string]ruleset.AliasValue
		expectedErr error
	}{
		{
			name: "inverted range",
			aliases: map[string]ruleset.AliasValue{
				"bad": {From: 20, To: 10},
			},
			expectedErr: domain.ErrInvalidRange,
		},
		{
			name: "overlapping ranges",
			aliases: map[string]ruleset.AliasValue{
				"gold":   {From: 10, To: 20},
				"silver": {From: 15, To: 25},
			},
			expectedErr: domain.ErrOverlappingRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			store := mocks.NewMockStore(ctrl)
			engine := gate.NewEngine(store, store, gate.Options{})

			spec := testSpec()
			spec.Aliases = tt.aliases

			err := engine.Configure(spec)
			assert.ErrorIs(t, err, tt.expectedErr)
			assert.Nil(t, engine.CurrentSpec())
		})
	}
}

func TestEngine_ReloadSwapsWholeRuleSet(t *testing.T) {
	const addr = "0x1111111111111111111111111111111111111111"

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockStore(ctrl)
	engine := gate.NewEngine(store, store, gate.Options{})
	require.NoError(t, engine.Configure(testSpec()))

	// The reload drops /vip entirely and gates /members instead
	next := &ruleset.Spec{
		Table:   "erc1155_ledger",
		Columns: ruleset.Columns{Address: "holder", Token: "token_id", Amount: "amount"},
		Endpoints: map[string]ruleset.EndpointRules{
			"/members": {OneOf: []ruleset.TokenReference{ruleset.NumericRef(42)}},
		},
	}
	require.NoError(t, engine.Configure(next))

	// Old rule gone: /vip falls through to implicit allow
	decision, err := engine.Decide(context.Background(), "/vip/items", "")
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionAllow, decision)

	store.EXPECT().
		OwnsAny(gomock.Any(), addr, []int64{42}).
		Return(false, nil)
	decision, err = engine.Decide(context.Background(), "/members", addr)
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionDeny, decision)
}

func TestEngine_CurrentSpecRoundTrip(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockStore(ctrl)
	engine := gate.NewEngine(store, store, gate.Options{})

	spec := &ruleset.Spec{
		Schema:  "public",
		Table:   "erc1155_ledger",
		Columns: ruleset.Columns{Address: "holder", Token: "token_id", Amount: "amount"},
		Aliases: map[string]ruleset.AliasValue{
			"gold": {From: 10, To: 12},
			"vip":  {From: 7, To: 7},
		},
		Endpoints: map[string]ruleset.EndpointRules{
			"/premium": {OneOf: []ruleset.TokenReference{
				ruleset.SymbolicRef("gold"),
				ruleset.NumericRef(99),
			}},
			"/open": {NoRules: true},
		},
	}
	require.NoError(t, engine.Configure(spec))

	current := engine.CurrentSpec()
	require.NotNil(t, current)
	assert.Equal(t, "public", current.Schema)
	assert.Equal(t, "erc1155_ledger", current.Table)
	assert.Equal(t, spec.Columns, current.Columns)
	assert.Equal(t, spec.Aliases, current.Aliases)

	// The expanded gold range renders back as a single alias reference,
	// the uncovered id stays numeric
	premium := current.Endpoints["/premium"]
	assert.False(t, premium.NoRules)
	assert.Equal(t, []ruleset.TokenReference{
		ruleset.SymbolicRef("gold"),
		ruleset.NumericRef(99),
	}, premium.OneOf)

	assert.True(t, current.Endpoints["/open"].NoRules)
}
