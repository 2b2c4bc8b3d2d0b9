package gate

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/feral-file/ff-token-gate/internal/domain"
	"github.com/feral-file/ff-token-gate/internal/ruleset"
)

// OwnershipVerifier checks whether an address holds a positive balance
// of any token in a set. Implemented by the store against the external
// ledger.
type OwnershipVerifier interface {
	// OwnsAny reports whether address owns a strictly positive summed
	// balance over any of tokenIDs
	OwnsAny(ctx context.Context, address string, tokenIDs []int64) (bool, error)
}

// WhitelistGate is the optional secondary allow-list check layered in
// front of ownership verification.
type WhitelistGate interface {
	// IsWhitelisted reports whether address has an unclaimed whitelist
	// entry
	IsWhitelisted(ctx context.Context, address string) (bool, error)
}

// Options configures engine-wide behavior
type Options struct {
	// EnforceWhitelist requires a passing whitelist check in addition to
	// token ownership for every token-gated endpoint
	EnforceWhitelist bool
}

// snapshot is one immutable compiled configuration. Old and new
// snapshots never share mutable substructure, so a reload is a single
// pointer swap and in-flight decisions keep reading the snapshot they
// started with.
type snapshot struct {
	aliases *AliasRegistry
	rules   *RuleTable

	// ledger binding carried through for CurrentSpec rendering
	schema  string
	table   string
	columns ruleset.Columns
}

// Engine is the access decision engine: given a request path and an
// optional caller address it resolves the effective endpoint rule and
// verifies token ownership against the ledger. Decisions are pure
// functions of (path, address, external store state); the engine keeps
// no per-decision state and is safe for unbounded concurrent use.
type Engine struct {
	verifier  OwnershipVerifier
	whitelist WhitelistGate
	opts      Options

	current atomic.Pointer[snapshot]
}

// NewEngine creates a decision engine. Until Configure succeeds once,
// every decision is an implicit allow (no rules registered).
func NewEngine(verifier OwnershipVerifier, whitelist WhitelistGate, opts Options) *Engine {
	return &Engine{
		verifier:  verifier,
		whitelist: whitelist,
		opts:      opts,
	}
}

// Configure compiles the declarative spec and atomically replaces the
// entire rule set and alias registry. Any error (invalid range,
// overlapping range, unknown token reference) is a fatal configuration
// error: nothing is applied and the previous configuration keeps
// serving. Partial merges across reloads are not supported.
func (e *Engine) Configure(spec *ruleset.Spec) error {
	snap, err := compile(spec)
	if err != nil {
		return err
	}
	e.current.Store(snap)
	return nil
}

// compile builds an immutable snapshot from the declarative spec,
// resolving every symbolic token reference up front so a typo in the
// configuration fails the load instead of silently allowing everything
// at request time.
func compile(spec *ruleset.Spec) (*snapshot, error) {
	aliases := NewAliasRegistry()

	// Sort names so a bad document fails deterministically
	names := make([]string, 0, len(spec.Aliases))
	for name := range spec.Aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := spec.Aliases[name]
		if err := aliases.RegisterRange(name, v.From, v.To); err != nil {
			return nil, err
		}
	}

	rules := NewRuleTable()
	for endpoint, er := range spec.Endpoints {
		if er.NoRules {
			rules.SetNoRules(endpoint)
			continue
		}
		// An empty token list would register nothing and leave the
		// endpoint implicitly allowed; treat it as a configuration error
		// instead of a silent allow
		if len(er.OneOf) == 0 {
			return nil, fmt.Errorf("endpoint %q: %w", endpoint, domain.ErrEmptyTokenSet)
		}
		for _, ref := range er.OneOf {
			ids, err := aliases.Resolve(ref)
			if err != nil {
				return nil, fmt.Errorf("endpoint %q: %w", endpoint, err)
			}
			rules.RequireOneOf(endpoint, ids)
		}
	}

	return &snapshot{
		aliases: aliases,
		rules:   rules,
		schema:  spec.Schema,
		table:   spec.Table,
		columns: spec.Columns,
	}, nil
}

// Decide evaluates access for a request path and an optional caller
// address (empty string means unauthenticated). It returns the
// decision, or a non-nil error when the external store could not be
// queried; such an evaluation error is never coerced into an allow or
// a deny and the boundary must surface it as a server-side failure.
func (e *Engine) Decide(ctx context.Context, path, address string) (domain.Decision, error) {
	snap := e.current.Load()
	if snap == nil {
		// Never configured: nothing to enforce
		return domain.DecisionAllow, nil
	}

	rule := snap.rules.Resolve(path)
	if rule == nil || rule.NoRules {
		return domain.DecisionAllow, nil
	}

	// A token-requiring rule with no caller identity is a deterministic
	// deny, not an error
	if address == "" {
		return domain.DecisionDeny, nil
	}

	if e.opts.EnforceWhitelist {
		ok, err := e.whitelist.IsWhitelisted(ctx, address)
		if err != nil {
			return domain.DecisionDeny, fmt.Errorf("whitelist check failed: %w", err)
		}
		if !ok {
			return domain.DecisionDeny, nil
		}
	}

	owns, err := e.verifier.OwnsAny(ctx, address, rule.TokenIDs)
	if err != nil {
		return domain.DecisionDeny, fmt.Errorf("ownership check failed: %w", err)
	}
	if owns {
		return domain.DecisionAllow, nil
	}
	return domain.DecisionDeny, nil
}

// CurrentSpec renders the active configuration back into the
// declarative load format. Token ids covered by an alias are rendered
// as the alias name (deduplicated), uncovered ids stay numeric. Returns
// nil when the engine was never configured.
func (e *Engine) CurrentSpec() *ruleset.Spec {
	snap := e.current.Load()
	if snap == nil {
		return nil
	}

	endpoints := make(map[string]ruleset.EndpointRules, len(snap.rules.rules))
	for _, endpoint := range snap.rules.Endpoints() {
		rule, _ := snap.rules.Rule(endpoint)
		if rule.NoRules {
			endpoints[endpoint] = ruleset.EndpointRules{NoRules: true}
			continue
		}

		refs := make([]ruleset.TokenReference, 0, len(rule.TokenIDs))
		seen := make(map[string]bool)
		for _, id := range rule.TokenIDs {
			if name, ok := snap.aliases.ReverseLookup(id); ok {
				if !seen[name] {
					seen[name] = true
					refs = append(refs, ruleset.SymbolicRef(name))
				}
				continue
			}
			refs = append(refs, ruleset.NumericRef(id))
		}
		endpoints[endpoint] = ruleset.EndpointRules{OneOf: refs}
	}

	return &ruleset.Spec{
		Schema:    snap.schema,
		Table:     snap.table,
		Columns:   snap.columns,
		Aliases:   snap.aliases.Snapshot(),
		Endpoints: endpoints,
	}
}
