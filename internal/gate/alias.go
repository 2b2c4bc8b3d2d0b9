package gate

import (
	"fmt"

	"github.com/feral-file/ff-token-gate/internal/domain"
	"github.com/feral-file/ff-token-gate/internal/ruleset"
)

// aliasEntry binds a name to a closed token-id interval [from, to]
type aliasEntry struct {
	name string
	from int64
	to   int64
}

// AliasRegistry maps symbolic token names to numeric token ids or id
// ranges and resolves them bidirectionally. Registered intervals are
// pairwise disjoint; registration enforces this. The registry is built
// once per configuration pass and is read-only afterwards.
type AliasRegistry struct {
	entries []aliasEntry
	byName  map[string]aliasEntry
}

// NewAliasRegistry creates an empty alias registry
func NewAliasRegistry() *AliasRegistry {
	return &AliasRegistry{
		byName: make(map[string]aliasEntry),
	}
}

// RegisterRange binds name to the closed interval [from, to]. A single
// token id is registered as from == to.
func (r *AliasRegistry) RegisterRange(name string, from, to int64) error {
	if from > to {
		return fmt.Errorf("%w: alias %q has from=%d > to=%d", domain.ErrInvalidRange, name, from, to)
	}

	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("%w: %q", domain.ErrDuplicateAlias, name)
	}

	// Closed-interval intersection test against every registered alias
	for _, e := range r.entries {
		if from <= e.to && e.from <= to {
			return fmt.Errorf("%w: alias %q [%d, %d] intersects %q [%d, %d]",
				domain.ErrOverlappingRange, name, from, to, e.name, e.from, e.to)
		}
	}

	entry := aliasEntry{name: name, from: from, to: to}
	r.entries = append(r.entries, entry)
	r.byName[name] = entry
	return nil
}

// Resolve expands a token reference to the set of numeric token ids it
// denotes. Numeric references resolve to themselves without prior
// registration; symbolic references must be registered.
func (r *AliasRegistry) Resolve(ref ruleset.TokenReference) ([]int64, error) {
	if ref.Numeric {
		return []int64{ref.ID}, nil
	}

	entry, ok := r.byName[ref.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownTokenReference, ref.Name)
	}

	ids := make([]int64, 0, entry.to-entry.from+1)
	for id := entry.from; id <= entry.to; id++ {
		ids = append(ids, id)
	}
	return ids, nil
}

// ReverseLookup returns the name of the first registered alias whose
// interval contains id. Ids not covered by any alias are reported by
// their raw numeric value.
func (r *AliasRegistry) ReverseLookup(id int64) (string, bool) {
	for _, e := range r.entries {
		if e.from <= id && id <= e.to {
			return e.name, true
		}
	}
	return "", false
}

// Snapshot renders the registry back into the declarative alias mapping
func (r *AliasRegistry) Snapshot() map[string]ruleset.AliasValue {
	if len(r.entries) == 0 {
		return nil
	}
	out := make(map[string]ruleset.AliasValue, len(r.entries))
	for _, e := range r.entries {
		out[e.name] = ruleset.AliasValue{From: e.from, To: e.to}
	}
	return out
}
