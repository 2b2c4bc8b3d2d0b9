package ruleset

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// NoRulesMarker is the literal endpoint value meaning "explicit
// unconditional allow".
const NoRulesMarker = "no_rules"

// Columns names the three ledger columns the ownership query reads.
type Columns struct {
	Address string `json:"address"`
	Token   string `json:"token"`
	Amount  string `json:"amount"`
}

// AliasValue is a closed integer interval [From, To]. A single token id
// is represented as From == To. In the document it is written either as
// a bare number or as a {"from": x, "to": y} object.
type AliasValue struct {
	From int64
	To   int64
}

// UnmarshalJSON accepts either a bare integer or a {from, to} object
func (a *AliasValue) UnmarshalJSON(data []byte) error {
	var id int64
	if err := json.Unmarshal(data, &id); err == nil {
		a.From, a.To = id, id
		return nil
	}

	var rng struct {
		From *int64 `json:"from"`
		To   *int64 `json:"to"`
	}
	if err := json.Unmarshal(data, &rng); err != nil {
		return fmt.Errorf("alias value must be a number or a {from, to} object: %w", err)
	}
	if rng.From == nil || rng.To == nil {
		return fmt.Errorf("alias range must set both from and to")
	}

	a.From, a.To = *rng.From, *rng.To
	return nil
}

// MarshalJSON renders single-id aliases as a bare number and true ranges
// as a {from, to} object, mirroring the load format
func (a AliasValue) MarshalJSON() ([]byte, error) {
	if a.From == a.To {
		return json.Marshal(a.From)
	}
	return json.Marshal(struct {
		From int64 `json:"from"`
		To   int64 `json:"to"`
	}{a.From, a.To})
}

// TokenReference is a tagged reference to tokens in a rule: either a
// numeric token id or a symbolic alias name. Written in the document as
// a number (or a numeric string) for the former and a plain string for
// the latter.
type TokenReference struct {
	Numeric bool
	ID      int64
	Name    string
}

// NumericRef builds a numeric token reference
func NumericRef(id int64) TokenReference {
	return TokenReference{Numeric: true, ID: id}
}

// SymbolicRef builds a symbolic token reference
func SymbolicRef(name string) TokenReference {
	return TokenReference{Name: name}
}

// UnmarshalJSON accepts a JSON number, a numeric string, or an alias name
func (r *TokenReference) UnmarshalJSON(data []byte) error {
	var id int64
	if err := json.Unmarshal(data, &id); err == nil {
		*r = NumericRef(id)
		return nil
	}

	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("token reference must be a number or a string: %w", err)
	}

	// A bare numeric literal resolves to itself without registration
	if id, err := strconv.ParseInt(name, 10, 64); err == nil {
		*r = NumericRef(id)
		return nil
	}

	*r = SymbolicRef(name)
	return nil
}

// MarshalJSON renders numeric references as numbers and symbolic ones as
// strings
func (r TokenReference) MarshalJSON() ([]byte, error) {
	if r.Numeric {
		return json.Marshal(r.ID)
	}
	return json.Marshal(r.Name)
}

// String returns the reference in document form
func (r TokenReference) String() string {
	if r.Numeric {
		return strconv.FormatInt(r.ID, 10)
	}
	return r.Name
}

// EndpointRules is the per-endpoint rule value: either the explicit
// no_rules marker or a "one of" list of token references.
type EndpointRules struct {
	NoRules bool
	OneOf   []TokenReference
}

// UnmarshalJSON accepts the "no_rules" literal or an array of token
// references
func (e *EndpointRules) UnmarshalJSON(data []byte) error {
	var marker string
	if err := json.Unmarshal(data, &marker); err == nil {
		if marker != NoRulesMarker {
			return fmt.Errorf("unknown endpoint rule marker %q", marker)
		}
		e.NoRules = true
		e.OneOf = nil
		return nil
	}

	var refs []TokenReference
	if err := json.Unmarshal(data, &refs); err != nil {
		return fmt.Errorf("endpoint rules must be %q or a list of token references: %w", NoRulesMarker, err)
	}

	e.NoRules = false
	e.OneOf = refs
	return nil
}

// MarshalJSON mirrors the load format
func (e EndpointRules) MarshalJSON() ([]byte, error) {
	if e.NoRules {
		return json.Marshal(NoRulesMarker)
	}
	return json.Marshal(e.OneOf)
}

// Spec is the declarative rule specification document. It names the
// ledger table the ownership query runs against, binds alias names to
// token ids or id ranges, and maps endpoint paths to access rules.
type Spec struct {
	Schema    string                   `json:"schema,omitempty"`
	Table     string                   `json:"table"`
	Columns   Columns                  `json:"columns"`
	Aliases   map[string]AliasValue    `json:"aliases,omitempty"`
	Endpoints map[string]EndpointRules `json:"endpoints"`
}
