package ruleset

import (
	"fmt"

	"github.com/feral-file/ff-token-gate/internal/adapter"
)

// Loader loads a declarative rule specification from a JSON document
type Loader struct {
	fs   adapter.FileSystem
	json adapter.JSON
}

// NewLoader creates a new rule specification loader
func NewLoader(fs adapter.FileSystem, json adapter.JSON) *Loader {
	return &Loader{fs: fs, json: json}
}

// Load reads and parses the rule specification at the given path.
// Parsing is purely syntactic; range and alias validation happens when
// the engine compiles the spec.
func (l *Loader) Load(path string) (*Spec, error) {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var spec Spec
	if err := l.json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse rules JSON: %w", err)
	}

	if spec.Table == "" {
		return nil, fmt.Errorf("rules spec is missing the ledger table name")
	}
	if spec.Columns.Address == "" || spec.Columns.Token == "" || spec.Columns.Amount == "" {
		return nil, fmt.Errorf("rules spec must name the address, token and amount columns")
	}

	return &spec, nil
}
