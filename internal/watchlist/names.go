package watchlist

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ternarybob/briefing/internal/common"
)

// NameTable maps bare symbol codes to alternative display names.
// The YAML file is a mapping of code to a list of names:
//
//	"005930": ["Samsung Electronics", "Samsung Elec"]
//	"000660": ["SK hynix"]
type NameTable struct {
	path  string
	mu    sync.RWMutex
	names map[string][]string
}

// NewNameTable builds an in-memory table. Keys may carry regional suffixes.
func NewNameTable(names map[string][]string) *NameTable {
	return &NameTable{names: normalizeKeys(names)}
}

// LoadNameTable reads the YAML table at path
func LoadNameTable(path string) (*NameTable, error) {
	t := &NameTable{path: path}
	if err := t.Reload(); err != nil {
		return nil, err
	}
	return t, nil
}

// Reload re-reads the backing file. Tables built with NewNameTable are unchanged.
func (t *NameTable) Reload() error {
	if t.path == "" {
		return nil
	}

	data, err := os.ReadFile(t.path)
	if err != nil {
		return fmt.Errorf("failed to read name table %s: %w", t.path, err)
	}

	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse name table %s: %w", t.path, err)
	}

	names := normalizeKeys(raw)
	t.mu.Lock()
	t.names = names
	t.mu.Unlock()
	return nil
}

// Aliases returns the extra names for symbol, or nil
func (t *NameTable) Aliases(symbol string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.names[common.StripSuffix(symbol)]
}

// Len returns the number of symbols in the table
func (t *NameTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.names)
}

func normalizeKeys(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for symbol, names := range in {
		code := common.StripSuffix(symbol)
		if code == "" {
			continue
		}
		for _, name := range names {
			if name = strings.TrimSpace(name); name != "" {
				out[code] = append(out[code], name)
			}
		}
	}
	return out
}
