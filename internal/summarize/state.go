package summarize

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"newsroom/internal/store"
)

// ProcessedState remembers which Message-IDs have been folded into an
// analysis. It is kept on disk so restarts do not reprocess the table.
type ProcessedState struct {
	path string
	ids  map[string]bool
}

// LoadState reads the state file. A missing file is an empty state; an
// empty path keeps the state in memory only.
func LoadState(path string) (*ProcessedState, error) {
	s := &ProcessedState{path: path, ids: make(map[string]bool)}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read processed state: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("failed to parse processed state %s: %w", path, err)
	}
	for _, id := range ids {
		s.ids[id] = true
	}
	return s, nil
}

func (s *ProcessedState) Has(id string) bool { return s.ids[id] }
func (s *ProcessedState) Add(id string)      { s.ids[id] = true }
func (s *ProcessedState) Len() int           { return len(s.ids) }

// Save writes the ids as a sorted JSON array.
func (s *ProcessedState) Save() error {
	if s.path == "" {
		return nil
	}
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return err
	}
	return store.WriteFileAtomic(s.path, data, 0644)
}
