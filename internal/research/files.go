package research

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"newsroom/internal/store"
)

// LoadKeywords reads {"keywords": [...]}.
func LoadKeywords(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keywords file: %w", err)
	}
	var doc struct {
		Keywords []string `json:"keywords"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse keywords file %s: %w", path, err)
	}
	return doc.Keywords, nil
}

// SaveResults writes keyword -> URL as indented JSON.
func SaveResults(path string, results map[string]string) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	return store.WriteFileAtomic(path, append(data, '\n'), 0o644)
}

// LoadResults reads a results file written by SaveResults.
func LoadResults(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read research results: %w", err)
	}
	results := make(map[string]string)
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to parse research results %s: %w", path, err)
	}
	return results, nil
}

// URLs returns the successful result URLs, sorted, skipping error markers.
func URLs(results map[string]string) []string {
	var urls []string
	for _, u := range results {
		if u != "" && u != ErrorMarker && u != NotFound {
			urls = append(urls, u)
		}
	}
	sort.Strings(urls)
	return urls
}
