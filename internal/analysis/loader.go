// Package analysis reads the per-category analysis documents the
// synthesizer writes and the newsletter loop consumes.
package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"newsroom/internal/core"
	"newsroom/internal/logger"
)

// Document is one analysis file on disk.
type Document struct {
	Path  string
	Topic string // allow-list casing when loaded through an allow-list
	core.TopicAnalysis
}

// Load returns category -> analysis text for every allow-listed category
// with a readable document in dir. Keys keep the allow-list's casing. An
// empty allow-list accepts every file. A missing directory yields an empty
// map.
func Load(dir string, allowList []string) (map[string]string, error) {
	docs, err := LoadDocuments(dir, allowList)
	if err != nil {
		return nil, err
	}

	analyses := make(map[string]string, len(docs))
	for _, doc := range docs {
		if strings.TrimSpace(doc.Analysis) == "" {
			logger.Warn("Analysis document has no analysis, skipping", "file", filepath.Base(doc.Path))
			continue
		}
		analyses[doc.Topic] = doc.Analysis
	}

	logger.Info("Loaded category analyses", "dir", dir, "count", len(analyses))
	return analyses, nil
}

// LoadDocuments returns the parsed documents, sorted by file name.
// Unmatched and unparsable files are skipped and logged.
func LoadDocuments(dir string, allowList []string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Analysis directory does not exist", "dir", dir)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read analysis directory %s: %w", dir, err)
	}

	allowed := make(map[string]string, len(allowList))
	for _, c := range allowList {
		allowed[strings.ToLower(strings.TrimSpace(c))] = c
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var docs []Document
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), ".json") {
			continue
		}

		category := categoryFromFile(name)
		if len(allowed) > 0 {
			c, ok := allowed[category]
			if !ok {
				logger.Info("Skipping analysis outside the category list", "file", name)
				continue
			}
			category = c
		}

		path := filepath.Join(dir, name)
		doc, err := readDocument(path)
		if err != nil {
			logger.Error("Failed to read analysis document", err, "file", name)
			continue
		}
		doc.Topic = category
		docs = append(docs, *doc)
	}

	return docs, nil
}

func readDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ta core.TopicAnalysis
	if err := json.Unmarshal(data, &ta); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return &Document{Path: path, TopicAnalysis: ta}, nil
}

// categoryFromFile maps "us_news.json" to "us news".
func categoryFromFile(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return strings.ToLower(strings.ReplaceAll(base, "_", " "))
}
