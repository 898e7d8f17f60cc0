// Package importer loads the email table and the analysis documents into
// the relational store.
package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"newsroom/internal/analysis"
	"newsroom/internal/categorization"
	"newsroom/internal/core"
	"newsroom/internal/logger"
	"newsroom/internal/persistence"
	"newsroom/internal/store"
)

// Importer writes through a persistence.Database.
type Importer struct {
	db     persistence.Database
	labels map[string]string // lower-cased label -> classifier label
}

// Option configures an Importer.
type Option func(*Importer)

// WithCategories sets the labels file-name topics are mapped back to. The
// default is the labels of the built-in sender rules.
func WithCategories(labels []string) Option {
	return func(im *Importer) {
		im.labels = labelIndex(labels)
	}
}

// New creates an importer.
func New(db persistence.Database, opts ...Option) *Importer {
	im := &Importer{
		db:     db,
		labels: labelIndex(categorization.GetCategoryNames(categorization.DefaultRules())),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

func labelIndex(labels []string) map[string]string {
	index := make(map[string]string, len(labels)+1)
	index[strings.ToLower(core.Uncategorized)] = core.Uncategorized
	for _, l := range labels {
		index[strings.ToLower(strings.TrimSpace(l))] = l
	}
	return index
}

// ArticleReport summarizes an article import.
type ArticleReport struct {
	Read     int
	Skipped  int
	Upserted int
}

// AnalysisReport summarizes an analysis import.
type AnalysisReport struct {
	Files      int
	Incomplete []string // files without an analysis or a topic
	Skipped    []string // topics with no stored articles
	Inserted   int
}

// ImportArticlesFile opens path and runs ImportArticles.
func (im *Importer) ImportArticlesFile(ctx context.Context, path string) (ArticleReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return ArticleReport{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return im.ImportArticles(ctx, f)
}

// ImportArticles reads an email table and upserts one raw_articles row per
// record. Every email table column is required; rows without a category,
// subject or body are dropped.
func (im *Importer) ImportArticles(ctx context.Context, r io.Reader) (ArticleReport, error) {
	records, err := store.ReadRecords(r, store.Columns...)
	if err != nil {
		return ArticleReport{}, err
	}

	report := ArticleReport{Read: len(records)}
	articles := make([]persistence.RawArticle, 0, len(records))
	for _, rec := range records {
		if blank(rec.Category) || blank(rec.Subject) || blank(rec.Body) {
			report.Skipped++
			continue
		}
		articles = append(articles, ToRawArticle(rec))
	}

	if len(articles) == 0 {
		logger.Warn("No importable articles found", "rows", report.Read)
		return report, nil
	}

	n, err := im.db.Articles().Upsert(ctx, articles)
	if err != nil {
		return report, err
	}
	report.Upserted = n

	logger.Info("Imported articles", "rows", report.Read, "skipped", report.Skipped, "upserted", n)
	return report, nil
}

// ToRawArticle maps an email record to its stored row.
func ToRawArticle(rec core.EmailRecord) persistence.RawArticle {
	return persistence.RawArticle{
		Topic:       rec.Category,
		ArticleName: rec.Subject,
		Content:     rec.Body,
		Metadata: persistence.ArticleMetadata{
			From:      rec.From,
			Date:      rec.Date,
			MessageID: rec.MessageID,
		},
	}
}

// ImportAnalyses inserts one topic_analyses row per document in dir. The
// topic is the document's category, falling back to the category label
// matching the file name. Documents without an analysis or a topic, and
// topics without stored articles, are skipped. urls, when non-empty, is
// attached as research data to every row.
func (im *Importer) ImportAnalyses(ctx context.Context, dir string, urls []string) (AnalysisReport, error) {
	docs, err := analysis.LoadDocuments(dir, nil)
	if err != nil {
		return AnalysisReport{}, err
	}

	report := AnalysisReport{Files: len(docs)}
	var rows []persistence.TopicAnalysisRow
	for _, doc := range docs {
		file := filepath.Base(doc.Path)
		topic := im.topicOf(doc)
		if topic == "" || blank(doc.Analysis) {
			logger.Warn("Analysis document is missing required fields, skipping",
				"file", file,
				"has_topic", topic != "",
				"has_analysis", !blank(doc.Analysis))
			report.Incomplete = append(report.Incomplete, file)
			continue
		}

		ids, err := im.db.Articles().IDsByTopic(ctx, topic)
		if err != nil {
			return report, fmt.Errorf("failed to resolve articles for %q: %w", topic, err)
		}
		if len(ids) == 0 {
			logger.Warn("No source articles found for topic, skipping", "topic", topic)
			report.Skipped = append(report.Skipped, topic)
			continue
		}

		rows = append(rows, persistence.TopicAnalysisRow{
			Topic:            topic,
			Analysis:         doc.Analysis,
			Keywords:         doc.Keywords,
			SourceArticleIDs: ids,
			Research:         persistence.ResearchData{URLs: urls},
		})
	}

	if len(rows) == 0 {
		logger.Warn("No analyses to import", "dir", dir, "files", report.Files)
		return report, nil
	}

	n, err := im.db.Analyses().Insert(ctx, rows)
	if err != nil {
		return report, err
	}
	report.Inserted = n

	logger.Info("Imported analyses",
		"files", report.Files,
		"incomplete", len(report.Incomplete),
		"skipped", len(report.Skipped),
		"inserted", n)
	return report, nil
}

// topicOf prefers the document's own category. File-name topics such as
// "us news" are mapped back to the stored label "US News".
func (im *Importer) topicOf(doc analysis.Document) string {
	if topic := strings.TrimSpace(doc.Category); topic != "" {
		return topic
	}
	if label, ok := im.labels[doc.Topic]; ok {
		return label
	}
	return strings.TrimSpace(doc.Topic)
}

// Cleanup empties the analysis and article tables.
func (im *Importer) Cleanup(ctx context.Context) (persistence.CleanupResult, error) {
	res, err := im.db.Cleanup(ctx)
	if err != nil {
		return res, err
	}
	logger.Info("Cleared stored data", "analyses", res.Analyses, "articles", res.Articles)
	return res, nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
