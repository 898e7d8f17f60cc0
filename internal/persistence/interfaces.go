package persistence

import (
	"context"
)

// Database is the relational store the importers write to
type Database interface {
	Articles() ArticleRepository
	Analyses() AnalysisRepository

	// Cleanup empties both tables, analyses first
	Cleanup(ctx context.Context) (CleanupResult, error)

	Ping(ctx context.Context) error
	Close() error
}

// ArticleRepository handles raw_articles rows
type ArticleRepository interface {
	// Upsert writes every article in one transaction, replacing content and
	// metadata of rows that share (topic, article_name)
	Upsert(ctx context.Context, articles []RawArticle) (int, error)
	IDsByTopic(ctx context.Context, topic string) ([]int64, error)
}

// AnalysisRepository handles topic_analyses rows
type AnalysisRepository interface {
	Insert(ctx context.Context, analyses []TopicAnalysisRow) (int, error)
}

// RawArticle is one stored newsletter email
type RawArticle struct {
	ID          int64
	Topic       string
	ArticleName string
	Content     string
	Metadata    ArticleMetadata
}

// ArticleMetadata is stored as JSON next to the article
type ArticleMetadata struct {
	From      string `json:"from"`
	Date      string `json:"date"`
	MessageID string `json:"message_id"`
}

// TopicAnalysisRow is one stored category analysis
type TopicAnalysisRow struct {
	ID               int64
	Topic            string
	Analysis         string
	Keywords         []string
	SourceArticleIDs []int64
	Research         ResearchData
}

// ResearchData holds the article URLs gathered for the analysis
type ResearchData struct {
	URLs []string `json:"urls"`
}

// CleanupResult reports how many rows were removed per table
type CleanupResult struct {
	Analyses int64
	Articles int64
}
