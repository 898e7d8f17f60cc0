// Package persistence provides the Postgres store for imported articles and analyses
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq" // Postgres driver and array types
)

// DefaultPingTimeout bounds the connection check in Open
const DefaultPingTimeout = 5 * time.Second

// PostgresDB implements Database for PostgreSQL
type PostgresDB struct {
	db       *sql.DB
	articles *postgresArticleRepo
	analyses *postgresAnalysisRepo
}

// Open connects to PostgreSQL and verifies the connection
func Open(connectionString string, pingTimeout time.Duration) (*PostgresDB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if pingTimeout <= 0 {
		pingTimeout = DefaultPingTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return New(db), nil
}

// New wraps an existing connection pool
func New(db *sql.DB) *PostgresDB {
	return &PostgresDB{
		db:       db,
		articles: &postgresArticleRepo{db: db},
		analyses: &postgresAnalysisRepo{db: db},
	}
}

func (p *PostgresDB) Articles() ArticleRepository  { return p.articles }
func (p *PostgresDB) Analyses() AnalysisRepository { return p.analyses }

func (p *PostgresDB) Close() error {
	return p.db.Close()
}

func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Cleanup deletes topic_analyses before raw_articles so analysis rows never
// point at articles that are gone.
func (p *PostgresDB) Cleanup(ctx context.Context) (CleanupResult, error) {
	var res CleanupResult
	err := withTx(ctx, p.db, func(tx *sql.Tx) error {
		n, err := execCount(ctx, tx, `DELETE FROM topic_analyses`)
		if err != nil {
			return fmt.Errorf("failed to clear topic_analyses: %w", err)
		}
		res.Analyses = n

		n, err = execCount(ctx, tx, `DELETE FROM raw_articles`)
		if err != nil {
			return fmt.Errorf("failed to clear raw_articles: %w", err)
		}
		res.Articles = n
		return nil
	})
	return res, err
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func execCount(ctx context.Context, q querier, query string, args ...interface{}) (int64, error) {
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// postgresArticleRepo implements ArticleRepository for PostgreSQL
type postgresArticleRepo struct {
	db *sql.DB
}

func (r *postgresArticleRepo) Upsert(ctx context.Context, articles []RawArticle) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO raw_articles (topic, article_name, content, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (topic, article_name) DO UPDATE SET
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			updated_at = NOW()
	`

	count := 0
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, a := range articles {
			metadata, err := json.Marshal(a.Metadata)
			if err != nil {
				return fmt.Errorf("failed to marshal metadata: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, a.Topic, a.ArticleName, a.Content, metadata); err != nil {
				return fmt.Errorf("failed to upsert article %q: %w", a.ArticleName, err)
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *postgresArticleRepo) IDsByTopic(ctx context.Context, topic string) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM raw_articles WHERE topic = $1 ORDER BY id`, topic)
	if err != nil {
		return nil, fmt.Errorf("failed to query article ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// postgresAnalysisRepo implements AnalysisRepository for PostgreSQL
type postgresAnalysisRepo struct {
	db *sql.DB
}

func (r *postgresAnalysisRepo) Insert(ctx context.Context, analyses []TopicAnalysisRow) (int, error) {
	if len(analyses) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO topic_analyses (topic, analysis, keywords, source_article_ids, research_data)
		VALUES ($1, $2, $3, $4, $5)
	`

	count := 0
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, a := range analyses {
			research := a.Research
			if research.URLs == nil {
				research.URLs = []string{}
			}
			data, err := json.Marshal(research)
			if err != nil {
				return fmt.Errorf("failed to marshal research data: %w", err)
			}
			keywords := a.Keywords
			if keywords == nil {
				keywords = []string{}
			}
			ids := a.SourceArticleIDs
			if ids == nil {
				ids = []int64{}
			}
			if _, err := tx.ExecContext(ctx, query,
				a.Topic, a.Analysis, pq.Array(keywords), pq.Array(ids), data); err != nil {
				return fmt.Errorf("failed to insert analysis for %q: %w", a.Topic, err)
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

var _ Database = (*PostgresDB)(nil)
