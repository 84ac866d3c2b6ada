package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a
// fallback when Meilisearch is not available.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search queries the greetings fts column with plainto_tsquery,
// ranking with ts_rank and generating snippets with ts_headline.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where := "g.fts @@ plainto_tsquery('english', $1)"
	args := []any{q.Text}
	if q.AuthorID != "" {
		where += " AND g.author_id = $2"
		args = append(args, q.AuthorID)
	}

	query := fmt.Sprintf(`
		SELECT g.id, g.title,
			ts_headline('english', coalesce(g.content_text, ''), plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30') AS snippet,
			COUNT(*) OVER () AS total
		FROM greetings g
		WHERE %s
		ORDER BY ts_rank(g.fts, plainto_tsquery('english', $1)) DESC
		LIMIT %d OFFSET %d`, where, limit, offset)

	rows, err := p.db.QueryContext(context.Background(), query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts search: %w", err)
	}
	defer rows.Close()

	var results []Result
	total := 0
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.Snippet, &total); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords reads every greeting for reindexing into Meilisearch.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]GreetingRecord, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, author_id, title, content_text FROM greetings`)
	if err != nil {
		return nil, fmt.Errorf("load greetings for reindex: %w", err)
	}
	defer rows.Close()

	var records []GreetingRecord
	for rows.Next() {
		var r GreetingRecord
		if err := rows.Scan(&r.ID, &r.AuthorID, &r.Title, &r.Text); err != nil {
			return nil, fmt.Errorf("scan greeting for reindex: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
