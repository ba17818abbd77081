package search

import (
	"context"
	"database/sql"
	"fmt"
)

// PgTitle is the Postgres fallback: a case-insensitive title match over the
// caller's accessible diagrams.
type PgTitle struct {
	db *sql.DB
}

func NewPgTitle(db *sql.DB) *PgTitle {
	return &PgTitle{db: db}
}

func (p *PgTitle) Search(ctx context.Context, q Query) ([]Result, error) {
	limit := q.Limit
	if limit == 0 {
		limit = 20
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, title, owner_email
		FROM diagrams
		WHERE (owner_id = $1 OR collaborators ? $1)
		  AND title ILIKE '%' || $2 || '%'
		ORDER BY updated_at DESC
		LIMIT $3
	`, q.UserID, q.Text, limit)
	if err != nil {
		return nil, fmt.Errorf("title search: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.OwnerEmail); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
