package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS searches the gifts document stored in the postgres blob table. It is
// the fallback when Meilisearch is down and the registry runs on postgres.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; the registry itself needs postgres.
func (p *PgFTS) Healthy() bool {
	return true
}

const pgftsGifts = `
	SELECT g->>'giftId' AS gift_id,
		coalesce(g->>'title', '') AS title,
		ts_headline('simple', coalesce(g->>'shortDescription', ''), plainto_tsquery('simple', $2), 'MaxFragments=1,MaxWords=30') AS snippet,
		coalesce(g->>'status', '') AS status,
		ts_rank(to_tsvector('simple', coalesce(g->>'title', '') || ' ' || coalesce(g->>'shortDescription', '')), plainto_tsquery('simple', $2)) AS rank
	FROM registry_blobs b,
		LATERAL (SELECT convert_from(b.value, 'UTF8')::jsonb AS doc) d,
		LATERAL jsonb_array_elements(
			CASE WHEN jsonb_typeof(d.doc->'gifts') = 'array' THEN d.doc->'gifts' ELSE '[]'::jsonb END
		) g
	WHERE b.key = $1
		AND g->>'giftId' IS NOT NULL
		AND to_tsvector('simple', coalesce(g->>'title', '') || ' ' || coalesce(g->>'shortDescription', '')) @@ plainto_tsquery('simple', $2)`

// Search runs plainto_tsquery over the titles and descriptions of the gifts
// of q.Version.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" || q.Version == "" {
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
	key := "versions/" + q.Version + "/data/gifts.json"

	ctx := context.Background()

	var total int
	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub", pgftsGifts)
	if err := p.db.QueryRowContext(ctx, countSQL, key, q.Text).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`SELECT gift_id, title, snippet, status
		FROM (%s) sub
		ORDER BY rank DESC, gift_id
		LIMIT %d OFFSET %d`, pgftsGifts, limit, offset)
	rows, err := p.db.QueryContext(ctx, dataSQL, key, q.Text)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		r := Result{Version: q.Version}
		if err := rows.Scan(&r.GiftID, &r.Title, &r.Snippet, &r.Status); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.ID = q.Version + "_" + unsafeIDChars.ReplaceAllString(r.GiftID, "-")
		results = append(results, r)
	}
	return results, total, rows.Err()
}
