package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// PgQuerier is the part of *pgxpool.Pool the index uses.
type PgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// PgIndex is a VectorIndex over a pgvector table:
//
//	CREATE TABLE documents (
//		id        text PRIMARY KEY,
//		content   text NOT NULL,
//		metadata  jsonb NOT NULL DEFAULT '{}',
//		embedding vector(1536) NOT NULL
//	);
type PgIndex struct {
	db    PgQuerier
	table string
	name  string
}

func NewPgIndex(db PgQuerier, table string) *PgIndex {
	return &PgIndex{
		db:    db,
		table: pgx.Identifier{table}.Sanitize(),
		name:  table,
	}
}

// SimilaritySearch ranks by cosine similarity (1 - cosine distance).
func (r *PgIndex) SimilaritySearch(ctx context.Context, embedding []float32, opts SearchOptions) ([]ScoredDocument, error) {
	limit := opts.K
	if limit <= 0 {
		limit = DefaultTopK
	}

	vec := pgvector.NewVector(embedding)

	sql := fmt.Sprintf(`
		SELECT id, content, COALESCE(metadata::text, '{}'), 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2
	`, r.table)
	args := []any{vec, limit}

	if opts.MinScore != nil {
		sql = fmt.Sprintf(`
			SELECT id, content, COALESCE(metadata::text, '{}'), 1 - (embedding <=> $1) AS score
			FROM %s
			WHERE 1 - (embedding <=> $1) >= $3
			ORDER BY embedding <=> $1
			LIMIT $2
		`, r.table)
		args = append(args, *opts.MinScore)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, pgIndexError("similarity search", err)
	}
	defer rows.Close()

	var docs []ScoredDocument
	for rows.Next() {
		var (
			d    ScoredDocument
			meta string
		)
		if err := rows.Scan(&d.ID, &d.Text, &meta, &d.Score); err != nil {
			return nil, pgIndexError("scan search row", err)
		}
		if err := json.Unmarshal([]byte(meta), &d.Metadata); err != nil {
			d.Metadata = nil
		}
		docs = append(docs, d)
	}

	if err := rows.Err(); err != nil {
		return nil, pgIndexError("similarity search", err)
	}
	return docs, nil
}

func (r *PgIndex) Insert(ctx context.Context, doc Document) error {
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if doc.Metadata == nil {
		meta = []byte("{}")
	}

	_, err = r.db.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, content, metadata, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET content = EXCLUDED.content, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding
	`, r.table),
		doc.ID,
		doc.Text,
		string(meta),
		pgvector.NewVector(doc.Embedding),
	)
	if err != nil {
		return pgIndexError("insert document", err)
	}
	return nil
}

// Describe reads the declared dimension of the embedding column, e.g.
// "vector(1536)".
func (r *PgIndex) Describe(ctx context.Context) (IndexInfo, error) {
	var typ string
	err := r.db.QueryRow(ctx, `
		SELECT format_type(a.atttypid, a.atttypmod)
		FROM pg_attribute a
		WHERE a.attrelid = to_regclass($1) AND a.attname = 'embedding' AND NOT a.attisdropped
	`, r.table).Scan(&typ)
	if errors.Is(err, pgx.ErrNoRows) {
		return IndexInfo{}, NewPipelineError(KindIndexNotFound, "describe index",
			fmt.Errorf("table %s has no embedding column", r.name))
	}
	if err != nil {
		return IndexInfo{}, pgIndexError("describe index", err)
	}

	info := IndexInfo{Name: r.name, Backend: "pgvector"}
	if _, err := fmt.Sscanf(typ, "vector(%d)", &info.Dimension); err != nil {
		info.Dimension = 0
	}
	return info, nil
}

// pgIndexError maps missing tables/columns to IndexNotFound and everything
// else to IndexUnavailable.
func pgIndexError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P01", "42703":
			return NewPipelineError(KindIndexNotFound, op, err)
		}
	}
	return NewPipelineError(KindIndexUnavailable, op, err)
}

var _ VectorIndex = (*PgIndex)(nil)
