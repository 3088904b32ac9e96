package vectorindex

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/yanqian/pave-study/internal/domain/retrieval"
)

var tableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresIndex stores question vectors in a pgvector table and ranks them by cosine distance.
type PostgresIndex struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresIndex constructs the index over table.
func NewPostgresIndex(pool *pgxpool.Pool, table string) (*PostgresIndex, error) {
	if table == "" {
		table = "question_vectors"
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid vector table name %q", table)
	}
	return &PostgresIndex{pool: pool, table: table}, nil
}

// EnsureSchema creates the extension and table when missing.
func (p *PostgresIndex) EnsureSchema(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("vector dimension must be positive")
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS ` + p.table + ` (
			id TEXT PRIMARY KEY,
			embedding vector(` + strconv.Itoa(dim) + `) NOT NULL,
			materia TEXT NOT NULL DEFAULT '',
			topico TEXT NOT NULL DEFAULT '',
			ano INT,
			etapa INT,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure vector schema: %w", err)
		}
	}
	return nil
}

// Upsert writes all vectors in one batch. Existing ids are overwritten.
func (p *PostgresIndex) Upsert(ctx context.Context, vectors []retrieval.Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, v := range vectors {
		batch.Queue(`
			INSERT INTO `+p.table+` (id, embedding, materia, topico, ano, etapa, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
			ON CONFLICT (id) DO UPDATE SET
				embedding = EXCLUDED.embedding,
				materia = EXCLUDED.materia,
				topico = EXCLUDED.topico,
				ano = EXCLUDED.ano,
				etapa = EXCLUDED.etapa,
				updated_at = NOW()
		`, v.ID, pgvector.NewVector(v.Values), v.Metadata.Materia, v.Metadata.Topico, v.Metadata.Ano, v.Metadata.Etapa)
	}
	return p.pool.SendBatch(ctx, batch).Close()
}

// Query returns up to topK matches scored as 1 - cosine distance.
func (p *PostgresIndex) Query(ctx context.Context, values []float32, topK int, filter retrieval.MetadataFilter) ([]retrieval.Match, error) {
	query, args := buildQuery(p.table, values, topK, filter)
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []retrieval.Match
	for rows.Next() {
		var m retrieval.Match
		if err := rows.Scan(&m.ID, &m.Score); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func buildQuery(table string, values []float32, topK int, filter retrieval.MetadataFilter) (string, []any) {
	if topK <= 0 {
		topK = 10
	}
	query := `
		SELECT id, 1 - (embedding <=> $1) AS score
		FROM ` + table + `
		WHERE TRUE`
	args := []any{pgvector.NewVector(values)}
	argPos := 2
	if filter.Materia != "" {
		query += ` AND materia = $` + strconv.Itoa(argPos)
		args = append(args, filter.Materia)
		argPos++
	}
	if filter.Ano != nil {
		query += ` AND ano = $` + strconv.Itoa(argPos)
		args = append(args, *filter.Ano)
		argPos++
	}
	if filter.Etapa != nil {
		query += ` AND etapa = $` + strconv.Itoa(argPos)
		args = append(args, *filter.Etapa)
		argPos++
	}
	query += ` ORDER BY embedding <=> $1 ASC, id ASC LIMIT $` + strconv.Itoa(argPos)
	args = append(args, topK)
	return query, args
}

var _ retrieval.VectorIndex = (*PostgresIndex)(nil)
