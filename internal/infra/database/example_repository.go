package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/xavierca1/sherpa/internal/entity"
)

type ExampleRepository struct {
	DB *DB
}

func NewExampleRepository(db *DB) *ExampleRepository {
	return &ExampleRepository{DB: db}
}

func (r *ExampleRepository) CreateExample(ctx context.Context, ex *entity.TrainingExample) error {
	query := `INSERT INTO examples (id, channel, content, context, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := r.DB.ExecContext(ctx, r.DB.rebind(query),
		ex.ID,
		string(ex.Channel),
		ex.Content,
		nullString(ex.Context),
		ex.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("database: create example: %w", err)
	}
	return nil
}

func (r *ExampleRepository) ListExamples(ctx context.Context, ch entity.Channel) ([]*entity.TrainingExample, error) {
	query := `SELECT id, channel, content, context, created_at FROM examples`
	var args []any
	if ch != "" {
		query += ` WHERE channel = ?`
		args = append(args, string(ch))
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.DB.QueryContext(ctx, r.DB.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("database: list examples: %w", err)
	}
	defer rows.Close()

	var out []*entity.TrainingExample
	for rows.Next() {
		var (
			ex      entity.TrainingExample
			channel string
			note    sql.NullString
		)
		if err := rows.Scan(&ex.ID, &channel, &ex.Content, &note, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("database: scan example: %w", err)
		}
		ex.Channel = entity.Channel(channel)
		ex.Context = note.String
		ex.CreatedAt = ex.CreatedAt.UTC()
		out = append(out, &ex)
	}
	return out, rows.Err()
}

func (r *ExampleRepository) DeleteExample(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, r.DB.rebind(`DELETE FROM examples WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("database: delete example: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return entity.ErrExampleNotFound
	}
	return nil
}
