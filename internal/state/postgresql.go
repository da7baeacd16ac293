package state

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

// PostgreSQLStore 将文档保存在 keyring_state 表的一行 jsonb 中
type PostgreSQLStore struct {
	db  *sql.DB
	key string
}

// NewPostgreSQLStore 连接数据库并确保表存在
func NewPostgreSQLStore(ctx context.Context, dsn string, key string) (*PostgreSQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres connection")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to ping postgres")
	}

	query := `
		CREATE TABLE IF NOT EXISTS keyring_state (
			id         TEXT PRIMARY KEY,
			document   JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := db.ExecContext(ctx, query); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to create keyring_state table")
	}
	return &PostgreSQLStore{db: db, key: key}, nil
}

func (s *PostgreSQLStore) Load(ctx context.Context) ([]byte, error) {
	query := `SELECT document FROM keyring_state WHERE id = $1`
	var doc []byte
	err := s.db.QueryRowContext(ctx, query, s.key).Scan(&doc)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to load keyring state")
	}
	return doc, nil
}

func (s *PostgreSQLStore) Save(ctx context.Context, doc []byte) error {
	query := `
		INSERT INTO keyring_state (id, document, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET
			document = EXCLUDED.document,
			updated_at = NOW()
	`
	_, err := s.db.ExecContext(ctx, query, s.key, string(doc))
	if err != nil {
		return errors.Wrap(err, "failed to save keyring state")
	}
	return nil
}

func (s *PostgreSQLStore) Clear(ctx context.Context) error {
	query := `DELETE FROM keyring_state WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, s.key); err != nil {
		return errors.Wrap(err, "failed to clear keyring state")
	}
	return nil
}

func (s *PostgreSQLStore) Close() error {
	return s.db.Close()
}
