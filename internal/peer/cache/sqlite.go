package cache

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/peerchat/internal/dbx"
	"github.com/dmitrijs2005/peerchat/internal/peer/cache/migrations"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the cache in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// OpenSQLiteStore opens dsn with the modernc driver and migrates it.
func OpenSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases consistent.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Load(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT channel, content FROM cached_messages ORDER BY channel, position`)
	if err != nil {
		return nil, fmt.Errorf("failed to load cache: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]string)
	for rows.Next() {
		var channel, content string
		if err := rows.Scan(&channel, &content); err != nil {
			return nil, fmt.Errorf("failed to scan cache row: %w", err)
		}
		result[channel] = append(result[channel], content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cache rows: %w", err)
	}
	return result, nil
}

func (s *SQLiteStore) Save(ctx context.Context, pending map[string][]string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cached_messages`); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		for channel, contents := range pending {
			for i, content := range contents {
				_, err := tx.ExecContext(ctx,
					`INSERT INTO cached_messages (channel, position, content) VALUES (?, ?, ?)`,
					channel, i, content)
				if err != nil {
					return fmt.Errorf("failed to store cache[%s]: %w", channel, err)
				}
			}
		}
		return nil
	})
}
