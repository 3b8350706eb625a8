package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite" // pure Go driver, registers "sqlite"
)

var sqliteDialect = dialect{
	name: "sqlite",
	createTable: `CREATE TABLE IF NOT EXISTS announcements (
		external_id  TEXT PRIMARY KEY,
		announced_at TEXT NOT NULL
	)`,
	encodeTime: func(t time.Time) any { return formatTimestamp(t) },
	deleteStale: func(b sq.StatementBuilderType, keep []string) sq.DeleteBuilder {
		return b.Delete(announcementsTable).Where(sq.NotEq{idColumn: keep})
	},
}

// NewSQLiteStore opens (or creates) the database file and its table.
func NewSQLiteStore(ctx context.Context, path string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}

	store := newSQLStore(db, sqliteDialect, sq.Question)
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}
