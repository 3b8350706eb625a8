package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

var postgresDialect = dialect{
	name: "postgres",
	createTable: `CREATE TABLE IF NOT EXISTS announcements (
		external_id  TEXT PRIMARY KEY,
		announced_at TIMESTAMPTZ NOT NULL
	)`,
	encodeTime: func(t time.Time) any { return t.UTC() },
	deleteStale: func(b sq.StatementBuilderType, keep []string) sq.DeleteBuilder {
		return b.Delete(announcementsTable).
			Where(fmt.Sprintf("NOT (%s = ANY(?))", idColumn), pq.StringArray(keep))
	},
}

// NewPostgresStore connects, pings, and creates the announcements table if needed.
func NewPostgresStore(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := newPostgresStore(db)
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func newPostgresStore(db *sql.DB) *SQLStore {
	return newSQLStore(db, postgresDialect, sq.Dollar)
}
