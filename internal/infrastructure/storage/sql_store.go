package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"

	"DealsScanner/internal/ports"
)

const (
	announcementsTable = "announcements"
	idColumn           = "external_id"
	announcedAtColumn  = "announced_at"
)

// SQLStore persists the ledger in a relational table shared by the SQLite and Postgres backends.
type SQLStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	dialect dialect
}

var _ ports.LedgerStore = (*SQLStore)(nil)

type dialect struct {
	name        string
	createTable string
	encodeTime  func(time.Time) any
	deleteStale func(b sq.StatementBuilderType, keep []string) sq.DeleteBuilder
}

func newSQLStore(db *sql.DB, d dialect, placeholders sq.PlaceholderFormat) *SQLStore {
	return &SQLStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholders),
		dialect: d,
	}
}

func (s *SQLStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.createTable); err != nil {
		return fmt.Errorf("create %s table on %s: %w", announcementsTable, s.dialect.name, err)
	}
	return nil
}

// Load reads every row. Rows with unreadable timestamps are skipped.
func (s *SQLStore) Load(ctx context.Context) (map[string]time.Time, error) {
	query, args, err := s.builder.
		Select(idColumn, announcedAtColumn).
		From(announcementsTable).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query announcements: %w", err)
	}

	entries := make(map[string]time.Time)
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan announcement: %w", err)
		}
		at, err := parseTimestamp(raw)
		if err != nil {
			continue
		}
		entries[id] = at
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return entries, nil
}

// Save upserts the snapshot and removes rows that are no longer part of it, in one transaction.
func (s *SQLStore) Save(ctx context.Context, entries map[string]time.Time) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	ids := sortedIDs(entries)
	if len(ids) > 0 {
		insert := s.builder.
			Insert(announcementsTable).
			Columns(idColumn, announcedAtColumn).
			Suffix(fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s = EXCLUDED.%s", idColumn, announcedAtColumn, announcedAtColumn))
		for _, id := range ids {
			insert = insert.Values(id, s.dialect.encodeTime(entries[id]))
		}

		query, args, buildErr := insert.ToSql()
		if buildErr != nil {
			return fmt.Errorf("build upsert: %w", buildErr)
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert announcements: %w", err)
		}
	}

	query, args, buildErr := s.dialect.deleteStale(s.builder, ids).ToSql()
	if buildErr != nil {
		return fmt.Errorf("build delete: %w", buildErr)
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete stale announcements: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// sortedIDs returns map keys in ascending order so generated statements are stable.
func sortedIDs(entries map[string]time.Time) []string {
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
