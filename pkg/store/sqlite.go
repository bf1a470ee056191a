package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
	"go.uber.org/zap"
)

// SQLiteStore is an alternative Store engine for hosts that can't or
// don't want to run Redis (spec §4.2 design notes: "a pluggable
// abstraction, not a Redis-only one"). Each queue gets its own table,
// keyed by a uuid primary key with a timestamp index standing in for
// Redis's sorted set.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (creating if absent) the sqlite file at path.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "store: open sqlite")
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func tableName(dataType string, wrapped bool) string {
	kind := "raw"
	if wrapped {
		kind = "wrapped"
	}
	return "chouette_" + dataType + "_" + kind
}

func (s *SQLiteStore) ensureTable(ctx context.Context, table string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %q (
			id TEXT PRIMARY KEY,
			ts REAL NOT NULL,
			payload BLOB NOT NULL
		)`, table))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %q ON %q (ts)`, table+"_ts_idx", table))
	return err
}

func (s *SQLiteStore) StoreRecords(ctx context.Context, dataType string, wrapped bool, records []Record) error {
	table := tableName(dataType, wrapped)
	if err := s.ensureTable(ctx, table); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %q (id, ts, payload) VALUES (?, ?, ?)`, table))
	if err != nil {
		return err
	}
	defer stmt.Close()

	stored := 0
	for _, rec := range records {
		payload, err := rec.AsDict()
		if err != nil {
			continue
		}
		if _, err := stmt.ExecContext(ctx, uuid.NewString(), rec.RecordTimestamp(), payload); err != nil {
			s.logger.Warn("could not stage record", zap.String("table", table), zap.Error(err))
			return err
		}
		stored++
	}
	if stored == 0 {
		return nil
	}
	return tx.Commit()
}

func (s *SQLiteStore) CollectKeys(ctx context.Context, dataType string, wrapped bool, amount int) ([]Key, error) {
	table := tableName(dataType, wrapped)
	if err := s.ensureTable(ctx, table); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT id, ts FROM %q ORDER BY ts ASC`, table)
	if amount > 0 {
		query += fmt.Sprintf(" LIMIT %d", amount)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		s.logger.Warn("could not collect keys", zap.String("table", table), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var k Key
		if err := rows.Scan(&k.ID, &k.Timestamp); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// CollectValues preserves the submission order of `keys` (spec §4.2),
// matching the Redis engine's HMGet behavior: `WHERE id IN (...)`
// alone doesn't guarantee row order, so results are re-sorted by the
// requested key order after the query returns.
func (s *SQLiteStore) CollectValues(ctx context.Context, dataType string, wrapped bool, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	table := tableName(dataType, wrapped)
	if err := s.ensureTable(ctx, table); err != nil {
		return nil, err
	}

	placeholders, args := inClause(keys)
	query := fmt.Sprintf(`SELECT id, payload FROM %q WHERE id IN (%s)`, table, placeholders)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Warn("could not collect values", zap.String("table", table), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string][]byte, len(keys))
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		byID[id] = payload
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	values := make([][]byte, 0, len(keys))
	for _, id := range keys {
		if payload, ok := byID[id]; ok {
			values = append(values, payload)
		}
	}
	return values, nil
}

func (s *SQLiteStore) DeleteRecords(ctx context.Context, dataType string, wrapped bool, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	table := tableName(dataType, wrapped)
	if err := s.ensureTable(ctx, table); err != nil {
		return err
	}
	placeholders, args := inClause(keys)
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %q WHERE id IN (%s)`, table, placeholders), args...)
	if err != nil {
		s.logger.Warn("could not delete records", zap.String("table", table), zap.Error(err))
	}
	return err
}

func (s *SQLiteStore) CleanupOutdatedRecords(ctx context.Context, dataType string, wrapped bool, ttl time.Duration) error {
	table := tableName(dataType, wrapped)
	if err := s.ensureTable(ctx, table); err != nil {
		return err
	}
	threshold := float64(time.Now().Add(-ttl).Unix())
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %q WHERE ts <= ?`, table), threshold)
	if err != nil {
		s.logger.Warn("could not cleanup outdated records", zap.String("table", table), zap.Error(err))
	}
	return err
}

func (s *SQLiteStore) GetQueueSize(ctx context.Context, dataType string, wrapped bool) int {
	table := tableName(dataType, wrapped)
	if err := s.ensureTable(ctx, table); err != nil {
		return -1
	}
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %q`, table)).Scan(&n)
	if err != nil {
		s.logger.Warn("could not calculate queue size", zap.String("table", table), zap.Error(err))
		return -1
	}
	return n
}

// inClause builds a "?,?,?" placeholder list and the matching args
// slice for a variadic IN (...) predicate.
func inClause(keys []string) (string, []interface{}) {
	placeholders := ""
	args := make([]interface{}, len(keys))
	for i, k := range keys {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args[i] = k
	}
	return placeholders, args
}
