package journal

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/core"
	"github.com/Adamant-im/adamant-coinoptimus-sub001/pkg/retry"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id           TEXT PRIMARY KEY,
	purpose      TEXT NOT NULL,
	pair         TEXT NOT NULL,
	exchange     TEXT NOT NULL,
	side         TEXT NOT NULL,
	ladder_index INTEGER NOT NULL,
	is_processed INTEGER NOT NULL,
	data         TEXT NOT NULL,
	checksum     BLOB NOT NULL,
	updated_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_live
	ON orders (purpose, pair, exchange, is_processed);

CREATE TABLE IF NOT EXISTS params (
	key        TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// SQLiteStore persists order records and ladder parameters in a single
// SQLite database. It implements Store and core.IParamStore.
type SQLiteStore struct {
	db  *sql.DB
	key string // params row key, one per pair+exchange
}

// NewSQLiteStore opens (and if needed initializes) the journal database.
func NewSQLiteStore(dbPath, pair, exchange string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// WAL mode for crash recovery
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:  db,
		key: fmt.Sprintf("ladder:%s:%s", exchange, pair),
	}, nil
}

// LiveOrders returns non-processed records ordered by side then index.
func (s *SQLiteStore) LiveOrders(ctx context.Context, purpose, pair, exchange string) ([]*OrderRecord, error) {
	query := `SELECT data, checksum FROM orders
		WHERE purpose = ? AND pair = ? AND exchange = ? AND is_processed = 0
		ORDER BY side, ladder_index`
	rows, err := s.db.QueryContext(ctx, query, purpose, pair, exchange)
	if err != nil {
		return nil, fmt.Errorf("failed to query live orders: %w", err)
	}
	defer rows.Close()

	var records []*OrderRecord
	for rows.Next() {
		var data string
		var storedChecksum []byte
		if err := rows.Scan(&data, &storedChecksum); err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		if err := verifyChecksum([]byte(data), storedChecksum); err != nil {
			return nil, err
		}

		var rec OrderRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal order record: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Save writes the whole record, atomically per record.
func (s *SQLiteStore) Save(ctx context.Context, rec *OrderRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal order record: %w", err)
	}
	checksum := sha256.Sum256(data)

	processed := 0
	if rec.IsProcessed {
		processed = 1
	}

	query := `INSERT OR REPLACE INTO orders
		(id, purpose, pair, exchange, side, ladder_index, is_processed, data, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	err = s.exec(ctx, query,
		rec.ID, rec.Purpose, rec.Pair, rec.Exchange, string(rec.Side),
		rec.LadderIndex, processed, string(data), checksum[:], time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to write order record: %w", err)
	}
	return nil
}

// exec runs a write, retrying transient lock contention. Under WAL a write can
// race a checkpoint and report the database busy.
func (s *SQLiteStore) exec(ctx context.Context, query string, args ...interface{}) error {
	return retry.Do(ctx, retry.DefaultPolicy, isBusy, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

// Update rewrites an existing record. With flush set a WAL checkpoint forces
// the write to the main database file.
func (s *SQLiteStore) Update(ctx context.Context, rec *OrderRecord, flush bool) error {
	if err := s.Save(ctx, rec); err != nil {
		return err
	}
	if flush {
		if err := s.exec(ctx, "PRAGMA wal_checkpoint(PASSIVE)"); err != nil {
			return fmt.Errorf("failed to checkpoint: %w", err)
		}
	}
	return nil
}

// LoadParams implements core.IParamStore. A missing row yields zero params.
func (s *SQLiteStore) LoadParams(ctx context.Context) (*core.LadderParams, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM params WHERE key = ?`, s.key).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return &core.LadderParams{}, nil
		}
		return nil, fmt.Errorf("failed to read params: %w", err)
	}

	var params core.LadderParams
	if err := json.Unmarshal([]byte(data), &params); err != nil {
		return nil, fmt.Errorf("failed to unmarshal params: %w", err)
	}
	return &params, nil
}

// SaveParams implements core.IParamStore.
func (s *SQLiteStore) SaveParams(ctx context.Context, params *core.LadderParams) error {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	err = s.exec(ctx,
		`INSERT OR REPLACE INTO params (key, data, updated_at) VALUES (?, ?, ?)`,
		s.key, string(data), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to write params: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func verifyChecksum(data, stored []byte) error {
	computed := sha256.Sum256(data)
	if len(stored) != len(computed) {
		return fmt.Errorf("checksum length mismatch: expected %d, got %d", len(computed), len(stored))
	}
	for i := range computed {
		if stored[i] != computed[i] {
			return fmt.Errorf("checksum verification failed: data corruption detected")
		}
	}
	return nil
}
