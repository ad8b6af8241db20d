package clients

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver

	"github.com/clearbrook-health/patient-portal/pkg/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS cached_clients (
	record_id   TEXT PRIMARY KEY,
	email       TEXT,
	first_name  TEXT,
	last_name   TEXT,
	phone       TEXT,
	status      TEXT,
	created_at  TEXT,
	modified_at TEXT,
	synced_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cached_clients_email ON cached_clients(email);
CREATE TABLE IF NOT EXISTS sync_state (
	id             INTEGER PRIMARY KEY CHECK (id = 1),
	last_sync      TEXT,
	last_record_id TEXT,
	total_records  INTEGER NOT NULL DEFAULT 0
);
INSERT OR IGNORE INTO sync_state (id) VALUES (1);
`

// Cache is a durable local mirror of upstream client records, keyed by
// the upstream record id, with a singleton sync-state row alongside.
type Cache struct {
	db     *sql.DB
	logger *logging.Logger
	now    func() time.Time
}

// CacheConfig configures a Cache.
type CacheConfig struct {
	// Path is the SQLite database file. ":memory:" is valid for tests.
	Path   string
	Logger *logging.Logger

	// Now overrides the clock, used by staleness tests.
	Now func() time.Time
}

// NewCache opens (creating if needed) the cache database and bootstraps
// the schema. Bootstrap is idempotent and safe to run on every startup.
func NewCache(cfg CacheConfig) (*Cache, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("clients: cache path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("clients: open cache db: %w", err)
	}
	// A single pooled connection serializes writers and keeps ":memory:"
	// databases from splitting across connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("clients: bootstrap schema: %w", err)
	}

	return &Cache{db: db, logger: logger, now: now}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

const recordColumns = `record_id, email, first_name, last_name, phone, status, created_at, modified_at, synced_at`

// GetByEmail returns the most authoritative cached record for an email,
// or nil when no record matches. Upstream data may carry the same email
// on several records; the most recently modified wins, creation time
// breaks ties.
func (c *Cache) GetByEmail(ctx context.Context, email string) (*ClientRecord, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, nil
	}

	row := c.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM cached_clients
		WHERE email = ?
		ORDER BY modified_at DESC, created_at DESC
		LIMIT 1
	`, email)
	return scanRecord(row)
}

// GetByRecordID returns the cached record for an upstream id, or nil.
func (c *Cache) GetByRecordID(ctx context.Context, recordID string) (*ClientRecord, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM cached_clients
		WHERE record_id = ?
	`, recordID)
	return scanRecord(row)
}

// UpsertOne inserts or updates a single record keyed by record id.
// A record without an id is rejected with a logged warning and a false
// return, not an error; callers must check the boolean. Storage errors
// are returned.
func (c *Cache) UpsertOne(ctx context.Context, rec ClientRecord) (bool, error) {
	ok, err := upsertRecord(ctx, c.db, c.logger, c.now(), rec)
	if err != nil {
		return false, fmt.Errorf("clients: upsert %s: %w", rec.RecordID, err)
	}
	return ok, nil
}

// UpsertBatch applies UpsertOne semantics to every record inside one
// transaction. A malformed or failing record is logged and skipped so a
// single bad record never aborts the batch. Returns the count applied.
func (c *Cache) UpsertBatch(ctx context.Context, recs []ClientRecord) (int, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("clients: begin batch: %w", err)
	}
	defer tx.Rollback()

	now := c.now()
	applied := 0
	for _, rec := range recs {
		ok, err := upsertRecord(ctx, tx, c.logger, now, rec)
		if err != nil {
			c.logger.Warn("skipping record in batch upsert", "record_id", rec.RecordID, "error", err)
			continue
		}
		if ok {
			applied++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("clients: commit batch: %w", err)
	}
	return applied, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertRecord(ctx context.Context, db execer, logger *logging.Logger, now time.Time, rec ClientRecord) (bool, error) {
	if strings.TrimSpace(rec.RecordID) == "" {
		logger.Warn("rejecting client record without record_id", "email", rec.Email)
		return false, nil
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO cached_clients (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(record_id) DO UPDATE SET
			email       = excluded.email,
			first_name  = excluded.first_name,
			last_name   = excluded.last_name,
			phone       = excluded.phone,
			status      = excluded.status,
			modified_at = excluded.modified_at,
			synced_at   = excluded.synced_at
	`,
		rec.RecordID,
		NormalizeEmail(rec.Email),
		rec.FirstName,
		rec.LastName,
		rec.Phone,
		rec.Status,
		rec.CreatedAt,
		rec.ModifiedAt,
		now.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, err
	}
	return true, nil
}

// SyncState reads the singleton sync-state row.
func (c *Cache) SyncState(ctx context.Context) (*SyncState, error) {
	var (
		lastSync     sql.NullString
		lastRecordID sql.NullString
		total        int
	)
	err := c.db.QueryRowContext(ctx, `
		SELECT last_sync, last_record_id, total_records
		FROM sync_state
		WHERE id = 1
	`).Scan(&lastSync, &lastRecordID, &total)
	if err != nil {
		return nil, fmt.Errorf("clients: read sync state: %w", err)
	}

	state := &SyncState{
		LastRecordID: lastRecordID.String,
		TotalRecords: total,
	}
	if lastSync.Valid && lastSync.String != "" {
		if ts, err := parseStoredTime(lastSync.String); err == nil {
			state.LastSync = ts
		}
	}
	return state, nil
}

// UpdateSyncState partially updates the singleton: only non-nil fields
// change. Calling it always stamps last_sync to the current time; this
// call is what "a sync happened" means.
func (c *Cache) UpdateSyncState(ctx context.Context, lastRecordID *string, totalRecords *int) error {
	_, err := c.db.ExecContext(ctx, `
		UPDATE sync_state SET
			last_sync      = ?,
			last_record_id = COALESCE(?, last_record_id),
			total_records  = COALESCE(?, total_records)
		WHERE id = 1
	`,
		c.now().UTC().Format(time.RFC3339Nano),
		lastRecordID,
		totalRecords,
	)
	if err != nil {
		return fmt.Errorf("clients: update sync state: %w", err)
	}
	return nil
}

// TotalCached returns the number of records in the cache.
func (c *Cache) TotalCached(ctx context.Context) (int, error) {
	var total int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cached_clients`).Scan(&total); err != nil {
		return 0, fmt.Errorf("clients: count cached: %w", err)
	}
	return total, nil
}

// NeedsSync reports whether the cache is stale: no sync has ever run,
// the stored timestamp is unreadable, or it is older than maxAge. Any
// failure reading the state fails open toward refreshing.
func (c *Cache) NeedsSync(ctx context.Context, maxAge time.Duration) bool {
	var lastSync sql.NullString
	err := c.db.QueryRowContext(ctx, `SELECT last_sync FROM sync_state WHERE id = 1`).Scan(&lastSync)
	if err != nil {
		return true
	}
	if !lastSync.Valid || lastSync.String == "" {
		return true
	}
	ts, err := parseStoredTime(lastSync.String)
	if err != nil {
		return true
	}
	return c.now().Sub(ts) > maxAge
}

func parseStoredTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, s)
}

func scanRecord(row *sql.Row) (*ClientRecord, error) {
	var (
		rec      ClientRecord
		syncedAt string
	)
	err := row.Scan(
		&rec.RecordID,
		&rec.Email,
		&rec.FirstName,
		&rec.LastName,
		&rec.Phone,
		&rec.Status,
		&rec.CreatedAt,
		&rec.ModifiedAt,
		&syncedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("clients: scan record: %w", err)
	}
	if ts, err := parseStoredTime(syncedAt); err == nil {
		rec.SyncedAt = ts
	}
	return &rec, nil
}
