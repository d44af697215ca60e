package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"melodex/internal/logging"
	"melodex/internal/metrics"
)

// Default timeout for store operations
const defaultTimeout = 5 * time.Second

// DefaultBatchSize is the maximum number of keys deleted per transaction
// when no explicit batch size is configured.
const DefaultBatchSize = 100

// ErrNotFound is returned when a key does not exist in a collection.
var ErrNotFound = errors.New("store: key not found")

// Store manages the flat keyspace used by the catalog engine.
type Store struct {
	db        *sql.DB
	dbPath    string
	mu        sync.RWMutex
	txStart   time.Time
	batchSize int
}

// New opens (creating if necessary) the store at dbPath.
// dbPath must be the full path to the database file (e.g.
// "/database/catalog.db") and the parent directory must be writable.
func New(ctx context.Context, dbPath string) (*Store, error) {
	logging.Info("Store path: %s", dbPath)

	if err := diagnosePermissions(dbPath); err != nil {
		logging.Warn("Store permission diagnostics: %v", err)
	}

	// WAL mode plus busy_timeout to avoid "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close store after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to store: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:        db,
		dbPath:    dbPath,
		batchSize: DefaultBatchSize,
	}

	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close store after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize store schema: %w", err)
	}

	logging.Info("Store initialized successfully at %s", dbPath)
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		collection TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		PRIMARY KEY (collection, key)
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetBatchSize configures the bounded batch size used by DeleteKeys.
// Values below 1 are ignored.
func (s *Store) SetBatchSize(n int) {
	if n >= 1 {
		s.batchSize = n
	}
}

// BatchSize returns the configured bounded batch size.
func (s *Store) BatchSize() int {
	return s.batchSize
}

// Get returns the raw value stored under (collection, key).
// Returns ErrNotFound if the key does not exist.
func (s *Store) Get(ctx context.Context, collection, key string) ([]byte, error) {
	start := time.Now()
	var err error
	defer func() { recordOp("get", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value []byte
	err = s.db.QueryRowContext(ctx,
		"SELECT value FROM records WHERE collection = ? AND key = ?",
		collection, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, key, err)
	}
	return value, nil
}

// Has reports whether (collection, key) exists.
func (s *Store) Has(ctx context.Context, collection, key string) (bool, error) {
	_, err := s.Get(ctx, collection, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Put writes value under (collection, key), replacing any existing value.
func (s *Store) Put(ctx context.Context, collection, key string, value []byte) error {
	start := time.Now()
	var err error
	defer func() { recordOp("put", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (collection, key, value, updated_at)
		VALUES (?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(collection, key) DO UPDATE SET
			value = excluded.value,
			updated_at = strftime('%s', 'now')
	`, collection, key, value)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, key, err)
	}
	return nil
}

// Delete removes (collection, key). Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	start := time.Now()
	var err error
	defer func() { recordOp("delete", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx,
		"DELETE FROM records WHERE collection = ? AND key = ?",
		collection, key,
	)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, key, err)
	}
	return nil
}

// Each invokes fn for every (key, value) pair in a collection.
// Iteration order is by key. Returning an error from fn stops iteration.
func (s *Store) Each(ctx context.Context, collection string, fn func(key string, value []byte) error) error {
	start := time.Now()
	var err error
	defer func() { recordOp("each", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT key, value FROM records WHERE collection = ? ORDER BY key",
		collection,
	)
	if err != nil {
		return fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value []byte
		if err = rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("scan %s: %w", collection, err)
		}
		if err = fn(key, value); err != nil {
			return err
		}
	}
	err = rows.Err()
	return err
}

// Keys returns every key in a collection, sorted.
func (s *Store) Keys(ctx context.Context, collection string) ([]string, error) {
	var keys []string
	err := s.Each(ctx, collection, func(key string, _ []byte) error {
		keys = append(keys, key)
		return nil
	})
	return keys, err
}

// Count returns the number of records in a collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	start := time.Now()
	var err error
	defer func() { recordOp("count", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM records WHERE collection = ?", collection,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

// BeginBatch starts a transaction for grouped writes.
// The caller is responsible for calling EndBatch when done.
func (s *Store) BeginBatch() (*sql.Tx, error) {
	s.mu.Lock()
	txStart := time.Now()

	// Transaction lifetime is managed by EndBatch, not a timeout context;
	// a deferred cancel here would kill the transaction on return.
	tx, err := s.db.BeginTx(context.Background(), nil)
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	s.txStart = txStart
	return tx, nil
}

// EndBatch commits or rolls back a transaction.
func (s *Store) EndBatch(tx *sql.Tx, err error) error {
	duration := time.Since(s.txStart).Seconds()

	if err != nil {
		metrics.StoreOpDuration.WithLabelValues("rollback").Observe(duration)
		rbErr := tx.Rollback()
		if rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.StoreOpDuration.WithLabelValues("commit").Observe(duration)
	metrics.StoreBatchCommits.Inc()
	return tx.Commit()
}

// PutTx writes a record within a transaction.
func (s *Store) PutTx(tx *sql.Tx, collection, key string, value []byte) error {
	_, err := tx.ExecContext(context.Background(), `
		INSERT INTO records (collection, key, value, updated_at)
		VALUES (?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(collection, key) DO UPDATE SET
			value = excluded.value,
			updated_at = strftime('%s', 'now')
	`, collection, key, value)
	return err
}

// DeleteTx removes a record within a transaction.
func (s *Store) DeleteTx(tx *sql.Tx, collection, key string) error {
	_, err := tx.ExecContext(context.Background(),
		"DELETE FROM records WHERE collection = ? AND key = ?",
		collection, key,
	)
	return err
}

// DeleteKeys removes the given keys from a collection in bounded batches,
// committing at most BatchSize keys per transaction so each commit stays
// small and retry-friendly. It returns the number of keys deleted and the
// number of commits performed.
func (s *Store) DeleteKeys(ctx context.Context, collection string, keys []string) (deleted, commits int, err error) {
	for start := 0; start < len(keys); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return deleted, commits, err
		}

		end := start + s.batchSize
		if end > len(keys) {
			end = len(keys)
		}
		batch := keys[start:end]

		tx, err := s.BeginBatch()
		if err != nil {
			return deleted, commits, fmt.Errorf("begin delete batch: %w", err)
		}

		var batchErr error
		for _, key := range batch {
			if batchErr = s.DeleteTx(tx, collection, key); batchErr != nil {
				break
			}
		}

		if err := s.EndBatch(tx, batchErr); err != nil {
			return deleted, commits, fmt.Errorf("delete batch %s: %w", collection, err)
		}

		deleted += len(batch)
		commits++
	}
	return deleted, commits, nil
}

// DropCollection removes every record in a collection unconditionally.
// Used by the hard reset to force a full rebuild.
func (s *Store) DropCollection(ctx context.Context, collection string) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordOp("drop_collection", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM records WHERE collection = ?", collection,
	)
	if err != nil {
		return 0, fmt.Errorf("drop %s: %w", collection, err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

// Vacuum reclaims space after large deletions.
func (s *Store) Vacuum() error {
	start := time.Now()
	var err error
	defer func() { recordOp("vacuum", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	_, err = s.db.ExecContext(ctx, "VACUUM")
	return err
}

// UpdateMetrics refreshes store connection gauges.
func (s *Store) UpdateMetrics() {
	stats := s.db.Stats()
	metrics.StoreConnectionsOpen.Set(float64(stats.OpenConnections))
}

// recordOp records store operation metrics
func recordOp(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil && !errors.Is(err, ErrNotFound) {
		status = "error"
	}
	metrics.StoreOpsTotal.WithLabelValues(operation, status).Inc()
	metrics.StoreOpDuration.WithLabelValues(operation).Observe(duration)
}

// diagnosePermissions checks store directory and file permissions
func diagnosePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat store directory: %w", err)
	}

	logging.Debug("Store directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("store directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	if dbInfo, err := os.Stat(dbPath); err == nil {
		logging.Debug("Store file exists: %s (mode: %v, size: %d bytes)", dbPath, dbInfo.Mode(), dbInfo.Size())
		if dbInfo.Mode().Perm()&0o200 == 0 {
			logging.Warn("Store file is read-only! Mode: %v", dbInfo.Mode())
		}
	}

	// WAL sidecar files must stay writable too
	for _, suffix := range []string{"-wal", "-shm"} {
		sidecar := dbPath + suffix
		if info, err := os.Stat(sidecar); err == nil && info.Mode().Perm()&0o200 == 0 {
			logging.Warn("%s is read-only! Mode: %v - this will cause write failures", sidecar, info.Mode())
			if chmodErr := os.Chmod(sidecar, 0o600); chmodErr != nil {
				logging.Error("Failed to fix %s permissions: %v", sidecar, chmodErr)
			} else {
				logging.Info("Fixed %s permissions", sidecar)
			}
		}
	}

	return nil
}
