package inventory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"mercator-hq/callisto/pkg/certstore"
)

// Config contains configuration for the observation store.
type Config struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables write-ahead logging for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// RetentionDays is how long observations are kept before pruning.
	// 0 keeps them forever.
	// Default: 90
	RetentionDays int
}

// DefaultConfig returns the default observation store configuration.
func DefaultConfig() *Config {
	return &Config{
		Path:          "data/certificates.db",
		MaxOpenConns:  10,
		MaxIdleConns:  5,
		WALMode:       true,
		BusyTimeout:   5 * time.Second,
		RetentionDays: 90,
	}
}

// Observation is one certificate file as seen by one index build.
type Observation struct {
	ID         string
	BuildID    string
	ObservedAt time.Time
	Path       string

	// Identities maps each name the certificate asserts to its sorted
	// service scopes.
	Identities map[string][]string

	NotBefore time.Time
	NotAfter  time.Time
}

// BuildSummary describes one recorded index build.
type BuildSummary struct {
	BuildID      string
	ObservedAt   time.Time
	Root         string
	Certificates int
	Skipped      int
	Duration     time.Duration
}

// Store persists certificate observations in SQLite, one row per file
// per index build. The history answers "what did the tree look like"
// questions that the in-memory index, which only holds the present,
// cannot.
type Store struct {
	db     *sql.DB
	config *Config
	logger *slog.Logger

	insertBuild *sql.Stmt
	insertObs   *sql.Stmt
}

// Open opens (and if necessary creates) the observation database.
func Open(config *Config) (*Store, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Path == "" {
		return nil, fmt.Errorf("inventory database path cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create inventory directory: %w", err)
	}

	journal := "DELETE"
	if config.WALMode {
		journal = "WAL"
	}
	// _pragma applies to every pooled connection, not just the first.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(%s)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		config.Path, journal, config.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open inventory database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &Store{
		db:     db,
		config: config,
		logger: slog.Default().With("component", "inventory"),
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("inventory opened",
		"path", config.Path,
		"wal_mode", config.WALMode,
		"retention_days", config.RetentionDays,
	)
	return s, nil
}

func (s *Store) initialize() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create inventory schema: %w", err)
	}
	if _, err := s.db.Exec(insertSchemaVersion, schemaVersion, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	var version int
	if err := s.db.QueryRow(getSchemaVersion).Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("inventory schema version mismatch: expected %d, got %d", schemaVersion, version)
	}
	return nil
}

func (s *Store) prepareStatements() error {
	var err error

	s.insertBuild, err = s.db.Prepare(`
		INSERT INTO builds (build_id, observed_at, root, certificates, skipped, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare build insert: %w", err)
	}

	s.insertObs, err = s.db.Prepare(`
		INSERT INTO observations (id, build_id, observed_at, path, identities, not_before, not_after)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare observation insert: %w", err)
	}
	return nil
}

// RecordBuild stores one observation per certificate in the index
// snapshot. Recording the same build twice is a no-op, so reload paths
// can record unconditionally. Retention is enforced after the insert.
func (s *Store) RecordBuild(ctx context.Context, idx *certstore.Index) error {
	if idx == nil {
		return nil
	}

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM builds WHERE build_id = ?`, idx.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check build %s: %w", idx.ID, err)
	}
	if exists > 0 {
		s.logger.Debug("build already recorded", "build_id", idx.ID)
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin inventory transaction: %w", err)
	}
	defer tx.Rollback()

	observedAt := idx.BuiltAt.Unix()
	_, err = tx.StmtContext(ctx, s.insertBuild).ExecContext(ctx,
		idx.ID, observedAt, idx.Root, idx.Len(), idx.Skipped(), idx.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record build %s: %w", idx.ID, err)
	}

	insertObs := tx.StmtContext(ctx, s.insertObs)
	for _, entry := range idx.Entries() {
		identities, err := json.Marshal(identityScopes(entry))
		if err != nil {
			return fmt.Errorf("failed to encode identities for %s: %w", entry.Path, err)
		}
		_, err = insertObs.ExecContext(ctx,
			uuid.New().String(), idx.ID, observedAt, entry.Path, string(identities),
			entry.NotBefore.Unix(), entry.NotAfter.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to record observation of %s: %w", entry.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit inventory transaction: %w", err)
	}

	s.logger.Debug("build recorded",
		"build_id", idx.ID,
		"certificates", idx.Len(),
	)

	if deleted, err := s.Prune(ctx); err != nil {
		s.logger.Warn("inventory pruning failed", "error", err)
	} else if deleted > 0 {
		s.logger.Info("pruned old observations",
			"deleted", deleted,
			"retention_days", s.config.RetentionDays,
		)
	}
	return nil
}

// Snapshot returns the observations of the most recent recorded build,
// ordered by path. Empty when nothing has been recorded.
func (s *Store) Snapshot(ctx context.Context) ([]Observation, error) {
	return s.queryObservations(ctx, `
		SELECT id, build_id, observed_at, path, identities, not_before, not_after
		FROM observations
		WHERE build_id = (SELECT build_id FROM builds ORDER BY observed_at DESC, rowid DESC LIMIT 1)
		ORDER BY path ASC
	`)
}

// ExpiringWithin returns observations from the most recent build whose
// certificates expire within the window, soonest first.
func (s *Store) ExpiringWithin(ctx context.Context, window time.Duration) ([]Observation, error) {
	cutoff := time.Now().Add(window).Unix()
	return s.queryObservations(ctx, `
		SELECT id, build_id, observed_at, path, identities, not_before, not_after
		FROM observations
		WHERE build_id = (SELECT build_id FROM builds ORDER BY observed_at DESC, rowid DESC LIMIT 1)
		  AND not_after <= ?
		ORDER BY not_after ASC
	`, cutoff)
}

// History returns recorded builds, newest first. A limit of 0 means
// at most 100.
func (s *Store) History(ctx context.Context, limit int) ([]BuildSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT build_id, observed_at, root, certificates, skipped, duration_ms
		FROM builds
		ORDER BY observed_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query build history: %w", err)
	}
	defer rows.Close()

	var builds []BuildSummary
	for rows.Next() {
		var b BuildSummary
		var observedAt, durationMs int64
		if err := rows.Scan(&b.BuildID, &observedAt, &b.Root, &b.Certificates, &b.Skipped, &durationMs); err != nil {
			return nil, fmt.Errorf("failed to scan build row: %w", err)
		}
		b.ObservedAt = time.Unix(observedAt, 0)
		b.Duration = time.Duration(durationMs) * time.Millisecond
		builds = append(builds, b)
	}
	return builds, rows.Err()
}

// Prune deletes observations and builds older than the retention
// period. Returns the number of observation rows deleted. A retention
// of 0 keeps everything.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	if s.config.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -s.config.RetentionDays).Unix()

	result, err := s.db.ExecContext(ctx, `DELETE FROM observations WHERE observed_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune observations: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned observations: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM builds WHERE observed_at < ?`, cutoff); err != nil {
		return deleted, fmt.Errorf("failed to prune builds: %w", err)
	}
	return deleted, nil
}

// Ping verifies the database is reachable. Used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("inventory database unreachable: %w", err)
	}
	return nil
}

// Close releases the prepared statements and the database handle.
func (s *Store) Close() error {
	if s.insertBuild != nil {
		s.insertBuild.Close()
	}
	if s.insertObs != nil {
		s.insertObs.Close()
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close inventory database: %w", err)
	}
	s.logger.Info("inventory closed")
	return nil
}

func (s *Store) queryObservations(ctx context.Context, query string, args ...any) ([]Observation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var observations []Observation
	for rows.Next() {
		var o Observation
		var observedAt, notBefore, notAfter int64
		var identities string
		if err := rows.Scan(&o.ID, &o.BuildID, &observedAt, &o.Path, &identities, &notBefore, &notAfter); err != nil {
			return nil, fmt.Errorf("failed to scan observation row: %w", err)
		}
		o.ObservedAt = time.Unix(observedAt, 0)
		o.NotBefore = time.Unix(notBefore, 0)
		o.NotAfter = time.Unix(notAfter, 0)
		if err := json.Unmarshal([]byte(identities), &o.Identities); err != nil {
			return nil, fmt.Errorf("failed to decode identities for %s: %w", o.Path, err)
		}
		observations = append(observations, o)
	}
	return observations, rows.Err()
}

// identityScopes flattens an index entry's identity map into sorted
// scope lists for stable serialization.
func identityScopes(entry certstore.Entry) map[string][]string {
	out := make(map[string][]string, len(entry.Identities))
	for identity, scopes := range entry.Identities {
		out[identity] = scopes.List()
	}
	return out
}
