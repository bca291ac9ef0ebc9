package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/tavall/scanagent/internal/model"
)

// Journal provides SQLite-based storage for scan sessions and results.
//
// Design decision: One database file holds every session rather than a
// file per session. Sessions are small and short-lived; a single file
// keeps history queries and cleanup trivial.
type Journal struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures Journal behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging. Recommended: the scan loop
	// writes while the history command may read.
	EnableWAL bool
}

// DefaultOptions returns the default journal options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// SessionRecord is one stored scan session.
type SessionRecord struct {
	Token     string
	ScanType  string
	ModeKey   string
	Mode      string
	RouteID   string
	StartedAt time.Time
	ClosedAt  *time.Time
}

// ResultRecord is one stored classification result.
type ResultRecord struct {
	ID             int64
	SessionToken   string
	State          string
	SubState       string
	UUID           string
	TrackingNumber string
	Name           string
	Address        string
	City           string
	Region         string
	ZipCode        string
	Country        string
	PhoneNumber    string
	Deadline       string
	Notes          string
	IntakeStatus   string
	PendingIntake  bool
	ExistingLabel  bool
	ReceivedAt     time.Time
}

// Open opens or creates a Journal in the specified directory.
// If CreateIfNotExists is false and no database exists, an error is
// returned instead of creating one.
func Open(dir string, opts Options) (*Journal, error) {
	dbPath := filepath.Join(dir, "scanagent.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("journal not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check journal path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating
	// new files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	// SQLite supports only one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	j := &Journal{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := j.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return j, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.dbPath
}

// createTables creates the journal schema if it doesn't exist.
func (j *Journal) createTables() error {
	schema := `
	-- Sessions store one row per controller run
	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		scan_type TEXT NOT NULL,
		mode_key TEXT,
		mode TEXT,
		route_id TEXT,
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		closed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);

	-- Results store every classification received during a session
	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_token TEXT NOT NULL,
		state TEXT NOT NULL,
		sub_state TEXT,
		uuid TEXT,
		tracking_number TEXT,
		name TEXT,
		address TEXT,
		city TEXT,
		region TEXT,
		zip_code TEXT,
		country TEXT,
		phone_number TEXT,
		deadline TEXT,
		notes TEXT,
		intake_status TEXT,
		pending_intake INTEGER DEFAULT 0,
		existing_label INTEGER DEFAULT 0,
		received_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_results_session ON results(session_token);
	CREATE INDEX IF NOT EXISTS idx_results_received ON results(received_at);
	`

	_, err := j.db.ExecContext(context.Background(), schema)
	return err
}

// RecordSession inserts a session row at controller start.
func (j *Journal) RecordSession(ctx context.Context, rec SessionRecord) error {
	query := `
	INSERT INTO sessions (token, scan_type, mode_key, mode, route_id, started_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := j.db.ExecContext(ctx, query,
		rec.Token, rec.ScanType, rec.ModeKey, rec.Mode, rec.RouteID,
		rec.StartedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return nil
}

// CloseSession stamps a session's closed_at time.
func (j *Journal) CloseSession(ctx context.Context, token string) error {
	query := `UPDATE sessions SET closed_at = ? WHERE token = ?`
	_, err := j.db.ExecContext(ctx, query, time.Now().UTC().Format(time.RFC3339), token)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	return nil
}

// RecordResult appends one classification result to a session.
func (j *Journal) RecordResult(ctx context.Context, token string, result *model.ScanResult) error {
	query := `
	INSERT INTO results (
		session_token, state, sub_state, uuid, tracking_number,
		name, address, city, region, zip_code, country, phone_number,
		deadline, notes, intake_status, pending_intake, existing_label
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := j.db.ExecContext(ctx, query,
		token,
		string(result.CameraState),
		string(result.ResponseState),
		result.UUID,
		result.TrackingNumber,
		result.Name,
		result.Address,
		result.City,
		result.State,
		result.ZipCode,
		result.Country,
		result.PhoneNumber,
		result.Deadline,
		result.Notes,
		result.IntakeStatus,
		boolToInt(result.PendingIntake),
		boolToInt(result.ExistingLabel),
	)
	if err != nil {
		return fmt.Errorf("failed to record result: %w", err)
	}
	return nil
}

// ListSessions returns all sessions ordered newest first.
func (j *Journal) ListSessions(ctx context.Context) ([]SessionRecord, error) {
	query := `
	SELECT token, scan_type, mode_key, mode, route_id, started_at, closed_at
	FROM sessions
	ORDER BY started_at DESC
	`
	rows, err := j.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only iteration

	var sessions []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var started string
		var closed sql.NullString
		if err := rows.Scan(&rec.Token, &rec.ScanType, &rec.ModeKey, &rec.Mode,
			&rec.RouteID, &started, &closed); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		rec.StartedAt = parseTimestamp(started)
		if closed.Valid {
			t := parseTimestamp(closed.String)
			rec.ClosedAt = &t
		}
		sessions = append(sessions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}

// SessionResults returns a session's results in arrival order.
func (j *Journal) SessionResults(ctx context.Context, token string) ([]ResultRecord, error) {
	query := `
	SELECT id, session_token, state, sub_state, uuid, tracking_number,
		name, address, city, region, zip_code, country, phone_number,
		deadline, notes, intake_status, pending_intake, existing_label,
		received_at
	FROM results
	WHERE session_token = ?
	ORDER BY id ASC
	`
	rows, err := j.db.QueryContext(ctx, query, token)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only iteration

	var results []ResultRecord
	for rows.Next() {
		var rec ResultRecord
		var pending, existing int
		var received string
		if err := rows.Scan(&rec.ID, &rec.SessionToken, &rec.State, &rec.SubState,
			&rec.UUID, &rec.TrackingNumber, &rec.Name, &rec.Address, &rec.City,
			&rec.Region, &rec.ZipCode, &rec.Country, &rec.PhoneNumber,
			&rec.Deadline, &rec.Notes, &rec.IntakeStatus,
			&pending, &existing, &received); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		rec.PendingIntake = pending != 0
		rec.ExistingLabel = existing != 0
		rec.ReceivedAt = parseTimestamp(received)
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate results: %w", err)
	}
	return results, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// parseTimestamp handles both RFC3339 strings written by this package
// and SQLite's CURRENT_TIMESTAMP format.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
