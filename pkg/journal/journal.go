// Package journal keeps an append-only SQLite record of stack lifecycle
// events: starts and stops, process crashes, backend health flips, alerts.
// It is an audit trail for operators, not a metrics store; the monitoring
// endpoint never reads from it.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	_ "modernc.org/sqlite"

	"relaystack-hq/saturn/pkg/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
    id          TEXT PRIMARY KEY,
    occurred_at TIMESTAMP NOT NULL,
    event       TEXT NOT NULL,
    process     TEXT NOT NULL DEFAULT '',
    pid         INTEGER NOT NULL DEFAULT 0,
    detail      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_events_occurred_at ON events(occurred_at);
CREATE INDEX IF NOT EXISTS idx_events_event ON events(event);
`

// Event is one journal row.
type Event struct {
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	Event      string    `json:"event"`
	Process    string    `json:"process,omitempty"`
	PID        int       `json:"pid,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// Journal is the SQLite-backed event store. Safe for concurrent use; the
// sql.DB pool serializes writers.
type Journal struct {
	db        *sql.DB
	cfg       config.JournalConfig
	logger    *slog.Logger
	scheduler *cron.Cron
}

// Path resolves the journal database location for cfg.
func Path(cfg *config.Config) string {
	if cfg.Journal.Path != "" {
		return cfg.Journal.Path
	}
	return filepath.Join(cfg.General.WorkDir, "journal.db")
}

// Open creates or opens the journal database and applies the schema.
func Open(cfg *config.Config, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	path := Path(cfg)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal %q: %w", path, err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent lifecycle events.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying journal schema: %w", err)
	}

	j := &Journal{
		db:        db,
		cfg:       cfg.Journal,
		logger:    logger,
		scheduler: cron.New(),
	}
	logger.Debug("journal opened", "path", path)
	return j, nil
}

// Record appends one event. Journal failures are logged, never propagated:
// an audit-trail hiccup must not take down a lifecycle operation.
func (j *Journal) Record(event, process string, pid int, detail string) {
	_, err := j.db.Exec(
		`INSERT INTO events (id, occurred_at, event, process, pid, detail) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), time.Now().UTC(), event, process, pid, detail,
	)
	if err != nil {
		j.logger.Warn("journal write failed", "event", event, "error", err)
	}
}

// Query returns the most recent events, newest first, optionally filtered by
// event type. limit <= 0 means a default page of 50.
func (j *Journal) Query(ctx context.Context, eventType string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, occurred_at, event, process, pid, detail FROM events`
	args := []any{}
	if eventType != "" {
		query += ` WHERE event = ?`
		args = append(args, eventType)
	}
	query += ` ORDER BY occurred_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.OccurredAt, &e.Event, &e.Process, &e.PID, &e.Detail); err != nil {
			return nil, fmt.Errorf("scanning journal row: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Prune deletes events older than the retention window and returns how many
// rows went away. A non-positive retention keeps everything.
func (j *Journal) Prune() (int64, error) {
	if j.cfg.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -j.cfg.RetentionDays)
	res, err := j.db.Exec(`DELETE FROM events WHERE occurred_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning journal: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		j.logger.Info("journal pruned", "removed", n, "retention_days", j.cfg.RetentionDays)
	}
	return n, nil
}

// StartPruning schedules Prune on the configured cron expression.
func (j *Journal) StartPruning() error {
	spec := j.cfg.PruneSchedule
	if spec == "" {
		spec = "@daily"
	}
	if _, err := j.scheduler.AddFunc(spec, func() {
		if _, err := j.Prune(); err != nil {
			j.logger.Warn("scheduled prune failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("scheduling journal prune %q: %w", spec, err)
	}
	j.scheduler.Start()
	return nil
}

// Close stops the pruning schedule and closes the database.
func (j *Journal) Close() error {
	<-j.scheduler.Stop().Done()
	return j.db.Close()
}
