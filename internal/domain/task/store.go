// Package task persists the Task Engine's run history: one durable
// record per task instance (§3 "Task Instance") plus its status
// transitions, so a UI can show "what ran, in what order, and why it
// failed" after the in-memory running-tasks map has already forgotten
// about a completed instance.
package task

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	coreerrors "github.com/cortex-ide/core/internal/errors"
)

// Status is a task run's lifecycle state. It follows the Task Executor's
// status vocabulary (§4.12), except that a run starts as Pending where
// the executor reports "started", and adds Cancelled for aborted runs.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether the status is a final state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Run is one persisted task instance.
type Run struct {
	TaskID      string    `json:"task_id"`
	Label       string    `json:"label"`
	Status      Status    `json:"status"`
	ExitCode    int       `json:"exit_code"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Transition records one status change in a run's lifecycle.
type Transition struct {
	ID         int64     `json:"id"`
	TaskID     string    `json:"task_id"`
	FromStatus Status    `json:"from_status"`
	ToStatus   Status    `json:"to_status"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// TransitionParams holds the optional fields a SetStatus call may set
// alongside the new status.
type TransitionParams struct {
	Reason   string
	ExitCode *int
	Error    *string
}

// TransitionOption customizes a SetStatus call.
type TransitionOption func(*TransitionParams)

func WithReason(reason string) TransitionOption {
	return func(p *TransitionParams) { p.Reason = reason }
}

func WithExitCode(code int) TransitionOption {
	return func(p *TransitionParams) { p.ExitCode = &code }
}

func WithError(errText string) TransitionOption {
	return func(p *TransitionParams) { p.Error = &errText }
}

func applyOptions(opts []TransitionOption) TransitionParams {
	var p TransitionParams
	for _, fn := range opts {
		fn(&p)
	}
	return p
}

// Store is the task-run persistence port.
type Store interface {
	Create(ctx context.Context, taskID, label string) error
	SetStatus(ctx context.Context, taskID string, status Status, opts ...TransitionOption) error
	Get(ctx context.Context, taskID string) (Run, error)
	ListActive(ctx context.Context) ([]Run, error)
	List(ctx context.Context, limit, offset int) ([]Run, error)
	Transitions(ctx context.Context, taskID string) ([]Transition, error)
	DeleteExpired(ctx context.Context, before time.Time) error
}

const schema = `
CREATE TABLE IF NOT EXISTS task_runs (
	task_id TEXT PRIMARY KEY,
	label TEXT NOT NULL,
	status TEXT NOT NULL,
	exit_code INTEGER NOT NULL DEFAULT 0,
	error TEXT,
	created_at INTEGER NOT NULL,
	completed_at INTEGER
);
CREATE TABLE IF NOT EXISTS task_transitions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id TEXT NOT NULL,
	from_status TEXT NOT NULL,
	to_status TEXT NOT NULL,
	reason TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_task_transitions_task_id ON task_transitions(task_id);
`

// sqliteStore is the only Store implementation; tests exercise it
// directly against an in-memory database rather than a fake.
type sqliteStore struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite-backed Store at path.
func Open(path string) (Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, coreerrors.IOError(err, "failed to open task history store at %q", path)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, coreerrors.IOError(err, "failed to initialize task history schema")
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Create(ctx context.Context, taskID, label string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_runs (task_id, label, status, created_at) VALUES (?, ?, ?, ?)`,
		taskID, label, StatusPending, time.Now().Unix())
	if err != nil {
		return coreerrors.IOError(err, "failed to create task run %q", taskID)
	}
	return nil
}

func (s *sqliteStore) SetStatus(ctx context.Context, taskID string, status Status, opts ...TransitionOption) error {
	params := applyOptions(opts)

	run, err := s.Get(ctx, taskID)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return coreerrors.IOError(err, "failed to begin transaction for %q", taskID)
	}
	defer tx.Rollback()

	update := `UPDATE task_runs SET status = ?`
	args := []any{status}
	if params.ExitCode != nil {
		update += `, exit_code = ?`
		args = append(args, *params.ExitCode)
	}
	if params.Error != nil {
		update += `, error = ?`
		args = append(args, *params.Error)
	}
	if status.IsTerminal() {
		update += `, completed_at = ?`
		args = append(args, time.Now().Unix())
	}
	update += ` WHERE task_id = ?`
	args = append(args, taskID)

	if _, err := tx.ExecContext(ctx, update, args...); err != nil {
		return coreerrors.IOError(err, "failed to update task run %q", taskID)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO task_transitions (task_id, from_status, to_status, reason, created_at) VALUES (?, ?, ?, ?, ?)`,
		taskID, run.Status, status, params.Reason, time.Now().Unix()); err != nil {
		return coreerrors.IOError(err, "failed to record transition for %q", taskID)
	}
	if err := tx.Commit(); err != nil {
		return coreerrors.IOError(err, "failed to commit transition for %q", taskID)
	}
	return nil
}

func (s *sqliteStore) Get(ctx context.Context, taskID string) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT task_id, label, status, exit_code, error, created_at, completed_at FROM task_runs WHERE task_id = ?`, taskID)
	return scanRun(row)
}

func (s *sqliteStore) ListActive(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT task_id, label, status, exit_code, error, created_at, completed_at FROM task_runs
		 WHERE status NOT IN (?, ?, ?) ORDER BY created_at DESC`,
		StatusCompleted, StatusFailed, StatusCancelled)
	if err != nil {
		return nil, coreerrors.IOError(err, "failed to list active task runs")
	}
	defer rows.Close()
	return scanRuns(rows)
}

func (s *sqliteStore) List(ctx context.Context, limit, offset int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT task_id, label, status, exit_code, error, created_at, completed_at FROM task_runs
		 ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, coreerrors.IOError(err, "failed to list task runs")
	}
	defer rows.Close()
	return scanRuns(rows)
}

func (s *sqliteStore) Transitions(ctx context.Context, taskID string) ([]Transition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, from_status, to_status, reason, created_at FROM task_transitions
		 WHERE task_id = ? ORDER BY id ASC`, taskID)
	if err != nil {
		return nil, coreerrors.IOError(err, "failed to list transitions for %q", taskID)
	}
	defer rows.Close()
	var out []Transition
	for rows.Next() {
		var t Transition
		var reason sql.NullString
		var createdAtUnix int64
		if err := rows.Scan(&t.ID, &t.TaskID, &t.FromStatus, &t.ToStatus, &reason, &createdAtUnix); err != nil {
			return nil, coreerrors.IOError(err, "failed to scan transition row")
		}
		t.Reason = reason.String
		t.CreatedAt = time.Unix(createdAtUnix, 0)
		out = append(out, t)
	}
	return out, nil
}

func (s *sqliteStore) DeleteExpired(ctx context.Context, before time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM task_runs WHERE completed_at IS NOT NULL AND completed_at < ?`, before.Unix())
	if err != nil {
		return coreerrors.IOError(err, "failed to delete expired task runs")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var r Run
	var errText sql.NullString
	var createdAtUnix int64
	var completedAtUnix sql.NullInt64
	err := row.Scan(&r.TaskID, &r.Label, &r.Status, &r.ExitCode, &errText, &createdAtUnix, &completedAtUnix)
	if err == sql.ErrNoRows {
		return Run{}, coreerrors.NotFound("no matching task run")
	}
	if err != nil {
		return Run{}, coreerrors.IOError(err, "failed to scan task run row")
	}
	r.Error = errText.String
	r.CreatedAt = time.Unix(createdAtUnix, 0)
	if completedAtUnix.Valid {
		t := time.Unix(completedAtUnix.Int64, 0)
		r.CompletedAt = &t
	}
	return r, nil
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
