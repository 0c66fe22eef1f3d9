package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/nself-org/flowcore/pkg/models"
	"github.com/nself-org/flowcore/pkg/storage"
)

type DBInterface interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// PostgresArchive stores finished runs and audit entries in Postgres.
// Structured fields (trigger info, context, step results, errors, audit
// data) are kept as JSONB so archived runs round-trip without schema churn.
type PostgresArchive struct {
	db DBInterface
}

func NewPostgresArchive(connStr string) (*PostgresArchive, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresArchive{db: db}, nil
}

func (s *PostgresArchive) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil
}

type runRow struct {
	ID              string     `db:"id"`
	WorkflowID      string     `db:"workflow_id"`
	WorkflowVersion int        `db:"workflow_version"`
	Status          string     `db:"status"`
	TriggeredBy     []byte     `db:"triggered_by"`
	Context         []byte     `db:"context"`
	StepResults     []byte     `db:"step_results"`
	RetryCount      int        `db:"retry_count"`
	MaxRetries      int        `db:"max_retries"`
	StartedAt       time.Time  `db:"started_at"`
	FinishedAt      *time.Time `db:"finished_at"`
	RunError        []byte     `db:"run_error"`
}

// SaveRun upserts a run snapshot keyed by run id
func (s *PostgresArchive) SaveRun(run models.WorkflowRun) error {
	row, err := encodeRun(run)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO workflow_runs
			(id, workflow_id, workflow_version, status, triggered_by, context, step_results, retry_count, max_retries, started_at, finished_at, run_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			context = EXCLUDED.context,
			step_results = EXCLUDED.step_results,
			finished_at = EXCLUDED.finished_at,
			run_error = EXCLUDED.run_error`,
		row.ID, row.WorkflowID, row.WorkflowVersion, row.Status, row.TriggeredBy,
		row.Context, row.StepResults, row.RetryCount, row.MaxRetries,
		row.StartedAt, row.FinishedAt, row.RunError)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun retrieves a run snapshot by id
func (s *PostgresArchive) GetRun(id string) (models.WorkflowRun, error) {
	var row runRow
	err := s.db.Get(&row, "SELECT * FROM workflow_runs WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.WorkflowRun{}, storage.ErrNotFound
	}
	if err != nil {
		return models.WorkflowRun{}, err
	}
	return decodeRun(row)
}

// ListRuns retrieves archived runs newest-first, optionally filtered by
// workflow id. limit <= 0 means no limit.
func (s *PostgresArchive) ListRuns(workflowID string, limit int) ([]models.WorkflowRun, error) {
	query := "SELECT * FROM workflow_runs"
	args := []interface{}{}
	if workflowID != "" {
		query += " WHERE workflow_id = $1"
		args = append(args, workflowID)
	}
	query += " ORDER BY started_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	var rows []runRow
	if err := s.db.Select(&rows, query, args...); err != nil {
		return nil, err
	}
	runs := make([]models.WorkflowRun, 0, len(rows))
	for _, row := range rows {
		run, err := decodeRun(row)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

type auditRow struct {
	ID          string    `db:"id"`
	EventType   string    `db:"event_type"`
	WorkflowID  string    `db:"workflow_id"`
	RunID       string    `db:"run_id"`
	StepID      string    `db:"step_id"`
	ActorID     string    `db:"actor_id"`
	Timestamp   time.Time `db:"timestamp"`
	Description string    `db:"description"`
	Data        []byte    `db:"data"`
}

// SaveAuditEntries appends audit entries; duplicate ids are ignored so a
// host may re-archive overlapping slices of the in-memory log.
func (s *PostgresArchive) SaveAuditEntries(entries []models.WorkflowAuditEntry) error {
	for _, entry := range entries {
		data, err := marshalMaybe(entry.Data)
		if err != nil {
			return fmt.Errorf("save audit entry %s: %w", entry.ID, err)
		}
		_, err = s.db.Exec(`
			INSERT INTO workflow_audit
				(id, event_type, workflow_id, run_id, step_id, actor_id, timestamp, description, data)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO NOTHING`,
			entry.ID, string(entry.EventType), entry.WorkflowID, entry.RunID,
			entry.StepID, entry.ActorID, entry.Timestamp, entry.Description, data)
		if err != nil {
			return fmt.Errorf("save audit entry %s: %w", entry.ID, err)
		}
	}
	return nil
}

// ListAuditEntries retrieves audit entries newest-first, optionally filtered
// by workflow id. limit <= 0 means no limit.
func (s *PostgresArchive) ListAuditEntries(workflowID string, limit int) ([]models.WorkflowAuditEntry, error) {
	query := "SELECT * FROM workflow_audit"
	args := []interface{}{}
	if workflowID != "" {
		query += " WHERE workflow_id = $1"
		args = append(args, workflowID)
	}
	query += " ORDER BY timestamp DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	var rows []auditRow
	if err := s.db.Select(&rows, query, args...); err != nil {
		return nil, err
	}
	entries := make([]models.WorkflowAuditEntry, 0, len(rows))
	for _, row := range rows {
		entry := models.WorkflowAuditEntry{
			ID:          row.ID,
			EventType:   models.AuditEventType(row.EventType),
			WorkflowID:  row.WorkflowID,
			RunID:       row.RunID,
			StepID:      row.StepID,
			ActorID:     row.ActorID,
			Timestamp:   row.Timestamp,
			Description: row.Description,
		}
		if len(row.Data) > 0 {
			if err := json.Unmarshal(row.Data, &entry.Data); err != nil {
				return nil, fmt.Errorf("decode audit entry %s: %w", row.ID, err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func encodeRun(run models.WorkflowRun) (runRow, error) {
	triggeredBy, err := json.Marshal(run.TriggeredBy)
	if err != nil {
		return runRow{}, err
	}
	runCtx, err := json.Marshal(run.Context)
	if err != nil {
		return runRow{}, err
	}
	stepResults, err := json.Marshal(run.StepResults)
	if err != nil {
		return runRow{}, err
	}
	var runErr []byte
	if run.Error != nil {
		if runErr, err = json.Marshal(run.Error); err != nil {
			return runRow{}, err
		}
	}
	return runRow{
		ID:              run.ID,
		WorkflowID:      run.WorkflowID,
		WorkflowVersion: run.WorkflowVersion,
		Status:          string(run.Status),
		TriggeredBy:     triggeredBy,
		Context:         runCtx,
		StepResults:     stepResults,
		RetryCount:      run.RetryCount,
		MaxRetries:      run.MaxRetries,
		StartedAt:       run.StartedAt,
		FinishedAt:      run.FinishedAt,
		RunError:        runErr,
	}, nil
}

func decodeRun(row runRow) (models.WorkflowRun, error) {
	run := models.WorkflowRun{
		ID:              row.ID,
		WorkflowID:      row.WorkflowID,
		WorkflowVersion: row.WorkflowVersion,
		Status:          models.RunStatus(row.Status),
		RetryCount:      row.RetryCount,
		MaxRetries:      row.MaxRetries,
		StartedAt:       row.StartedAt,
		FinishedAt:      row.FinishedAt,
	}
	if err := json.Unmarshal(row.TriggeredBy, &run.TriggeredBy); err != nil {
		return models.WorkflowRun{}, fmt.Errorf("decode run %s: %w", row.ID, err)
	}
	if err := json.Unmarshal(row.Context, &run.Context); err != nil {
		return models.WorkflowRun{}, fmt.Errorf("decode run %s: %w", row.ID, err)
	}
	if err := json.Unmarshal(row.StepResults, &run.StepResults); err != nil {
		return models.WorkflowRun{}, fmt.Errorf("decode run %s: %w", row.ID, err)
	}
	if len(row.RunError) > 0 {
		if err := json.Unmarshal(row.RunError, &run.Error); err != nil {
			return models.WorkflowRun{}, fmt.Errorf("decode run %s: %w", row.ID, err)
		}
	}
	return run, nil
}

func marshalMaybe(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}
