package storage

import (
	"github.com/nself-org/flowcore/pkg/models"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a requested run is not in the archive.
var ErrNotFound = errors.New("not found")

// Archive persists finished runs and audit entries outside the engine's
// in-memory state. The engine itself never reads the archive back; it exists
// for hosts that need run history to survive a restart.
type Archive interface {
	// Run operations
	SaveRun(run models.WorkflowRun) error
	GetRun(id string) (models.WorkflowRun, error)
	ListRuns(workflowID string, limit int) ([]models.WorkflowRun, error)

	// Audit operations
	SaveAuditEntries(entries []models.WorkflowAuditEntry) error
	ListAuditEntries(workflowID string, limit int) ([]models.WorkflowAuditEntry, error)

	Close() error
}
