package storage

import (
	"sync"

	"github.com/nself-org/flowcore/pkg/models"
)

// mockArchive implements storage.Archive with in-memory storage
type mockArchive struct {
	mu      sync.Mutex
	runs    []models.WorkflowRun
	entries []models.WorkflowAuditEntry
}

func NewMockArchive() Archive {
	return &mockArchive{}
}

func (m *mockArchive) SaveRun(run models.WorkflowRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Saving the same run id again replaces the earlier snapshot
	for i, existing := range m.runs {
		if existing.ID == run.ID {
			m.runs[i] = run
			return nil
		}
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *mockArchive) GetRun(id string) (models.WorkflowRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, run := range m.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return models.WorkflowRun{}, ErrNotFound
}

func (m *mockArchive) ListRuns(workflowID string, limit int) ([]models.WorkflowRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.WorkflowRun
	// newest first, matching the SQL archive's ordering
	for i := len(m.runs) - 1; i >= 0; i-- {
		if workflowID != "" && m.runs[i].WorkflowID != workflowID {
			continue
		}
		out = append(out, m.runs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockArchive) SaveAuditEntries(entries []models.WorkflowAuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *mockArchive) ListAuditEntries(workflowID string, limit int) ([]models.WorkflowAuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.WorkflowAuditEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if workflowID != "" && m.entries[i].WorkflowID != workflowID {
			continue
		}
		out = append(out, m.entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockArchive) Close() error {
	return nil
}
