package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nself-org/flowcore/internal/log"
	"github.com/nself-org/flowcore/internal/service"
	"github.com/nself-org/flowcore/pkg/engine"
	"github.com/nself-org/flowcore/pkg/models"
	"github.com/pkg/errors"
)

func StartServer(port string, svc *service.WorkflowService) error {
	mux := NewMux(svc)
	log.GetLogger().Infof("Starting flowcore server on :%s", port)
	return http.ListenAndServe(":"+port, mux)
}

// NewMux wires every handler onto a fresh ServeMux.
func NewMux(svc *service.WorkflowService) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("/workflows", WorkflowsHandler(svc))
	mux.HandleFunc("/runs", RunsHandler(svc))
	mux.HandleFunc("/runs/", RunByIDHandler(svc))
	mux.HandleFunc("/audit", AuditHandler(svc))
	mux.HandleFunc("/events", EventsHandler(svc))
	mux.HandleFunc("/webhooks/", WebhooksHandler(svc))
	mux.HandleFunc("/trigger", TriggerHandler(svc))
	return mux
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "flowcore server is running")
}

func WorkflowsHandler(svc *service.WorkflowService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, svc.ListWorkflows())
		case http.MethodPost:
			var wf models.WorkflowDefinition
			if err := json.NewDecoder(r.Body).Decode(&wf); err != nil {
				writeError(w, http.StatusBadRequest, "Invalid workflow definition: "+err.Error())
				return
			}
			if err := svc.RegisterWorkflow(&wf); err != nil {
				log.GetLogger().Errorf("Failed to register workflow: %v", err)
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"id":      wf.ID,
				"message": fmt.Sprintf("Registered workflow '%s'", wf.ID),
			})
		default:
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

func RunsHandler(svc *service.WorkflowService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		filter := engine.RunFilter{
			WorkflowID: r.URL.Query().Get("workflow_id"),
			Status:     models.RunStatus(r.URL.Query().Get("status")),
		}
		runs := svc.ListRuns(filter)
		if runs == nil {
			runs = []models.WorkflowRun{}
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

// RunByIDHandler serves GET /runs/{id}, POST /runs/{id}/cancel and
// POST /runs/{id}/retry.
func RunByIDHandler(svc *service.WorkflowService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/runs/")
		parts := strings.Split(rest, "/")
		runID := parts[0]
		if runID == "" {
			writeError(w, http.StatusBadRequest, "Missing run id")
			return
		}

		switch {
		case len(parts) == 1 && r.Method == http.MethodGet:
			run, err := svc.GetRun(runID)
			if err != nil {
				writeEngineError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, run)

		case len(parts) == 2 && parts[1] == "cancel" && r.Method == http.MethodPost:
			if err := svc.CancelRun(runID); err != nil {
				writeEngineError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"id":      runID,
				"message": "Run cancelled",
			})

		case len(parts) == 2 && parts[1] == "retry" && r.Method == http.MethodPost:
			run, err := svc.RetryRun(r.Context(), runID)
			if err != nil {
				writeEngineError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, run)

		default:
			writeError(w, http.StatusNotFound, "Not found")
		}
	}
}

func AuditHandler(svc *service.WorkflowService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		filter := engine.AuditFilter{
			WorkflowID: r.URL.Query().Get("workflow_id"),
			RunID:      r.URL.Query().Get("run_id"),
			EventType:  models.AuditEventType(r.URL.Query().Get("event_type")),
		}
		entries := svc.AuditLog(filter)
		if entries == nil {
			entries = []models.WorkflowAuditEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

// EventsHandler accepts an application event and dispatches every matching
// event-triggered workflow asynchronously.
func EventsHandler(svc *service.WorkflowService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		var payload struct {
			EventType string                 `json:"event_type"`
			Data      map[string]interface{} `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid event payload: "+err.Error())
			return
		}
		if payload.EventType == "" {
			writeError(w, http.StatusBadRequest, "Missing 'event_type' parameter")
			return
		}
		dispatched := svc.PublishEvent(payload.EventType, payload.Data)
		writeJSON(w, http.StatusAccepted, map[string]interface{}{"dispatched": dispatched})
	}
}

// WebhooksHandler executes POST /webhooks/{workflowId} synchronously and
// returns the finished run.
func WebhooksHandler(svc *service.WorkflowService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		workflowID := strings.TrimPrefix(r.URL.Path, "/webhooks/")
		if workflowID == "" || strings.Contains(workflowID, "/") {
			writeError(w, http.StatusNotFound, "Not found")
			return
		}
		var body map[string]interface{}
		if r.Body != nil {
			// an empty or invalid body still evaluates, with no payload
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		headers := make(map[string]string, len(r.Header))
		for name := range r.Header {
			headers[name] = r.Header.Get(name)
		}
		run, err := svc.HandleWebhook(r.Context(), workflowID, r.Method, body, headers)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, run)
	}
}

// TriggerHandler executes a manual trigger request synchronously.
func TriggerHandler(svc *service.WorkflowService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		var payload struct {
			WorkflowID string                 `json:"workflow_id"`
			UserID     string                 `json:"user_id"`
			Roles      []string               `json:"roles"`
			Inputs     map[string]interface{} `json:"inputs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid trigger payload: "+err.Error())
			return
		}
		if payload.WorkflowID == "" {
			writeError(w, http.StatusBadRequest, "Missing 'workflow_id' parameter")
			return
		}
		run, err := svc.TriggerManual(r.Context(), payload.WorkflowID, payload.UserID, payload.Roles, payload.Inputs)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, run)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.GetLogger().Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps service and engine failures onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrNoMatch) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	var xe *engine.ExecutionError
	if errors.As(err, &xe) {
		switch xe.Code {
		case engine.CodeRunNotFound:
			writeError(w, http.StatusNotFound, xe.Message)
		case engine.CodeMissingInput:
			writeError(w, http.StatusBadRequest, xe.Message)
		case engine.CodeInvalidStatus, engine.CodeMaxRetriesExceeded:
			writeError(w, http.StatusConflict, xe.Message)
		case engine.CodeConcurrencyLimitExceeded:
			writeError(w, http.StatusTooManyRequests, xe.Message)
		default:
			writeError(w, http.StatusInternalServerError, xe.Message)
		}
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
