package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/coreline-labs/erpsync-core/internal/core/domain"
)

const maxLogListLimit = 500

// ErrorResponse is the standard error payload
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady reports whether the backing stores are reachable. Load
// balancers should probe this one, not /health.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	ready := true

	if err := s.db.Ping(r.Context()); err != nil {
		checks["postgres"] = err.Error()
		ready = false
	} else {
		checks["postgres"] = "ok"
	}

	if s.redisClient != nil {
		if err := s.redisClient.Ping(r.Context()); err != nil {
			checks["redis"] = err.Error()
			ready = false
		} else {
			checks["redis"] = "ok"
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"ready":  ready,
		"checks": checks,
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scheduler.Status())
}

func (s *Server) handleForceSync(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant id is required")
		return
	}

	err := s.scheduler.ForceSync(r.Context(), tenantID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":    "queued",
			"tenant_id": tenantID,
		})
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "tenant not found")
	case errors.Is(err, domain.ErrAlreadyQueued):
		writeError(w, http.StatusConflict, "tenant is already queued or syncing")
	case errors.Is(err, domain.ErrTenantDisabled):
		writeError(w, http.StatusUnprocessableEntity, "tenant is disabled for sync")
	default:
		s.logger.Error("force sync failed", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to enqueue sync")
	}
}

func (s *Server) handleListSyncLogs(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant id is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	if limit > maxLogListLimit {
		limit = maxLogListLimit
	}

	records, err := s.syncLogs.ListRecent(r.Context(), tenantID, limit)
	if err != nil {
		s.logger.Error("list sync logs failed", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list sync logs")
		return
	}
	if records == nil {
		records = []*domain.TableSyncResult{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tenant_id": tenantID,
		"logs":      records,
	})
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
