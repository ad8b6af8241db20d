package handlers

import (
	"net/http"
	"time"

	"github.com/clearbrook-health/patient-portal/internal/clients"
	"github.com/clearbrook-health/patient-portal/internal/http/middleware"
	"github.com/clearbrook-health/patient-portal/pkg/logging"
)

// AdminSyncHandler exposes operator controls over the client cache:
// forcing a full sync and inspecting sync state.
type AdminSyncHandler struct {
	sync   *clients.SyncService
	cache  *clients.Cache
	logger *logging.Logger
}

// NewAdminSyncHandler creates a new admin sync handler.
func NewAdminSyncHandler(sync *clients.SyncService, cache *clients.Cache, logger *logging.Logger) *AdminSyncHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminSyncHandler{
		sync:   sync,
		cache:  cache,
		logger: logger,
	}
}

// ForceSync runs a full upstream sync synchronously. A sync already in
// flight yields 409 rather than queuing a second walk.
// POST /admin/clients/sync
func (h *AdminSyncHandler) ForceSync(w http.ResponseWriter, r *http.Request) {
	subject, _ := middleware.AdminSubjectFromContext(r.Context())
	h.logger.Info("full sync requested", "subject", subject)

	result, err := h.sync.SyncAll(r.Context(), nil)
	if err != nil {
		h.logger.Error("forced sync failed", "subject", subject, "error", err)
		writeJSON(w, http.StatusBadGateway, clients.SyncResult{
			Status: clients.StatusError,
			Error:  err.Error(),
		})
		return
	}

	if result.Status == clients.StatusAlreadyRunning {
		writeJSON(w, http.StatusConflict, result)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// SyncStatusResponse reports the cache's sync bookkeeping.
type SyncStatusResponse struct {
	IsSyncing    bool      `json:"is_syncing"`
	LastSync     time.Time `json:"last_sync"`
	LastRecordID string    `json:"last_record_id"`
	TotalRecords int       `json:"total_records"`
	TotalCached  int       `json:"total_cached"`
}

// SyncStatus returns the sync-state row plus a live row count.
// GET /admin/clients/sync/status
func (h *AdminSyncHandler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	state, err := h.cache.SyncState(r.Context())
	if err != nil {
		h.logger.Error("read sync state failed", "error", err)
		http.Error(w, "failed to read sync state", http.StatusInternalServerError)
		return
	}

	cached, err := h.cache.TotalCached(r.Context())
	if err != nil {
		h.logger.Error("count cached clients failed", "error", err)
		http.Error(w, "failed to count cached clients", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, SyncStatusResponse{
		IsSyncing:    h.sync.IsSyncing(),
		LastSync:     state.LastSync,
		LastRecordID: state.LastRecordID,
		TotalRecords: state.TotalRecords,
		TotalCached:  cached,
	})
}
