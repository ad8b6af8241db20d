package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/clearbrook-health/patient-portal/internal/availability"
	"github.com/clearbrook-health/patient-portal/internal/clients"
	"github.com/clearbrook-health/patient-portal/pkg/logging"
)

// BookingHandler serves the patient-facing booking endpoints: client
// lookup and open availability.
type BookingHandler struct {
	sync   *clients.SyncService
	slots  *availability.Cache
	logger *logging.Logger
}

// NewBookingHandler creates a new booking handler.
func NewBookingHandler(sync *clients.SyncService, slots *availability.Cache, logger *logging.Logger) *BookingHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingHandler{
		sync:   sync,
		slots:  slots,
		logger: logger,
	}
}

// ClientLookupResponse is the lookup result envelope. A miss is a
// normal outcome: the booking flow treats it as "new client".
type ClientLookupResponse struct {
	Found  bool                  `json:"found"`
	Client *clients.ClientRecord `json:"client,omitempty"`
}

// LookupClient returns the cached client record for an email address.
// GET /bookings/clients/lookup?email=
func (h *BookingHandler) LookupClient(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		http.Error(w, "missing email parameter", http.StatusBadRequest)
		return
	}

	rec, err := h.sync.LookupByEmail(r.Context(), email)
	if err != nil {
		h.logger.Error("client lookup failed", "error", err)
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, ClientLookupResponse{
		Found:  rec != nil,
		Client: rec,
	})
}

// AvailabilityResponse lists currently open slots. Stale indicates the
// snapshot has outlived its TTL and a background refresh is overdue.
type AvailabilityResponse struct {
	Slots []availability.Slot `json:"slots"`
	Stale bool                `json:"stale"`
}

// ListAvailability returns the cached open slots, optionally filtered
// to one consultant.
// GET /bookings/availability?consultantId=
func (h *BookingHandler) ListAvailability(w http.ResponseWriter, r *http.Request) {
	consultantID := r.URL.Query().Get("consultantId")

	slots, fresh := h.slots.Snapshot(consultantID)

	writeJSON(w, http.StatusOK, AvailabilityResponse{
		Slots: slots,
		Stale: !fresh,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
