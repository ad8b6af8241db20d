// Package clients maintains a durable local mirror of the upstream
// practice-management client list and keeps it in agreement with the
// upstream API via paginated synchronization.
package clients

import (
	"strings"
	"time"
)

// ClientRecord is one cached upstream client. Upstream timestamps are
// kept as opaque strings exactly as the API returned them; SyncedAt is
// the local write time.
type ClientRecord struct {
	RecordID   string    `json:"record_id"`
	Email      string    `json:"email,omitempty"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Status     string    `json:"status,omitempty"`
	CreatedAt  string    `json:"created_at,omitempty"`
	ModifiedAt string    `json:"modified_at,omitempty"`
	SyncedAt   time.Time `json:"synced_at"`
}

// SyncState is the singleton bookkeeping row for the cache.
type SyncState struct {
	LastSync     time.Time `json:"last_sync"`
	LastRecordID string    `json:"last_record_id"`
	TotalRecords int       `json:"total_records"`
}

// NormalizeEmail trims whitespace and lower-cases an email address so
// lookups and stored values compare consistently.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
