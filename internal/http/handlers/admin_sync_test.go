package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clearbrook-health/patient-portal/internal/clients"
)

func TestForceSyncComplete(t *testing.T) {
	calls := 0
	svc, _ := newTestSync(t, &stubUpstream{
		fetch: func(_ context.Context, _ int, afterID, _ string) (*clients.RecordPage, error) {
			calls++
			if afterID != "" {
				return &clients.RecordPage{}, nil
			}
			return &clients.RecordPage{Items: []clients.ClientRecord{
				{RecordID: "rec-1", Email: "a@example.com"},
				{RecordID: "rec-2", Email: "b@example.com"},
			}}, nil
		},
	})

	h := NewAdminSyncHandler(svc, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/admin/clients/sync", nil)
	rec := httptest.NewRecorder()
	h.ForceSync(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	var result clients.SyncResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("parse result: %v", err)
	}
	if result.Status != clients.StatusComplete || result.TotalSynced != 2 {
		t.Fatalf("expected 2 records synced, got %+v", result)
	}
	if calls != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", calls)
	}
}

func TestForceSyncConflictWhileRunning(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	svc, _ := newTestSync(t, &stubUpstream{
		fetch: func(context.Context, int, string, string) (*clients.RecordPage, error) {
			close(started)
			<-release
			return &clients.RecordPage{}, nil
		},
	})

	go svc.SyncAll(context.Background(), nil)
	<-started

	h := NewAdminSyncHandler(svc, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/admin/clients/sync", nil)
	rec := httptest.NewRecorder()
	h.ForceSync(rec, req)
	close(release)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, rec.Code)
	}
	var result clients.SyncResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("parse result: %v", err)
	}
	if result.Status != clients.StatusAlreadyRunning {
		t.Fatalf("expected already_running, got %+v", result)
	}
}

func TestForceSyncUpstreamFailure(t *testing.T) {
	svc, _ := newTestSync(t, &stubUpstream{
		fetch: func(context.Context, int, string, string) (*clients.RecordPage, error) {
			return nil, errors.New("upstream returned 503")
		},
	})

	h := NewAdminSyncHandler(svc, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/admin/clients/sync", nil)
	rec := httptest.NewRecorder()
	h.ForceSync(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", http.StatusBadGateway, rec.Code)
	}
	var result clients.SyncResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("parse result: %v", err)
	}
	if result.Status != clients.StatusError || result.Error == "" {
		t.Fatalf("expected error result, got %+v", result)
	}
}

func TestSyncStatus(t *testing.T) {
	svc, cache := newTestSync(t, &stubUpstream{
		fetch: func(_ context.Context, _ int, afterID, _ string) (*clients.RecordPage, error) {
			if afterID != "" {
				return &clients.RecordPage{}, nil
			}
			return &clients.RecordPage{Items: []clients.ClientRecord{
				{RecordID: "rec-9", Email: "c@example.com"},
			}}, nil
		},
	})
	if _, err := svc.SyncAll(context.Background(), nil); err != nil {
		t.Fatalf("seed sync: %v", err)
	}

	h := NewAdminSyncHandler(svc, cache, nil)
	req := httptest.NewRequest(http.MethodGet, "/admin/clients/sync/status", nil)
	rec := httptest.NewRecorder()
	h.SyncStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var status SyncStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("parse status: %v", err)
	}
	if status.IsSyncing {
		t.Fatalf("expected idle sync flag")
	}
	if status.LastRecordID != "rec-9" || status.TotalRecords != 1 || status.TotalCached != 1 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.LastSync.IsZero() {
		t.Fatalf("expected last_sync to be stamped")
	}
}
