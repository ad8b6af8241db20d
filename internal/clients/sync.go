package clients

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clearbrook-health/patient-portal/internal/observability/metrics"
	"github.com/clearbrook-health/patient-portal/pkg/logging"
)

var clientsTracer = otel.Tracer("portal.internal.clients")

// Sync result statuses.
const (
	StatusComplete       = "complete"
	StatusAlreadyRunning = "already_running"
	StatusError          = "error"
)

// SyncResult describes the outcome of a sync operation.
type SyncResult struct {
	Status      string    `json:"status"`
	TotalSynced int       `json:"total_synced"`
	SyncedAt    time.Time `json:"synced_at"`
	Error       string    `json:"error,omitempty"`
}

// PageFetcher is the slice of the upstream client needed by the sync
// service; tests substitute stubs.
type PageFetcher interface {
	FetchPage(ctx context.Context, limit int, afterID, beforeID string) (*RecordPage, error)
}

// SyncService drives the cache into agreement with the upstream
// paginated client-listing API. At most one full sync runs at a time;
// a second caller gets StatusAlreadyRunning instead of queuing.
type SyncService struct {
	cache    *Cache
	upstream PageFetcher
	logger   *logging.Logger
	metrics  *metrics.SyncMetrics

	pageSize    int
	pageDelay   time.Duration
	staleAfter  time.Duration
	recentLimit int

	// One guard covers both full and recent syncs so a recent sync can
	// never move the cursor out from under a running page walk. Acquired
	// with TryLock only; callers are never blocked.
	mu        sync.Mutex
	isSyncing atomic.Bool
}

// SyncServiceConfig configures a SyncService.
type SyncServiceConfig struct {
	Cache    *Cache
	Upstream PageFetcher
	Logger   *logging.Logger
	Metrics  *metrics.SyncMetrics

	// PageSize bounds each upstream page (default 100).
	PageSize int
	// PageDelay is the pause between pages of a full sync, bounding the
	// request rate against upstream (default 500ms).
	PageDelay time.Duration
	// StaleAfter is how old the last sync may be before lookups trigger
	// a recent sync (default 1h).
	StaleAfter time.Duration
	// RecentLimit bounds the single page fetched by SyncRecent when the
	// caller passes no limit (default 50).
	RecentLimit int
}

// NewSyncService constructs a sync service.
func NewSyncService(cfg SyncServiceConfig) (*SyncService, error) {
	if cfg.Cache == nil {
		return nil, errors.New("clients: sync service requires cache")
	}
	if cfg.Upstream == nil {
		return nil, errors.New("clients: sync service requires upstream")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	pageDelay := cfg.PageDelay
	if pageDelay <= 0 {
		pageDelay = 500 * time.Millisecond
	}
	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = time.Hour
	}
	recentLimit := cfg.RecentLimit
	if recentLimit <= 0 {
		recentLimit = 50
	}

	return &SyncService{
		cache:       cfg.Cache,
		upstream:    cfg.Upstream,
		logger:      logger,
		metrics:     cfg.Metrics,
		pageSize:    pageSize,
		pageDelay:   pageDelay,
		staleAfter:  staleAfter,
		recentLimit: recentLimit,
	}, nil
}

// IsSyncing reports whether a full sync is currently in flight.
func (s *SyncService) IsSyncing() bool {
	return s.isSyncing.Load()
}

// SyncAll walks the whole upstream client list page by page, upserting
// each page before requesting the next so partial progress survives a
// mid-sync failure. If a sync is already in flight it returns
// StatusAlreadyRunning immediately. Upstream or storage errors abort
// the run and propagate; committed pages are retained.
func (s *SyncService) SyncAll(ctx context.Context, progress func(pages, total int)) (*SyncResult, error) {
	if !s.mu.TryLock() {
		return &SyncResult{Status: StatusAlreadyRunning}, nil
	}
	defer s.mu.Unlock()

	s.isSyncing.Store(true)
	defer s.isSyncing.Store(false)

	ctx, span := clientsTracer.Start(ctx, "clients.sync_all")
	defer span.End()

	start := time.Now()
	cursor := ""
	pages := 0
	total := 0

	for {
		page, err := s.upstream.FetchPage(ctx, s.pageSize, cursor, "")
		if err != nil {
			s.metrics.ObservePage("full", "error")
			span.RecordError(err)
			s.logger.Error("full sync aborted", "pages", pages, "synced", total, "error", err)
			return nil, fmt.Errorf("clients: full sync page %d: %w", pages+1, err)
		}
		s.metrics.ObservePage("full", "ok")

		if len(page.Items) == 0 {
			break
		}

		count, err := s.cache.UpsertBatch(ctx, page.Items)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		s.metrics.AddRecordsUpserted(count)

		pages++
		total += count
		cursor = page.Items[len(page.Items)-1].RecordID
		if progress != nil {
			progress(pages, total)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.pageDelay):
		}
	}

	var cursorArg *string
	if cursor != "" {
		cursorArg = &cursor
	}
	if err := s.cache.UpdateSyncState(ctx, cursorArg, &total); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.metrics.ObserveSyncDuration("full", time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int("portal.sync.pages", pages),
		attribute.Int("portal.sync.records", total),
	)
	s.logger.Info("full sync complete", "pages", pages, "synced", total, "duration", time.Since(start))

	return &SyncResult{
		Status:      StatusComplete,
		TotalSynced: total,
		SyncedAt:    time.Now().UTC(),
	}, nil
}

// SyncRecent fetches a single page anchored after the stored cursor and
// advances it. Failures are converted to an error result rather than
// returned, because this path runs inline during user-facing lookups;
// callers treat a failed refresh as "proceed with stale data". When a
// full sync holds the guard the refresh is skipped.
func (s *SyncService) SyncRecent(ctx context.Context, limit int) *SyncResult {
	if limit <= 0 {
		limit = s.recentLimit
	}

	if !s.mu.TryLock() {
		return &SyncResult{Status: StatusAlreadyRunning}
	}
	defer s.mu.Unlock()

	start := time.Now()

	state, err := s.cache.SyncState(ctx)
	if err != nil {
		return s.recentError("read sync state", err)
	}

	page, err := s.upstream.FetchPage(ctx, limit, state.LastRecordID, "")
	if err != nil {
		s.metrics.ObservePage("recent", "error")
		return s.recentError("fetch page", err)
	}
	s.metrics.ObservePage("recent", "ok")

	count := 0
	var cursorArg *string
	if len(page.Items) > 0 {
		count, err = s.cache.UpsertBatch(ctx, page.Items)
		if err != nil {
			return s.recentError("upsert batch", err)
		}
		s.metrics.AddRecordsUpserted(count)
		cursor := page.Items[len(page.Items)-1].RecordID
		cursorArg = &cursor
	}

	totalCached, err := s.cache.TotalCached(ctx)
	if err != nil {
		return s.recentError("count cached", err)
	}
	if err := s.cache.UpdateSyncState(ctx, cursorArg, &totalCached); err != nil {
		return s.recentError("update sync state", err)
	}

	s.metrics.ObserveSyncDuration("recent", time.Since(start).Seconds())
	s.logger.Debug("recent sync complete", "synced", count)

	return &SyncResult{
		Status:      StatusComplete,
		TotalSynced: count,
		SyncedAt:    time.Now().UTC(),
	}
}

func (s *SyncService) recentError(action string, err error) *SyncResult {
	s.logger.Warn("recent sync failed", "action", action, "error", err)
	return &SyncResult{Status: StatusError, Error: err.Error()}
}

// LookupByEmail is the composed lookup policy: cache first, then, on a
// miss with a stale cache, one recent sync and a re-query. It never
// performs a full sync; that is too expensive for a synchronous request
// path. Absence is (nil, nil), not an error, so the calling workflow
// can proceed as "new client".
func (s *SyncService) LookupByEmail(ctx context.Context, email string) (*ClientRecord, error) {
	ctx, span := clientsTracer.Start(ctx, "clients.lookup_by_email")
	defer span.End()

	rec, err := s.cache.GetByEmail(ctx, email)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if rec != nil {
		s.metrics.ObserveLookup("hit")
		return rec, nil
	}

	if !s.cache.NeedsSync(ctx, s.staleAfter) {
		s.metrics.ObserveLookup("miss")
		return nil, nil
	}

	if res := s.SyncRecent(ctx, s.recentLimit); res.Status == StatusError {
		s.logger.Warn("lookup proceeding without refresh", "email", NormalizeEmail(email), "error", res.Error)
	}

	rec, err = s.cache.GetByEmail(ctx, email)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if rec != nil {
		s.metrics.ObserveLookup("hit_after_sync")
	} else {
		s.metrics.ObserveLookup("miss")
	}
	return rec, nil
}

// GetCachedOnly returns the cached record for an email with no network
// fallback, for latency-sensitive call sites that accept staleness.
func (s *SyncService) GetCachedOnly(ctx context.Context, email string) (*ClientRecord, error) {
	return s.cache.GetByEmail(ctx, email)
}
