package availability

import (
	"context"
	"errors"
	"time"

	"github.com/clearbrook-health/patient-portal/internal/clients"
)

// AppointmentLister is the slice of the upstream client used to pull
// already-booked windows.
type AppointmentLister interface {
	FetchAppointments(ctx context.Context, from, to time.Time) ([]clients.BookedInterval, error)
}

// UpstreamSource computes open slots from configured consultant
// schedules minus booked windows fetched upstream.
type UpstreamSource struct {
	upstream   AppointmentLister
	schedules  []ConsultantSchedule
	windowDays int
	now        func() time.Time
}

// UpstreamSourceConfig configures an UpstreamSource.
type UpstreamSourceConfig struct {
	Upstream   AppointmentLister
	Schedules  []ConsultantSchedule
	WindowDays int
	Now        func() time.Time
}

// NewUpstreamSource constructs a source.
func NewUpstreamSource(cfg UpstreamSourceConfig) (*UpstreamSource, error) {
	if cfg.Upstream == nil {
		return nil, errors.New("availability: source requires upstream")
	}
	if len(cfg.Schedules) == 0 {
		return nil, errors.New("availability: source requires at least one schedule")
	}

	windowDays := cfg.WindowDays
	if windowDays <= 0 {
		windowDays = 14
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &UpstreamSource{
		upstream:   cfg.Upstream,
		schedules:  cfg.Schedules,
		windowDays: windowDays,
		now:        now,
	}, nil
}

// ComputeOpenSlots implements Source.
func (s *UpstreamSource) ComputeOpenSlots(ctx context.Context) ([]Slot, error) {
	from := s.now().UTC()
	to := from.AddDate(0, 0, s.windowDays)

	upstreamBooked, err := s.upstream.FetchAppointments(ctx, from, to)
	if err != nil {
		return nil, err
	}

	booked := make([]Booked, 0, len(upstreamBooked))
	for _, b := range upstreamBooked {
		booked = append(booked, Booked{
			ConsultantID: b.ConsultantID,
			StartTime:    b.StartTime,
			EndTime:      b.EndTime,
		})
	}

	return ComputeOpenSlots(from, to, s.schedules, booked), nil
}
