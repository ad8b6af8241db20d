// Package availability maintains an in-memory, time-bounded cache of
// computed open booking slots, refreshed in the background from
// upstream consultant schedules.
package availability

import (
	"sort"
	"time"
)

// Slot is one computed open booking window. Slots are ephemeral: they
// are recomputed on every refresh and never persisted.
type Slot struct {
	ConsultantID string    `json:"consultant_id"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	DurationMins int       `json:"duration_mins"`
}

// ConsultantSchedule describes one consultant's bookable working hours.
type ConsultantSchedule struct {
	ConsultantID string
	DayStartHour int
	DayEndHour   int
	SlotMins     int
}

// Booked is a time window already taken on a consultant's calendar.
type Booked struct {
	ConsultantID string
	StartTime    time.Time
	EndTime      time.Time
}

// ComputeOpenSlots enumerates each consultant's working-hours grid over
// [from, to) and removes every slot overlapping a booked window for the
// same consultant. Output is ordered by start time, then consultant.
func ComputeOpenSlots(from, to time.Time, schedules []ConsultantSchedule, booked []Booked) []Slot {
	bookedByConsultant := make(map[string][]Booked)
	for _, b := range booked {
		bookedByConsultant[b.ConsultantID] = append(bookedByConsultant[b.ConsultantID], b)
	}

	var out []Slot
	for _, sched := range schedules {
		if sched.SlotMins <= 0 || sched.DayEndHour <= sched.DayStartHour {
			continue
		}
		step := time.Duration(sched.SlotMins) * time.Minute
		taken := bookedByConsultant[sched.ConsultantID]

		for day := from.Truncate(24 * time.Hour); day.Before(to); day = day.AddDate(0, 0, 1) {
			dayStart := day.Add(time.Duration(sched.DayStartHour) * time.Hour)
			dayEnd := day.Add(time.Duration(sched.DayEndHour) * time.Hour)

			for start := dayStart; start.Add(step).Before(dayEnd) || start.Add(step).Equal(dayEnd); start = start.Add(step) {
				end := start.Add(step)
				if start.Before(from) || end.After(to) {
					continue
				}
				if overlapsAny(start, end, taken) {
					continue
				}
				out = append(out, Slot{
					ConsultantID: sched.ConsultantID,
					StartTime:    start,
					EndTime:      end,
					DurationMins: sched.SlotMins,
				})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ConsultantID < out[j].ConsultantID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

func overlapsAny(start, end time.Time, taken []Booked) bool {
	for _, b := range taken {
		if start.Before(b.EndTime) && b.StartTime.Before(end) {
			return true
		}
	}
	return false
}
