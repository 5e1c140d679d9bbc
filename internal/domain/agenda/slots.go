package agenda

import (
	"fmt"
	"sort"
	"time"
)

// parseClock parses a "15:04" clock time onto the given day.
func parseClock(day time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid clock time %q: %w", clock, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}

// blocks returns the booked intervals for the day. Cancelled appointments
// release their slot; every other status keeps it occupied.
func blocks(appts []*Appointment, slotMinutes int) []Slot {
	out := make([]Slot, 0, len(appts))
	for _, a := range appts {
		if a.Status == StatusCancelled {
			continue
		}
		dur := a.DurationMin
		if dur <= 0 {
			dur = slotMinutes
		}
		out = append(out, Slot{Start: a.ScheduledAt, End: a.ScheduledAt.Add(time.Duration(dur) * time.Minute)})
	}
	return out
}

func overlaps(a, b Slot) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// FreeSlots computes the bookable intervals for one doctor on one day:
// every slot the weekly schedule generates for that weekday, minus slots
// overlapping a non-cancelled appointment. Slots come back sorted by start.
func FreeSlots(schedules []*Schedule, appts []*Appointment, day time.Time) ([]Slot, error) {
	var free []Slot
	for _, s := range schedules {
		if time.Weekday(s.Weekday) != day.Weekday() {
			continue
		}
		if s.SlotMinutes <= 0 {
			return nil, fmt.Errorf("schedule %s has no slot length", s.ID)
		}
		start, err := parseClock(day, s.StartTime)
		if err != nil {
			return nil, err
		}
		end, err := parseClock(day, s.EndTime)
		if err != nil {
			return nil, err
		}

		booked := blocks(appts, s.SlotMinutes)
		step := time.Duration(s.SlotMinutes) * time.Minute
		for cur := start; !cur.Add(step).After(end); cur = cur.Add(step) {
			slot := Slot{Start: cur, End: cur.Add(step)}
			taken := false
			for _, b := range booked {
				if overlaps(slot, b) {
					taken = true
					break
				}
			}
			if !taken {
				free = append(free, slot)
			}
		}
	}
	sort.Slice(free, func(i, j int) bool { return free[i].Start.Before(free[j].Start) })
	return free, nil
}
