package recurrence

import "time"

// Safety limit against rules that never produce a future occurrence.
const maxSteps = 10000

// Next returns the first occurrence of the rule strictly after the given
// time, anchored at anchor (the occurrence that just fired, which fixes the
// time of day and the interval phase). The zero time is returned when the
// rule has no further occurrences (past UNTIL or step limit).
func (r Rule) Next(anchor, after time.Time) time.Time {
	if r.Interval < 1 {
		r.Interval = 1
	}

	var next time.Time
	switch r.Freq {
	case Daily:
		next = stepUnits(anchor, after, func(t time.Time) time.Time {
			return t.AddDate(0, 0, r.Interval)
		})
	case Weekly:
		if len(r.ByDay) > 0 {
			next = r.nextWeeklyByDay(anchor, after)
		} else {
			next = stepUnits(anchor, after, func(t time.Time) time.Time {
				return t.AddDate(0, 0, 7*r.Interval)
			})
		}
	case Monthly:
		next = r.nextMonthly(anchor, after)
	default:
		return time.Time{}
	}

	if next.IsZero() {
		return next
	}
	if r.Until != nil && next.After(*r.Until) {
		return time.Time{}
	}
	return next
}

func stepUnits(anchor, after time.Time, step func(time.Time) time.Time) time.Time {
	t := anchor
	for i := 0; i < maxSteps; i++ {
		t = step(t)
		if t.After(after) {
			return t
		}
	}
	return time.Time{}
}

// nextWeeklyByDay walks forward a day at a time, matching weekdays in ByDay
// within weeks aligned to the anchor's week by Interval.
func (r Rule) nextWeeklyByDay(anchor, after time.Time) time.Time {
	byDay := make(map[time.Weekday]bool, len(r.ByDay))
	for _, d := range r.ByDay {
		byDay[d] = true
	}

	anchorWeek := weekStart(anchor)
	t := anchor.AddDate(0, 0, 1)
	for i := 0; i < maxSteps; i++ {
		if byDay[t.Weekday()] && t.After(after) {
			weeks := int(weekStart(t).Sub(anchorWeek).Hours() / (24 * 7))
			if weeks%r.Interval == 0 {
				return t
			}
		}
		t = t.AddDate(0, 0, 1)
	}
	return time.Time{}
}

func (r Rule) nextMonthly(anchor, after time.Time) time.Time {
	day := r.ByMonthDay
	if day == 0 {
		day = anchor.Day()
	}

	t := anchor
	for i := 0; i < maxSteps; i++ {
		t = t.AddDate(0, r.Interval, 0)
		year, month, _ := t.Date()
		if day > daysInMonth(year, month) {
			// Month too short for the requested day; skip it.
			continue
		}
		candidate := time.Date(
			year, month, day,
			anchor.Hour(), anchor.Minute(), anchor.Second(), 0,
			anchor.Location(),
		)
		if candidate.After(after) {
			return candidate
		}
	}
	return time.Time{}
}

// weekStart returns Monday 00:00 of t's week.
func weekStart(t time.Time) time.Time {
	offset := int(t.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7
	}
	monday := t.AddDate(0, 0, -offset)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
