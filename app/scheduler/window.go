package scheduler

import (
	"time"

	"github.com/HeltonFraga01/cortexx-engine/models"
)

// WindowStatus is the result of evaluating a scheduling window at an instant
type WindowStatus struct {
	Active bool
	// NextActive is the next instant sending becomes permitted; nil when
	// Active is true
	NextActive *time.Time
}

// EvaluateWindow decides whether the window permits sending at now. A nil
// window always permits. Evaluation happens in loc (the campaign's
// timezone): weekday membership first, then time-of-day within
// [start, end). Windows never cross midnight; that shape is rejected at
// campaign creation.
func EvaluateWindow(w *models.ScheduleWindow, loc *time.Location, now time.Time) WindowStatus {
	if w == nil {
		return WindowStatus{Active: true}
	}

	local := now.In(loc)
	startMin, endMin, err := w.ParseTimes()
	if err != nil {
		// Validated at creation; an unparseable window here means corrupted
		// storage, so fail closed and retry in a minute.
		next := local.Add(time.Minute)
		return WindowStatus{Active: false, NextActive: &next}
	}

	minuteOfDay := local.Hour()*60 + local.Minute()
	if w.ActiveOn(local.Weekday()) && minuteOfDay >= startMin && minuteOfDay < endMin {
		return WindowStatus{Active: true}
	}

	next := nextActiveInstant(w, local, startMin)
	return WindowStatus{Active: false, NextActive: &next}
}

// nextActiveInstant finds the earliest window opening at or after local.
// Validation guarantees at least one active weekday, so scanning eight days
// always terminates with a hit.
func nextActiveInstant(w *models.ScheduleWindow, local time.Time, startMin int) time.Time {
	minuteOfDay := local.Hour()*60 + local.Minute()

	for offset := 0; offset <= 7; offset++ {
		day := local.AddDate(0, 0, offset)
		if !w.ActiveOn(day.Weekday()) {
			continue
		}
		if offset == 0 && minuteOfDay >= startMin {
			// Today's opening already passed (or we are past the close)
			continue
		}
		return time.Date(day.Year(), day.Month(), day.Day(),
			startMin/60, startMin%60, 0, 0, local.Location())
	}

	// Unreachable for validated windows
	return local.Add(24 * time.Hour)
}
