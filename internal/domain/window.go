package domain

import (
	"fmt"
	"time"
)

// TimeWindow is a closed calendar-day interval [Start, End] used as the unit
// of fetch-and-process work. Both bounds are dates truncated to midnight UTC.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// String renders the window as "2015-01-01..2015-01-31".
func (w TimeWindow) String() string {
	return fmt.Sprintf("%s..%s", w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthWindows partitions [start, end] into ascending calendar-month windows.
// The first window is clamped to start and the last to end; interior windows
// bound exactly one calendar month. A zero-day range yields one window.
func MonthWindows(start, end time.Time) ([]TimeWindow, error) {
	start, end = Day(start), Day(end)
	if start.After(end) {
		return nil, fmt.Errorf("month windows: start %s after end %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	var windows []TimeWindow
	cur := start
	for !cur.After(end) {
		next := time.Date(cur.Year(), cur.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
		monthEnd := next.AddDate(0, 0, -1)
		if monthEnd.After(end) {
			monthEnd = end
		}
		windows = append(windows, TimeWindow{Start: cur, End: monthEnd})
		cur = next
	}
	return windows, nil
}

// DayWindows partitions [start, end] into ascending single-day windows.
func DayWindows(start, end time.Time) ([]TimeWindow, error) {
	start, end = Day(start), Day(end)
	if start.After(end) {
		return nil, fmt.Errorf("day windows: start %s after end %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	var windows []TimeWindow
	for cur := start; !cur.After(end); cur = cur.AddDate(0, 0, 1) {
		windows = append(windows, TimeWindow{Start: cur, End: cur})
	}
	return windows, nil
}

// Reverse returns a new slice with the windows in descending order
// (most recent first). The ascending definition is the source of truth;
// recency-first processing is just a reversed view of it.
func Reverse(windows []TimeWindow) []TimeWindow {
	out := make([]TimeWindow, len(windows))
	for i, w := range windows {
		out[len(windows)-1-i] = w
	}
	return out
}
