package models

import "time"

// TimeWindow is an inclusive [Start, End] instant range used to filter
// candidate records. Only the temporal resolver constructs these.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls within the window, bounds included.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}
