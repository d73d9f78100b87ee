package model

import "time"

// PriceWindow is the half-open interval [Start, End) of the prior calendar month.
type PriceWindow struct {
	Start time.Time
	End   time.Time
}

// PriorMonth returns the calendar month before now, in now's location.
func PriorMonth(now time.Time) PriceWindow {
	end := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return PriceWindow{Start: end.AddDate(0, -1, 0), End: end}
}

// Key identifies the window for caching, e.g. "2024-05".
func (w PriceWindow) Key() string {
	return w.Start.Format("2006-01")
}
