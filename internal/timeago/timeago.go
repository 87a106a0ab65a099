// Package timeago names how long ago an instant was in coarse, conversational
// buckets ("This morning", "Two weeks ago"). Labels are computed against local
// calendar days in the viewer's timezone, not raw elapsed hours, so a memory
// from 23 hours ago can still read as "Yesterday".
package timeago

import (
	"fmt"
	"time"
)

// Day-part boundaries, local time.
const (
	morningStartHour = 5
	afternoonHour    = 12
	eveningHour      = 17
	nightHour        = 20
)

// Average month and year lengths in days, used for the coarse long-range
// buckets.
const (
	daysPerMonth = 30.44
	daysPerYear  = 365.25
)

var monthLabels = map[int]string{
	2:  "Two months ago",
	3:  "Three months ago",
	4:  "Four months ago",
	5:  "Five months ago",
	6:  "Six months ago",
	7:  "Seven months ago",
	8:  "Eight months ago",
	9:  "Nine months ago",
	10: "Ten months ago",
	11: "Eleven months ago",
}

// Format returns the relative-time label for past as seen from now in the
// given timezone. A past instant that lies after now returns the empty
// string; malformed future timestamps are a caller bug the original behavior
// deliberately swallows.
func Format(now, past time.Time, loc *time.Location) string {
	if past.After(now) {
		return ""
	}

	nowLocal := now.In(loc)
	pastLocal := past.In(loc)

	year, month, day := nowLocal.Date()
	today := time.Date(year, month, day, 0, 0, 0, 0, loc)
	yesterday := today.AddDate(0, 0, -1)

	fiveAMToday := time.Date(year, month, day, morningStartHour, 0, 0, 0, loc)
	nightToday := time.Date(year, month, day, nightHour, 0, 0, 0, loc)
	midnightTonight := today.AddDate(0, 0, 1)

	// "Last night" spans 20:00 yesterday to 05:00 today and wins over the
	// calendar-day buckets.
	yy, ym, yd := yesterday.Date()
	lastNightStart := time.Date(yy, ym, yd, nightHour, 0, 0, 0, loc)
	if !pastLocal.Before(lastNightStart) && pastLocal.Before(fiveAMToday) {
		return "Last night"
	}
	if !pastLocal.Before(nightToday) && pastLocal.Before(midnightTonight) {
		return "Tonight"
	}

	diffDays := calendarDaysBetween(pastLocal, nowLocal)

	switch diffDays {
	case 0:
		switch {
		case inHourRange(pastLocal, today, morningStartHour, afternoonHour):
			return "This morning"
		case inHourRange(pastLocal, today, afternoonHour, eveningHour):
			return "This afternoon"
		case inHourRange(pastLocal, today, eveningHour, nightHour):
			return "This evening"
		}
	case 1:
		switch {
		case inHourRange(pastLocal, yesterday, morningStartHour, afternoonHour):
			return "Yesterday morning"
		case inHourRange(pastLocal, yesterday, afternoonHour, eveningHour):
			return "Yesterday afternoon"
		case inHourRange(pastLocal, yesterday, eveningHour, nightHour):
			return "Yesterday evening"
		default:
			return "Yesterday"
		}
	}

	exactDays := nowLocal.Sub(pastLocal).Hours() / 24

	switch {
	case diffDays == 2:
		return "Two days ago"
	case diffDays >= 3 && diffDays <= 6:
		return "A few days ago"
	case exactDays >= 7 && exactDays < 10.5:
		return "One week ago"
	case exactDays >= 10.5 && exactDays < 14:
		return "A week and a half ago"
	case exactDays >= 14 && exactDays < 20:
		return "Two weeks ago"
	case exactDays >= 21 && exactDays < 27:
		return "Three weeks ago"
	case exactDays >= 27 && exactDays < 45:
		return "A month ago"
	case exactDays >= 45 && exactDays < 60:
		return "A month and a half ago"
	}

	months := int(exactDays / daysPerMonth)
	if label, ok := monthLabels[months]; ok {
		return label
	}

	years := int(exactDays / daysPerYear)
	if years == 1 {
		return "A year ago"
	}
	if years >= 2 {
		return fmt.Sprintf("%d years ago", years)
	}

	return ""
}

// calendarDaysBetween returns the number of local calendar days from past to
// now, ignoring the time of day.
func calendarDaysBetween(past, now time.Time) int {
	py, pm, pd := past.Date()
	ny, nm, nd := now.Date()
	// Normalize to UTC midnights so DST shifts cannot produce fractional days.
	pastDate := time.Date(py, pm, pd, 0, 0, 0, 0, time.UTC)
	nowDate := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return int(nowDate.Sub(pastDate).Hours() / 24)
}

// inHourRange reports whether t falls within [startHour, endHour) on the
// calendar day containing dayStart. Boundaries are built from wall-clock
// hours so they stay put on days where a DST transition shifts elapsed time.
func inHourRange(t, dayStart time.Time, startHour, endHour int) bool {
	y, m, d := dayStart.Date()
	start := time.Date(y, m, d, startHour, 0, 0, 0, dayStart.Location())
	end := time.Date(y, m, d, endHour, 0, 0, 0, dayStart.Location())
	return !t.Before(start) && t.Before(end)
}
