package epiweek

import (
	"fmt"
	"strings"
	"time"
)

// System selects the week numbering convention.
// CDC (MMWR) weeks run Sunday to Saturday, ISO (WHO) weeks run Monday to Sunday.
// In both systems week 1 is the first week with at least four days in the
// calendar year, i.e. the week containing January 4th.
type System int

const (
	CDC System = iota
	ISO
)

func ParseSystem(s string) (System, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cdc", "mmwr":
		return CDC, nil
	case "iso", "who":
		return ISO, nil
	default:
		return CDC, fmt.Errorf("unknown epi week system: %s", s)
	}
}

func (s System) String() string {
	if s == ISO {
		return "iso"
	}
	return "cdc"
}

func (s System) firstWeekday() time.Weekday {
	if s == ISO {
		return time.Monday
	}
	return time.Sunday
}

// Week is a single epidemiological week. Year is the epi-year, which can
// differ from the calendar year of dates near January 1st.
type Week struct {
	Year   int
	Week   int
	System System
}

// String formats the week as a DHIS2 weekly period, e.g. "2023W7".
// The week number is intentionally not zero-padded.
func (w Week) String() string {
	return fmt.Sprintf("%dW%d", w.Year, w.Week)
}

func (w Week) StartDate() time.Time {
	return YearStart(w.Year, w.System).AddDate(0, 0, (w.Week-1)*7)
}

func (w Week) EndDate() time.Time {
	return w.StartDate().AddDate(0, 0, 6)
}

// YearStart returns the first day of week 1 of the given epi-year.
func YearStart(year int, system System) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) - int(system.firstWeekday()) + 7) % 7
	return jan4.AddDate(0, 0, -offset)
}

// WeeksInYear returns 52 or 53.
func WeeksInYear(year int, system System) int {
	return daysBetween(YearStart(year, system), YearStart(year+1, system)) / 7
}

// FromDate returns the epi-week containing t. Only the calendar date of t is
// considered, its clock time and location are ignored.
func FromDate(t time.Time, system System) Week {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)

	year := d.Year()
	start := YearStart(year+1, system)
	if d.Before(start) {
		start = YearStart(year, system)
		if d.Before(start) {
			year--
			start = YearStart(year, system)
		}
	} else {
		year++
	}

	return Week{
		Year:   year,
		Week:   daysBetween(start, d)/7 + 1,
		System: system,
	}
}

// IterWeeks returns every week of the epi-year in chronological order.
func IterWeeks(year int, system System) []Week {
	n := WeeksInYear(year, system)
	weeks := make([]Week, 0, n)
	for w := 1; w <= n; w++ {
		weeks = append(weeks, Week{Year: year, Week: w, System: system})
	}
	return weeks
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
