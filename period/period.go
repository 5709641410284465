package period

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rasnes/dhis2-duckdb-framework/epiweek"
)

// Mode is the extraction mode and determines the period cadence.
type Mode string

const (
	Routine    Mode = "routine"    // monthly
	Mape       Mode = "mape"       // weekly (epi-weeks)
	Population Mode = "population" // yearly
)

// Modes lists every mode in the order the dashboard pipeline extracts them.
func Modes() []Mode {
	return []Mode{Routine, Mape, Population}
}

func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case Routine, Mape, Population:
		return m, nil
	default:
		return "", fmt.Errorf("unknown extraction mode: %s", s)
	}
}

// Frequency is the value of the "Freq" column in the data element mapping
// file for data elements extracted in this mode.
func (m Mode) Frequency() string {
	switch m {
	case Routine:
		return "Monthly"
	case Mape:
		return "Weekly"
	default:
		return "Yearly"
	}
}

// List is an ordered list of DHIS2 period identifiers.
type List []string

// Resolver turns a target year into the periods to request from DHIS2.
type Resolver struct {
	System epiweek.System
}

// Resolve uses CDC epi-weeks for the mape mode.
func Resolve(year int, mode Mode, today time.Time) List {
	return Resolver{System: epiweek.CDC}.Resolve(year, mode, today)
}

// Resolve returns the periods of year for mode. When year is the year of
// today, only periods that are already complete are returned: the current
// month (routine) or the current epi-week (mape) is excluded. Population
// extracts always return the year itself.
func (r Resolver) Resolve(year int, mode Mode, today time.Time) List {
	switch mode {
	case Routine:
		end := 12
		if year == today.Year() {
			end = int(today.Month()) - 1
		}
		return months(year, 1, end)

	case Mape:
		if year == today.Year() {
			return r.completedWeeks(year, epiweek.FromDate(today, r.System))
		}
		weeks := epiweek.IterWeeks(year, r.System)
		list := make(List, 0, len(weeks))
		for _, w := range weeks {
			list = append(list, w.String())
		}
		return list

	default:
		return List{strconv.Itoa(year)}
	}
}

// completedWeeks returns weeks 1..current-1 of year. It is empty while today
// is in epi-week 1, including the last days of December that already belong
// to week 1 of the next epi-year, and while today is still in the last
// epi-week of the previous year.
func (r Resolver) completedWeeks(year int, current epiweek.Week) List {
	last := current.Week - 1
	if current.Year < year {
		last = 0
	}

	list := make(List, 0, max(last, 0))
	for w := 1; w <= last; w++ {
		list = append(list, epiweek.Week{Year: year, Week: w, System: r.System}.String())
	}
	return list
}

func months(year, start, end int) List {
	list := make(List, 0, max(end-start+1, 0))
	for m := start; m <= end; m++ {
		list = append(list, fmt.Sprintf("%d%02d", year, m))
	}
	return list
}
