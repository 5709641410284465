package period

import (
	"fmt"
	"strconv"
	"time"
)

// Month is a DHIS2 monthly period (YYYYMM).
type Month struct {
	Year  int
	Month time.Month
}

func ParseMonth(s string) (Month, error) {
	if len(s) != 6 {
		return Month{}, fmt.Errorf("invalid monthly period %q: expected YYYYMM", s)
	}
	year, err := strconv.Atoi(s[:4])
	if err != nil {
		return Month{}, fmt.Errorf("invalid year in monthly period %q: %w", s, err)
	}
	month, err := strconv.Atoi(s[4:])
	if err != nil {
		return Month{}, fmt.Errorf("invalid month in monthly period %q: %w", s, err)
	}
	if month < 1 || month > 12 {
		return Month{}, fmt.Errorf("invalid month in monthly period %q: %d", s, month)
	}
	return Month{Year: year, Month: time.Month(month)}, nil
}

func CurrentMonth(today time.Time) Month {
	return Month{Year: today.Year(), Month: today.Month()}
}

func (m Month) String() string {
	return fmt.Sprintf("%d%02d", m.Year, int(m.Month))
}

func (m Month) Before(other Month) bool {
	return m.index() < other.index()
}

func (m Month) Next() Month {
	if m.Month == time.December {
		return Month{Year: m.Year + 1, Month: time.January}
	}
	return Month{Year: m.Year, Month: m.Month + 1}
}

func (m Month) index() int {
	return m.Year*12 + int(m.Month) - 1
}

// MonthRange returns every month from start to end, both included.
// The list is empty when end is before start.
func MonthRange(start, end Month) List {
	list := make(List, 0, max(end.index()-start.index()+1, 0))
	for m := start; !end.Before(m); m = m.Next() {
		list = append(list, m.String())
	}
	return list
}
