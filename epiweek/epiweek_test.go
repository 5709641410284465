package epiweek

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestParseSystem(t *testing.T) {
	tests := []struct {
		input   string
		want    System
		wantErr bool
	}{
		{input: "", want: CDC},
		{input: "cdc", want: CDC},
		{input: "MMWR", want: CDC},
		{input: "iso", want: ISO},
		{input: " WHO ", want: ISO},
		{input: "gregorian", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSystem(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestYearStart(t *testing.T) {
	tests := []struct {
		name   string
		year   int
		system System
		want   time.Time
	}{
		{name: "cdc 2023 starts on jan 1", year: 2023, system: CDC, want: date(2023, time.January, 1)},
		{name: "cdc 2022 starts on jan 2", year: 2022, system: CDC, want: date(2022, time.January, 2)},
		{name: "cdc 2025 starts in previous december", year: 2025, system: CDC, want: date(2024, time.December, 29)},
		{name: "iso 2020 starts in previous december", year: 2020, system: ISO, want: date(2019, time.December, 30)},
		{name: "iso 2021 starts on jan 4", year: 2021, system: ISO, want: date(2021, time.January, 4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, YearStart(tt.year, tt.system))
		})
	}
}

func TestWeeksInYear(t *testing.T) {
	tests := []struct {
		year   int
		system System
		want   int
	}{
		{year: 2014, system: CDC, want: 53},
		{year: 2015, system: CDC, want: 52},
		{year: 2020, system: CDC, want: 53},
		{year: 2023, system: CDC, want: 52},
		{year: 2015, system: ISO, want: 53},
		{year: 2020, system: ISO, want: 53},
		{year: 2021, system: ISO, want: 52},
	}

	for _, tt := range tests {
		t.Run(tt.system.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, WeeksInYear(tt.year, tt.system), "year %d", tt.year)
		})
	}
}

func TestFromDate(t *testing.T) {
	tests := []struct {
		name   string
		date   time.Time
		system System
		want   Week
	}{
		{
			name:   "mid year",
			date:   date(2023, time.March, 8),
			system: CDC,
			want:   Week{Year: 2023, Week: 10, System: CDC},
		},
		{
			name:   "first sunday of week 10",
			date:   date(2023, time.March, 5),
			system: CDC,
			want:   Week{Year: 2023, Week: 10, System: CDC},
		},
		{
			name:   "saturday closing week 9",
			date:   date(2023, time.March, 4),
			system: CDC,
			want:   Week{Year: 2023, Week: 9, System: CDC},
		},
		{
			name:   "new year's day belongs to previous epi year",
			date:   date(2022, time.January, 1),
			system: CDC,
			want:   Week{Year: 2021, Week: 52, System: CDC},
		},
		{
			name:   "new year's eve belongs to next epi year",
			date:   date(2024, time.December, 31),
			system: CDC,
			want:   Week{Year: 2025, Week: 1, System: CDC},
		},
		{
			name:   "iso week 53",
			date:   date(2021, time.January, 3),
			system: ISO,
			want:   Week{Year: 2020, Week: 53, System: ISO},
		},
		{
			name:   "clock time is ignored",
			date:   time.Date(2023, time.March, 4, 23, 59, 59, 0, time.FixedZone("WAT", 3600)),
			system: CDC,
			want:   Week{Year: 2023, Week: 9, System: CDC},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromDate(tt.date, tt.system))
		})
	}
}

func TestWeek_Dates(t *testing.T) {
	w := Week{Year: 2023, Week: 10, System: CDC}
	assert.Equal(t, date(2023, time.March, 5), w.StartDate())
	assert.Equal(t, date(2023, time.March, 11), w.EndDate())
	assert.Equal(t, "2023W10", w.String())
	assert.Equal(t, "2023W3", Week{Year: 2023, Week: 3}.String())
}

func TestIterWeeks(t *testing.T) {
	weeks := IterWeeks(2020, CDC)
	assert.Len(t, weeks, 53)
	assert.Equal(t, "2020W1", weeks[0].String())
	assert.Equal(t, "2020W53", weeks[52].String())

	// every date of every week maps back to that week
	for _, w := range weeks {
		for d := w.StartDate(); !d.After(w.EndDate()); d = d.AddDate(0, 0, 1) {
			assert.Equal(t, w, FromDate(d, CDC))
		}
	}
}
