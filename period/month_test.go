package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseMonth(t *testing.T) {
	tests := []struct {
		input       string
		want        Month
		errContains string
	}{
		{input: "202401", want: Month{Year: 2024, Month: time.January}},
		{input: "199912", want: Month{Year: 1999, Month: time.December}},
		{input: "2024", errContains: "expected YYYYMM"},
		{input: "2024W1", errContains: "invalid month"},
		{input: "202413", errContains: "invalid month"},
		{input: "abcd01", errContains: "invalid year"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMonth(tt.input)
			if tt.errContains != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestMonthRange(t *testing.T) {
	tests := []struct {
		name  string
		start Month
		end   Month
		want  List
	}{
		{
			name:  "across a year boundary",
			start: Month{Year: 2023, Month: time.November},
			end:   Month{Year: 2024, Month: time.February},
			want:  List{"202311", "202312", "202401", "202402"},
		},
		{
			name:  "single month",
			start: Month{Year: 2024, Month: time.May},
			end:   Month{Year: 2024, Month: time.May},
			want:  List{"202405"},
		},
		{
			name:  "end before start",
			start: Month{Year: 2024, Month: time.May},
			end:   Month{Year: 2024, Month: time.April},
			want:  List{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MonthRange(tt.start, tt.end))
		})
	}
}

func TestCurrentMonth(t *testing.T) {
	assert.Equal(t, Month{Year: 2024, Month: time.March}, CurrentMonth(time.Date(2024, time.March, 31, 23, 0, 0, 0, time.UTC)))
}
