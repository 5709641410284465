package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunk(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		size     int
		expected [][]string
	}{
		{
			name:     "empty slice",
			input:    []string{},
			size:     2,
			expected: [][]string{},
		},
		{
			name:     "unbounded size",
			input:    []string{"a", "b", "c"},
			size:     0,
			expected: [][]string{{"a", "b", "c"}},
		},
		{
			name:     "size larger than slice",
			input:    []string{"a", "b"},
			size:     10,
			expected: [][]string{{"a", "b"}},
		},
		{
			name:     "even split",
			input:    []string{"a", "b", "c", "d"},
			size:     2,
			expected: [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name:     "remainder in last chunk",
			input:    []string{"a", "b", "c", "d", "e"},
			size:     2,
			expected: [][]string{{"a", "b"}, {"c", "d"}, {"e"}},
		},
		{
			name:     "size one",
			input:    []string{"a", "b"},
			size:     1,
			expected: [][]string{{"a"}, {"b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Chunk(tt.input, tt.size)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestUnique(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "empty slice",
			input:    nil,
			expected: []string{},
		},
		{
			name:     "keeps first occurrence order",
			input:    []string{"b", "a", "b", "c", "a"},
			expected: []string{"b", "a", "c"},
		},
		{
			name:     "drops empty strings",
			input:    []string{"", "a", ""},
			expected: []string{"a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Unique(tt.input))
		})
	}
}
