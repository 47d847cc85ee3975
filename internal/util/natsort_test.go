package util

import (
	"slices"
	"testing"
)

func TestSortNatural(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "non numeric strings",
			input:    []string{"xyz", "abc", "efg", "tuv", "lmn"},
			expected: []string{"abc", "efg", "lmn", "tuv", "xyz"},
		},
		{
			name:     "single segment numeric strings",
			input:    []string{"123", "1", "12", "20", "50", "2"},
			expected: []string{"1", "2", "12", "20", "50", "123"},
		},
		{
			name:     "two segment numeric strings",
			input:    []string{"a123", "b1", "a12", "a20", "b50", "b2"},
			expected: []string{"a12", "a20", "a123", "b1", "b2", "b50"},
		},
		{
			name:     "mixed segment numeric strings",
			input:    []string{"a123", "b1", "a12", "a20", "50", "50c", "b"},
			expected: []string{"50", "50c", "a12", "a20", "a123", "b", "b1"},
		},
		{
			name: "changeset paths",
			input: []string{
				"migrations/v1.10/tables/1-users.sql",
				"migrations/v1.2/tables/10-orders.sql",
				"migrations/v1.2/tables/9-products.sql",
			},
			expected: []string{
				"migrations/v1.2/tables/9-products.sql",
				"migrations/v1.2/tables/10-orders.sql",
				"migrations/v1.10/tables/1-users.sql",
			},
		},
		{
			name:     "numbers larger than int64",
			input:    []string{"v99999999999999999999999", "v100000000000000000000000", "v2"},
			expected: []string{"v2", "v99999999999999999999999", "v100000000000000000000000"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := slices.Clone(tt.input)
			SortNatural(got)
			if !slices.Equal(got, tt.expected) {
				t.Errorf("SortNatural(%v) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCompareNatural(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "abc", 0},
		{"file2", "file12", -1},
		{"file12", "file2", 1},
		{"b", "b1", -1},
		{"b1", "b", 1},
		{"01", "1", -1},
		{"1", "01", 1},
	}

	for _, tt := range tests {
		if got := CompareNatural(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareNatural(%q, %q) = %d, expected %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestNaturalTokens(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"", []string{""}},
		{"b", []string{"b"}},
		{"123", []string{"", "123", ""}},
		{"a12", []string{"a", "12", ""}},
		{"50c", []string{"", "50", "c"}},
		{"v1.10-x", []string{"v", "1", ".", "10", "-x"}},
	}

	for _, tt := range tests {
		if got := naturalTokens(tt.input); !slices.Equal(got, tt.expected) {
			t.Errorf("naturalTokens(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

// The mixed-kind rule only ranks the numeric token first when it is the
// left operand.
func TestCompareNaturalTokens_MixedKinds(t *testing.T) {
	if got := compareNaturalTokens("12", "abc"); got != -1 {
		t.Errorf("compareNaturalTokens(\"12\", \"abc\") = %d, expected -1", got)
	}
	if got := compareNaturalTokens("abc", "12"); got != 0 {
		t.Errorf("compareNaturalTokens(\"abc\", \"12\") = %d, expected 0", got)
	}
}
