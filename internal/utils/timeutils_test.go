package utils

import (
	"testing"
	"time"
)

func TestParseTimestampLayouts(t *testing.T) {
	cases := map[string]time.Time{
		"2024-03-01T10:00:00Z":      time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		"2024-03-01 10:00:00":       time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		"03/01/2024 10:00":          time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		"2024-03-01T12:00:00+02:00": time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	for input, want := range cases {
		got, err := ParseTimestamp(input)
		if err != nil {
			t.Fatalf("parse %q: %v", input, err)
		}
		if got == nil || !got.Equal(want) {
			t.Fatalf("parse %q: expected %v, got %v", input, want, got)
		}
	}
}

func TestParseTimestampEmptyAndInvalid(t *testing.T) {
	got, err := ParseTimestamp("  ")
	if err != nil || got != nil {
		t.Fatalf("expected nil time without error, got %v, %v", got, err)
	}
	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Fatalf("expected error for unsupported layout")
	}
}

func TestDurationHours(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if h := DurationHours(start, start.Add(90*time.Minute)); h != 1.5 {
		t.Fatalf("expected 1.5h, got %f", h)
	}
}
