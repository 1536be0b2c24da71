package timeparsing

import (
	"errors"
	"testing"
	"time"
)

// Wednesday, January 15, 2025, 10:00 local.
var refNow = time.Date(2025, 1, 15, 10, 0, 0, 0, time.Local)

type wantDate struct {
	year  int
	month time.Month
	day   int
	hour  int // -1 skips the hour check
}

func checkDate(t *testing.T, input string, got time.Time, want wantDate) {
	t.Helper()
	if got.Year() != want.year || got.Month() != want.month || got.Day() != want.day {
		t.Errorf("%q = %s, want %d-%02d-%02d", input, got.Format(time.RFC3339), want.year, want.month, want.day)
	}
	if want.hour >= 0 && got.Hour() != want.hour {
		t.Errorf("%q hour = %d, want %d", input, got.Hour(), want.hour)
	}
}

func TestParseNaturalLanguage(t *testing.T) {
	tests := []struct {
		input string
		want  wantDate
	}{
		{"yesterday", wantDate{2025, time.January, 14, -1}},
		{"tomorrow", wantDate{2025, time.January, 16, -1}},
		{"next monday", wantDate{2025, time.January, 20, -1}},
		{"tomorrow at 9am", wantDate{2025, time.January, 16, 9}},
		{"3 days ago", wantDate{2025, time.January, 12, -1}},
		{"in 1 week", wantDate{2025, time.January, 22, -1}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseNaturalLanguage(tt.input, refNow)
			if err != nil {
				t.Fatalf("ParseNaturalLanguage(%q): %v", tt.input, err)
			}
			checkDate(t, tt.input, got, tt.want)
		})
	}
}

func TestParseNaturalLanguage_Unrecognized(t *testing.T) {
	for _, input := range []string{"", "   ", "not a date at all"} {
		_, err := ParseNaturalLanguage(input, refNow)
		if !errors.Is(err, ErrUnrecognized) {
			t.Errorf("ParseNaturalLanguage(%q) error = %v, want ErrUnrecognized", input, err)
		}
	}
}

func TestParseRelativeTime(t *testing.T) {
	tests := []struct {
		input string
		want  wantDate
	}{
		{"-2d", wantDate{2025, time.January, 13, 10}},
		{"+6h", wantDate{2025, time.January, 15, 16}},
		{"2024-11-01", wantDate{2024, time.November, 1, 0}},
		{"2025-03-15T14:30:00Z", wantDate{2025, time.March, 15, 14}},
		{"yesterday", wantDate{2025, time.January, 14, -1}},
		{"  2025-01-20  ", wantDate{2025, time.January, 20, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRelativeTime(tt.input, refNow)
			if err != nil {
				t.Fatalf("ParseRelativeTime(%q): %v", tt.input, err)
			}
			checkDate(t, tt.input, got, tt.want)
		})
	}
}

func TestParseRelativeTime_DateOnlyIsUTC(t *testing.T) {
	for _, loc := range []*time.Location{time.UTC, time.FixedZone("PDT", -7*60*60), time.FixedZone("JST", 9*60*60)} {
		t.Run(loc.String(), func(t *testing.T) {
			got, err := ParseRelativeTime("2024-04-01", refNow.In(loc))
			if err != nil {
				t.Fatal(err)
			}
			if want := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
				t.Errorf("got %v, want %v", got, want)
			}
		})
	}
}

func TestParseRelativeTime_CompactWins(t *testing.T) {
	got, err := ParseRelativeTime("-1d", refNow)
	if err != nil {
		t.Fatal(err)
	}
	if want := refNow.AddDate(0, 0, -1); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseRelativeTime_Invalid(t *testing.T) {
	if _, err := ParseRelativeTime("not-a-date", refNow); err == nil {
		t.Error("expected error for garbage input")
	}
	if _, err := ParseRelativeTime("", refNow); !errors.Is(err, ErrUnrecognized) {
		t.Errorf("empty input error = %v, want ErrUnrecognized", err)
	}
}
