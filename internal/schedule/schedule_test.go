package schedule

import (
	"testing"
	"time"
)

func TestNextWindowSkipsQuietHours(t *testing.T) {
	now := time.Date(2025, 1, 1, 1, 15, 0, 0, time.UTC)
	got := NextWindow(now, []int{0, 1, 2, 3, 4, 5})
	if got.Hour() != 6 || got.Minute() != 15 {
		t.Fatalf("got %v, want 06:15", got)
	}
	if w := NextWindow(now, nil); !w.Equal(now) {
		t.Fatalf("no quiet hours should return now, got %v", w)
	}
	all := make([]int, 24)
	for i := range all {
		all[i] = i
	}
	if w := NextWindow(now, all); !w.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("all quiet should fall back to +15m, got %v", w)
	}
}

func TestParseFormatLocalRoundTrip(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	got, err := ParseLocal("2025-03-01T09:30", loc)
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2025, 3, 1, 14, 30, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got.UTC(), want)
	}
	if s := FormatLocal(got, loc); s != "2025-03-01T09:30" {
		t.Fatalf("FormatLocal = %q", s)
	}
}

func TestParseLocalAcceptsRFC3339AndRejectsJunk(t *testing.T) {
	got, err := ParseLocal("2025-03-01T09:30:00Z", time.UTC)
	if err != nil || got.Hour() != 9 {
		t.Fatalf("got %v, %v", got, err)
	}
	for _, bad := range []string{"", "tomorrow", "2025-13-01T09:30"} {
		if _, err := ParseLocal(bad, time.UTC); err == nil {
			t.Errorf("ParseLocal(%q) should fail", bad)
		}
	}
	if FormatLocal(time.Time{}, time.UTC) != "" {
		t.Fatal("zero time should format empty")
	}
}
