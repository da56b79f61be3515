package clinic

import (
	"testing"
	"time"
)

func TestIsOpenAt(t *testing.T) {
	cfg := DefaultConfig("romi-dental")
	loc := cfg.Loc()

	// Monday 10 AM - open
	monday10am := time.Date(2026, 9, 7, 10, 0, 0, 0, loc)
	if !cfg.IsOpenAt(monday10am) {
		t.Error("expected clinic to be open Monday 10 AM")
	}

	// Sunday - closed all day
	sunday := time.Date(2026, 9, 6, 10, 0, 0, 0, loc)
	if cfg.IsOpenAt(sunday) {
		t.Error("expected clinic to be closed Sunday")
	}

	// Monday 7 AM - before opening
	monday7am := time.Date(2026, 9, 7, 7, 0, 0, 0, loc)
	if cfg.IsOpenAt(monday7am) {
		t.Error("expected clinic to be closed at 7 AM")
	}

	// Saturday 15:00 - after the short Saturday close
	saturday3pm := time.Date(2026, 9, 5, 15, 0, 0, 0, loc)
	if cfg.IsOpenAt(saturday3pm) {
		t.Error("expected clinic to be closed Saturday 3 PM")
	}
}

func TestSlotTimesWeekday(t *testing.T) {
	cfg := DefaultConfig("romi-dental")
	loc := cfg.Loc()

	monday := time.Date(2026, 9, 7, 0, 0, 0, 0, loc)
	slots := cfg.SlotTimes(monday)

	// 9:00-18:00 with 90-minute slots: 09:00 10:30 12:00 13:30 15:00 16:30
	if len(slots) != 6 {
		t.Fatalf("expected 6 slots, got %d: %v", len(slots), slots)
	}
	if slots[0].Hour() != 9 || slots[0].Minute() != 0 {
		t.Errorf("first slot should be 09:00, got %s", slots[0].Format("15:04"))
	}
	if last := slots[len(slots)-1]; last.Hour() != 16 || last.Minute() != 30 {
		t.Errorf("last slot should be 16:30, got %s", last.Format("15:04"))
	}
}

func TestSlotTimesClosedDay(t *testing.T) {
	cfg := DefaultConfig("romi-dental")
	sunday := time.Date(2026, 9, 6, 0, 0, 0, 0, cfg.Loc())

	if slots := cfg.SlotTimes(sunday); slots != nil {
		t.Fatalf("expected no slots on Sunday, got %v", slots)
	}
}

func TestSlotTimesSaturday(t *testing.T) {
	cfg := DefaultConfig("romi-dental")
	saturday := time.Date(2026, 9, 5, 0, 0, 0, 0, cfg.Loc())

	slots := cfg.SlotTimes(saturday)
	// 9:00-14:00 with 90-minute slots: 09:00 10:30 12:00
	if len(slots) != 3 {
		t.Fatalf("expected 3 Saturday slots, got %d: %v", len(slots), slots)
	}
}

func TestMatchService(t *testing.T) {
	cfg := DefaultConfig("romi-dental")

	cases := []struct {
		in   string
		want string
	}{
		{"teeth whitening", "teeth whitening"},
		{"Teeth Whitening", "teeth whitening"},
		{"implants", "dental implants and prosthetics"},
		{"emergency", "emergency dental care"},
		{"haircut", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := cfg.MatchService(tc.in); got != tc.want {
			t.Errorf("MatchService(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
