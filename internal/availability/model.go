package availability

import (
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is a clock time expressed as minutes since midnight. Slots are
// minute-granular; a day has 1440 minutes.
type TimeOfDay int

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS" (seconds ignored).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("availability: invalid time %q", s)
	}
	var h, m int
	if _, err := fmt.Sscanf(parts[0]+":"+parts[1], "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("availability: invalid time %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("availability: invalid time %q", s)
	}
	return TimeOfDay(h*60 + m), nil
}

// ParseTimeRange accepts "HH:MM-HH:MM" (seconds tolerated on either side).
func ParseTimeRange(s string) (TimeOfDay, TimeOfDay, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("availability: invalid time range %q", s)
	}
	start, err := ParseTimeOfDay(parts[0])
	if err != nil {
		return 0, 0, err
	}
	end, err := ParseTimeOfDay(parts[1])
	if err != nil {
		return 0, 0, err
	}
	if start >= end {
		return 0, 0, fmt.Errorf("availability: invalid time range %q", s)
	}
	return start, end, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// MinutesTo returns the absolute distance to another clock time.
func (t TimeOfDay) MinutesTo(other TimeOfDay) int {
	d := int(t) - int(other)
	if d < 0 {
		d = -d
	}
	return d
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", t.String())), nil
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// SlotView is the read model for one bookable interval.
type SlotView struct {
	SlotID     int64     `json:"slotId"`
	DoctorID   int64     `json:"doctorId"`
	DoctorName string    `json:"doctorName"`
	Specialty  string    `json:"specialty"`
	Date       time.Time `json:"date"`
	Start      TimeOfDay `json:"start"`
	End        TimeOfDay `json:"end"`
	Booked     bool      `json:"isBooked"`
}

// DateOnly truncates a timestamp to its UTC calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a strict YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("availability: invalid date %q, want YYYY-MM-DD", s)
	}
	return d, nil
}
