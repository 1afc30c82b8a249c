package domain

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Slot is one bookable interval within the operating window, both bounds in
// "HH:MM" form.
type Slot struct {
	Start string
	End   string
}

// SlotConfig is the operating window the catalog is derived from.
type SlotConfig struct {
	StartTime   string
	EndTime     string
	SlotMinutes int
}

// Slots derives the ordered catalog of bookable slots covering
// [StartTime, EndTime) in SlotMinutes increments. A trailing interval shorter
// than SlotMinutes is dropped.
func (c SlotConfig) Slots() ([]Slot, error) {
	start, err := ParseTimeOfDay(c.StartTime)
	if err != nil {
		return nil, fmt.Errorf("start_time: %w", err)
	}
	end, err := ParseTimeOfDay(c.EndTime)
	if err != nil {
		return nil, fmt.Errorf("end_time: %w", err)
	}
	if c.SlotMinutes <= 0 {
		return nil, fmt.Errorf("slot duration must be positive, got %d", c.SlotMinutes)
	}
	if end <= start {
		return nil, fmt.Errorf("end_time %s must be after start_time %s", c.EndTime, c.StartTime)
	}

	out := make([]Slot, 0, (end-start)/c.SlotMinutes)
	for m := start; m+c.SlotMinutes <= end; m += c.SlotMinutes {
		out = append(out, Slot{
			Start: FormatTimeOfDay(m),
			End:   FormatTimeOfDay(m + c.SlotMinutes),
		})
	}
	return out, nil
}

// ParseTimeOfDay parses an "HH:MM" string into minutes since midnight.
func ParseTimeOfDay(s string) (int, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return h*60 + m, nil
}

// FormatTimeOfDay renders minutes since midnight as "HH:MM".
func FormatTimeOfDay(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
