package sip

import (
	"fmt"
	"strings"
	"time"
)

// The protocol's fixed width date grammar: yyyyMMdd, four filler characters
// (blank or a timezone marker, ignored on input), HHmmss. Always 18 bytes.
const (
	dateTimeSlotWidth  = 18
	dateTimeLayout     = "20060102    150405"
	dueDateLayout      = "2006-01-02"
	backendTimeLayoutZ = "2006-01-02T15:04:05.000Z0700"
)

// parseWireDateTime interprets an 18 character slot in the given location and
// normalizes to UTC. An all blank slot is a dummy entry from terminals that do
// not set their clocks and maps to the Unix epoch.
func parseWireDateTime(slot string, loc *time.Location) (time.Time, error) {
	if strings.TrimSpace(slot) == "" {
		return time.Unix(0, 0).UTC(), nil
	}
	// Tolerate non blank filler (some terminals stamp a timezone indicator).
	normalized := slot[:8] + "    " + slot[12:]
	t, err := time.ParseInLocation(dateTimeLayout, normalized, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date/time slot %q: %w", slot, err)
	}
	return t.UTC(), nil
}

// formatWireDateTime renders t in the terminal's location using the fixed
// width grammar.
func formatWireDateTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateTimeLayout)
}

// ParseBackendTime parses the backend's ISO offset timestamps. The backend is
// not entirely consistent about fractional seconds, so both forms are
// accepted.
func ParseBackendTime(value string) (time.Time, error) {
	t, err := time.Parse(backendTimeLayoutZ, value)
	if err != nil {
		t, err = time.Parse(time.RFC3339, value)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid backend timestamp %q: %w", value, err)
	}
	return t.UTC(), nil
}

// FormatDueDate renders a due date for itemized summary lines.
func FormatDueDate(t time.Time) string {
	return t.Format(dueDateLayout)
}
