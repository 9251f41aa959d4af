package timefmt

import (
	"errors"
	"time"
)

// Layouts used on the HTTP boundary. The engine itself works with time.Time;
// the 14-digit form only exists in requests and responses.
const (
	Compact     = "20060102150405"
	CompactDate = "20060102"
)

var ErrBadTimestamp = errors.New("timestamp must be yyyyMMddHHmmss")

// Parse decodes a 14-digit timestamp as a UTC instant.
func Parse(s string) (time.Time, error) {
	t, err := time.ParseInLocation(Compact, s, time.UTC)
	if err != nil {
		return time.Time{}, ErrBadTimestamp
	}
	return t, nil
}

// ParseDate decodes a yyyyMMdd date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(CompactDate, s, time.UTC)
	if err != nil {
		return time.Time{}, ErrBadTimestamp
	}
	return t, nil
}

// Format encodes an instant as a 14-digit UTC timestamp. Zero times encode
// as the empty string so optional fields stay empty on the wire.
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(Compact)
}

// FormatDate encodes the date portion only.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(CompactDate)
}

// ParseSlots decodes a slot list, truncating each entry to whole minutes so
// both sides of a match quantize identically.
func ParseSlots(raw []string) ([]time.Time, error) {
	slots := make([]time.Time, 0, len(raw))
	for _, s := range raw {
		t, err := Parse(s)
		if err != nil {
			return nil, err
		}
		slots = append(slots, t.Truncate(time.Minute))
	}
	return slots, nil
}

// FormatSlots is the inverse of ParseSlots.
func FormatSlots(slots []time.Time) []string {
	raw := make([]string, 0, len(slots))
	for _, t := range slots {
		raw = append(raw, Format(t))
	}
	return raw
}
