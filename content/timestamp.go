package content

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Timestamp is an optional point in time. Stored documents carry dates in
// several shapes, and some carry none at all; Valid reports whether one was
// present and readable.
type Timestamp struct {
	Time  time.Time
	Valid bool
}

// NewTimestamp returns a valid Timestamp for t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t, Valid: true}
}

// MarshalJSON writes RFC 3339 with nanoseconds, or null when not valid.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if !ts.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(ts.Time.UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON accepts an RFC 3339 string, Unix milliseconds, or an object
// of the form {"seconds": n, "nanoseconds": n}. Anything else leaves the
// Timestamp invalid without failing the surrounding document.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	*ts = Timestamp{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		if t, ok := parseTimeString(s); ok {
			*ts = NewTimestamp(t)
		}
	case '{':
		var obj struct {
			Seconds     *int64 `json:"seconds"`
			Nanoseconds int64  `json:"nanoseconds"`
			// Some exports use the underscored field names.
			USeconds     *int64 `json:"_seconds"`
			UNanoseconds int64  `json:"_nanoseconds"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil
		}
		switch {
		case obj.Seconds != nil:
			*ts = NewTimestamp(time.Unix(*obj.Seconds, obj.Nanoseconds).UTC())
		case obj.USeconds != nil:
			*ts = NewTimestamp(time.Unix(*obj.USeconds, obj.UNanoseconds).UTC())
		}
	default:
		ms, err := strconv.ParseFloat(string(data), 64)
		if err != nil || ms <= 0 {
			return nil
		}
		*ts = NewTimestamp(time.UnixMilli(int64(ms)).UTC())
	}
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimeString(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
