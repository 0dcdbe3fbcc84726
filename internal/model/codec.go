package model

import (
	"encoding/json"
	"time"
)

// timeLayout is RFC 3339 with millisecond precision, matching the timestamps
// written by earlier versions of the editor.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTime renders t in UTC using the persisted timestamp layout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseTime parses a persisted timestamp. Any RFC 3339 form is accepted.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func marshalPretty(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
