package schema

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical wire format for civil dates.
const DateLayout = "02.01.2006"

var dateLayouts = []string{
	"2.1.2006", // accepts zero padded and unpadded day and month
	"2006-01-02",
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2.1.2006",
}

var null = []byte("null")

// Date is a calendar date without a time of day, held at UTC midnight.
type Date struct {
	time.Time
}

// NewDate returns the Date for the given calendar day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate reads dd.MM.yyyy, D.M.YYYY, yyyy-MM-dd or an RFC3339 date-time.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{t}, nil
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return NewDate(t.Date()), nil
	}
	return Date{}, fmt.Errorf("invalid date %q", s)
}

// Wire renders the date in the canonical dd.MM.yyyy form, or "" for the zero date.
func (d Date) Wire() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) String() string {
	return d.Wire()
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return null, nil
	}
	return []byte(strconv.Quote(d.Wire())), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s, ok, err := unquote(data)
	if err != nil || !ok {
		*d = Date{}
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Timestamp is a date-time read from ISO-8601 or dd.MM.yyyy and written as RFC3339.
type Timestamp struct {
	time.Time
}

// ParseTimestamp reads an ISO-8601 date-time (zone and fraction optional) or a date.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("invalid timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return null, nil
	}
	return []byte(strconv.Quote(t.Format(time.RFC3339))), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s, ok, err := unquote(data)
	if err != nil || !ok {
		*t = Timestamp{}
		return err
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// EpochMillis is a point in time carried on the wire as integer milliseconds since the epoch.
type EpochMillis struct {
	time.Time
}

// FromMillis converts epoch milliseconds.
func FromMillis(ms int64) EpochMillis {
	return EpochMillis{time.UnixMilli(ms).UTC()}
}

// Millis returns the wire value, 0 for the zero time.
func (e EpochMillis) Millis() int64 {
	if e.IsZero() {
		return 0
	}
	return e.UnixMilli()
}

func (e EpochMillis) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(e.Millis(), 10)), nil
}

func (e *EpochMillis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, null) {
		*e = EpochMillis{}
		return nil
	}
	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(string(data), 64)
		if ferr != nil {
			return fmt.Errorf("invalid epoch milliseconds %s", data)
		}
		ms = int64(f)
	}
	*e = FromMillis(ms)
	return nil
}

// unquote returns the string content of a JSON string. ok is false for null
// and the empty string.
func unquote(data []byte) (string, bool, error) {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, null) {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", false, fmt.Errorf("expected a JSON string, got %s", data)
	}
	return s, s != "", nil
}
