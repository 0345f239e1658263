package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// millisecondThreshold separates epoch seconds from epoch milliseconds.
// 1e11 seconds is past the year 5000, so anything larger is treated as ms.
const millisecondThreshold = 1e11

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999-0700",
	"2006-01-02 15:04:05-0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ErrUnparseableTimestamp is returned for values that are not an epoch or ISO-8601 instant.
var ErrUnparseableTimestamp = errors.New("unparseable timestamp")

// ParseTimestamp normalizes integer/float epoch seconds and ISO-8601 strings
// (with or without offset) to a UTC instant. Strings without an offset are UTC.
func ParseTimestamp(v any) (time.Time, error) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, fmt.Errorf("%w: nil", ErrUnparseableTimestamp)
	case time.Time:
		if x.IsZero() {
			return time.Time{}, fmt.Errorf("%w: zero time", ErrUnparseableTimestamp)
		}
		return x.UTC(), nil
	case int:
		return fromEpoch(float64(x))
	case int32:
		return fromEpoch(float64(x))
	case int64:
		return fromEpochInt(x), nil
	case uint32:
		return fromEpoch(float64(x))
	case uint64:
		return fromEpoch(float64(x))
	case float32:
		return fromEpoch(float64(x))
	case float64:
		return fromEpoch(x)
	case json.Number:
		return parseTimestampString(x.String())
	case string:
		return parseTimestampString(x)
	default:
		return time.Time{}, fmt.Errorf("%w: unsupported type %T", ErrUnparseableTimestamp, v)
	}
}

func parseTimestampString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty string", ErrUnparseableTimestamp)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return fromEpochInt(n), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromEpoch(f)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableTimestamp, s)
}

func fromEpochInt(n int64) time.Time {
	if math.Abs(float64(n)) >= millisecondThreshold {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

func fromEpoch(f float64) (time.Time, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, fmt.Errorf("%w: %v", ErrUnparseableTimestamp, f)
	}
	if math.Abs(f) >= millisecondThreshold {
		f /= 1000
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC(), nil
}

// Timestamp is a creation time as delivered by the conversation source.
// Decoding never fails: unparseable input leaves Valid false and keeps the raw value.
type Timestamp struct {
	Time  time.Time
	Valid bool
	raw   json.RawMessage
}

// NewTimestamp wraps a known instant.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC(), Valid: !t.IsZero()}
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	*t = Timestamp{raw: append(json.RawMessage(nil), b...)}

	var v any
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	parsed, err := ParseTimestamp(v)
	if err != nil {
		return nil
	}
	t.Time = parsed
	t.Valid = true
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.Valid {
		return json.Marshal(t.Time.Format(time.RFC3339Nano))
	}
	if len(t.raw) > 0 {
		return t.raw, nil
	}
	return []byte("null"), nil
}
