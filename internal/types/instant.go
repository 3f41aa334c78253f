package types

import (
	"fmt"
	"time"

	"github.com/relvacode/iso8601"
)

// Instant is a point in time that accepts any ISO 8601 representation on
// input and always emits RFC 3339 UTC on output. Timestamps without an
// explicit offset are interpreted as UTC, never as server-local time.
type Instant struct {
	time.Time
}

// ParseInstant parses an ISO 8601 string into a UTC Instant.
func ParseInstant(s string) (Instant, error) {
	t, err := iso8601.ParseString(s)
	if err != nil {
		return Instant{}, NewAppError(
			ErrCodeValidationInvalidTimestamp,
			fmt.Sprintf("invalid ISO 8601 timestamp %q", s),
			err,
		)
	}
	return Instant{t.UTC()}, nil
}

// UnmarshalJSON accepts a JSON string holding an ISO 8601 timestamp. A JSON
// null leaves the instant at its zero value.
func (i *Instant) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return NewAppError(
			ErrCodeValidationInvalidTimestamp,
			"timestamp must be a JSON string",
			nil,
		)
	}
	parsed, err := ParseInstant(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// MarshalJSON emits the instant as an RFC 3339 UTC string.
func (i Instant) MarshalJSON() ([]byte, error) {
	return []byte(`"` + i.UTC().Format(time.RFC3339Nano) + `"`), nil
}
