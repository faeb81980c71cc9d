// Package badge holds the pieces shared by every stage of the Open Badge
// generation pipeline: the error taxonomy and the canonical timestamp format.
package badge

import (
	"fmt"
	"time"
)

// TimestampLayout is the only accepted timestamp format, YYYY-MM-DDTHH:MM:SSZ.
const TimestampLayout = "2006-01-02T15:04:05Z"

// Reserved request fields. They are never treated as badge inputs.
const (
	FieldBadgeID        = "badge_id"
	FieldRecipientEmail = "recipient_email"
	FieldOutputDir      = "output_dir"

	// FieldExpires is the implicit input of badges declared with expires: true.
	FieldExpires = "expires"
)

// ReservedFields lists request fields that never become credential claims.
var ReservedFields = map[string]bool{
	FieldBadgeID:        true,
	FieldRecipientEmail: true,
	FieldOutputDir:      true,
}

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a value in TimestampLayout. The value must be in
// exactly that form: time.Parse alone also accepts fractional seconds and
// single-digit hours.
func ParseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected format YYYY-MM-DDTHH:MM:SSZ: %w", err)
	}
	if t.Format(TimestampLayout) != value {
		return time.Time{}, fmt.Errorf("expected format YYYY-MM-DDTHH:MM:SSZ, got %q", value)
	}
	return t, nil
}

// Clock returns the current time. Tests override it through options.
type Clock func() time.Time

// SystemClock returns the current UTC time truncated to whole seconds.
func SystemClock() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
