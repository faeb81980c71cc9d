package badge_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/capiscio/openbadges/pkg/badge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := badge.NewError(badge.ErrCodeMissingRequiredInput, `required input "course_name" was not provided`)
	assert.Equal(t, `MISSING_REQUIRED_INPUT: required input "course_name" was not provided`, err.Error())

	wrapped := badge.WrapError(badge.ErrCodeIO, "write output", errors.New("disk full"))
	assert.Equal(t, "IO: write output: disk full", wrapped.Error())
}

func TestErrorIsMatchesByCode(t *testing.T) {
	err := badge.Errorf(badge.ErrCodeNetwork, "fetch %s", "https://example.com/a.png")
	assert.ErrorIs(t, err, badge.ErrNetwork)
	assert.NotErrorIs(t, err, badge.ErrIO)

	outer := fmt.Errorf("issue: %w", err)
	assert.ErrorIs(t, outer, badge.ErrNetwork)
	assert.Equal(t, badge.ErrCodeNetwork, badge.GetErrorCode(outer))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := badge.WrapError(badge.ErrCodeSigning, "sign", cause)
	assert.ErrorIs(t, err, cause)
}

func TestGetErrorCodeNonBadgeError(t *testing.T) {
	assert.Empty(t, badge.GetErrorCode(errors.New("plain")))
	_, ok := badge.AsError(errors.New("plain"))
	assert.False(t, ok)
}

func TestTimestampRoundTrip(t *testing.T) {
	ts, err := badge.ParseTimestamp("2025-01-01T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, int64(1735689600), ts.Unix())
	assert.Equal(t, "2025-01-01T00:00:00Z", badge.FormatTimestamp(ts))
}

func TestParseTimestampRejectsOtherLayouts(t *testing.T) {
	for _, v := range []string{
		"2025-01-01",
		"2025-01-01T00:00:00",
		"2025-01-01T00:00:00.123Z",
		"2025-01-01T00:00:00,5Z",
		"2025-01-01T0:00:00Z",
		"2025-1-01T00:00:00Z",
		"2025-01-01T00:00:00+00:00",
		"01/01/2025",
	} {
		_, err := badge.ParseTimestamp(v)
		assert.Error(t, err, v)
	}
}

func TestFormatTimestampUsesUTC(t *testing.T) {
	loc := time.FixedZone("X", 2*60*60)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, loc)
	assert.Equal(t, "2025-06-01T10:00:00Z", badge.FormatTimestamp(ts))
}
