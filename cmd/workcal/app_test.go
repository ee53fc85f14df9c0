package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDay(t *testing.T) {
	loc := time.UTC

	got, err := parseDay("2024-03-06", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 6, 0, 0, 0, 0, loc), got)

	got, err = parseDay("yesterday", loc)
	require.NoError(t, err)
	want := time.Now().In(loc).AddDate(0, 0, -1)
	assert.Equal(t, want.Day(), got.Day())
	assert.Zero(t, got.Hour(), "natural dates are truncated to midnight")
}

func TestStartOfWeek(t *testing.T) {
	wed := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), startOfWeek(wed))

	sun := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), startOfWeek(sun))
}
