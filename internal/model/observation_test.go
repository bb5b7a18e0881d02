package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonth(t *testing.T) {
	t.Run("full date normalises to first of month", func(t *testing.T) {
		m, err := ParseMonth("2024-03-17")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), m)
	})

	t.Run("year-month form", func(t *testing.T) {
		m, err := ParseMonth("2024-03")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), m)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := ParseMonth("2024")
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseMonth("not-a-date")
		assert.Error(t, err)
	})
}

func TestFormatMonth(t *testing.T) {
	m := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-12-01", FormatMonth(m))
}
