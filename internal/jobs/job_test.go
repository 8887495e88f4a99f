package jobs

import (
	"testing"
	"time"

	"github.com/smallbiznis/posreport/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptions(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)

	t.Run("defaults to yesterday and today", func(t *testing.T) {
		opts, err := ParseOptions(now, "", "", " B1 ", "")
		require.NoError(t, err)
		assert.Equal(t, "2024-03-09", opts.FromDate())
		assert.Equal(t, "2024-03-10", opts.ToDate())
		assert.Equal(t, "B1", opts.Branch)
	})

	t.Run("single date", func(t *testing.T) {
		opts, err := ParseOptions(now, "2024-01-05", "", "", "")
		require.NoError(t, err)
		assert.Equal(t, "2024-01-05", opts.FromDate())
		assert.Equal(t, "2024-01-05", opts.ToDate())
	})

	t.Run("bad format", func(t *testing.T) {
		_, err := ParseOptions(now, "2024/01/05", "2024-01-06", "", "")
		verrs, ok := validation.As(err)
		require.True(t, ok)
		assert.True(t, verrs.Has("from"))
		assert.False(t, verrs.Has("to"))
	})

	t.Run("reversed range", func(t *testing.T) {
		_, err := ParseOptions(now, "2024-01-06", "2024-01-05", "", "")
		verrs, ok := validation.As(err)
		require.True(t, ok)
		assert.True(t, verrs.Has("to"))
	})

	t.Run("range too wide", func(t *testing.T) {
		_, err := ParseOptions(now, "2023-01-01", "2024-12-31", "", "")
		_, ok := validation.As(err)
		assert.True(t, ok)
	})
}

func TestOptionsMap(t *testing.T) {
	opts := Options{
		From:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:    time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Store: "S1",
	}
	assert.Equal(t, map[string]any{"from": "2024-01-01", "to": "2024-01-02", "store": "S1"}, opts.Map())
}
