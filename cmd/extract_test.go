package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarthorn/energy-stats/internal/model"
)

func TestResolveCountries(t *testing.T) {
	t.Run("explicit codes are validated and normalised", func(t *testing.T) {
		codes, err := resolveCountries([]string{"gbr", "FRA"}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"GBR", "FRA"}, codes)
	})

	t.Run("unknown code aborts", func(t *testing.T) {
		_, err := resolveCountries([]string{"GBR", "XYZ"}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "XYZ")
	})

	t.Run("empty request falls back to the given list", func(t *testing.T) {
		codes, err := resolveCountries(nil, []string{"DEU"})
		require.NoError(t, err)
		assert.Equal(t, []string{"DEU"}, codes)
	})

	t.Run("no request and no fallback means the whole registry", func(t *testing.T) {
		codes, err := resolveCountries(nil, nil)
		require.NoError(t, err)
		assert.Equal(t, model.AllCountryCodes(), codes)
	})
}
