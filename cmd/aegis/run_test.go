package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCallArgs(t *testing.T) {
	args, err := parseCallArgs([]string{"1", "42", "0"})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 42, 0}, args)

	_, err = parseCallArgs([]string{"-1"})
	assert.Error(t, err)

	_, err = parseCallArgs([]string{"abc"})
	assert.Error(t, err)

	args, err = parseCallArgs(nil)
	require.NoError(t, err)
	assert.Empty(t, args)
}

func TestLoadProfileOrDefaults(t *testing.T) {
	caps, limits, err := loadProfileOrDefaults("")
	require.NoError(t, err)
	assert.Equal(t, 0, caps.Len(), "no profile means deny everything")
	assert.NotZero(t, limits.FuelMax)

	_, _, err = loadProfileOrDefaults("/nonexistent/profile.yaml")
	assert.Error(t, err)
}
