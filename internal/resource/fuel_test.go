package resource

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuelMeterConsume(t *testing.T) {
	m := NewFuelMeter(100)

	require.NoError(t, m.Consume(30))
	require.NoError(t, m.Consume(70))
	assert.Equal(t, uint64(100), m.Consumed())
	assert.Equal(t, uint64(0), m.Remaining())
	assert.True(t, m.Exhausted())
}

func TestFuelMeterClampsAtBudget(t *testing.T) {
	m := NewFuelMeter(100)
	require.NoError(t, m.Consume(90))

	err := m.Consume(20)
	require.Error(t, err)

	var oof *OutOfFuelError
	require.True(t, errors.As(err, &oof))
	assert.Equal(t, uint64(100), oof.Consumed, "consumed clamps at the budget")
	assert.Equal(t, uint64(100), oof.Limit)
	assert.Equal(t, uint64(100), m.Consumed())
}

func TestFuelMeterExhaustedStaysExhausted(t *testing.T) {
	m := NewFuelMeter(10)
	require.Error(t, m.Consume(11))

	assert.Error(t, m.Consume(1))
	assert.Error(t, m.Consume(0))
}

func TestFuelMeterReset(t *testing.T) {
	m := NewFuelMeter(10)
	require.Error(t, m.Consume(20))

	m.Reset()

	assert.Equal(t, uint64(0), m.Consumed())
	assert.Equal(t, uint64(10), m.Remaining())
	assert.NoError(t, m.Consume(5))
}
