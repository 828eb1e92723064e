package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/keyclimate/pkg/config"
	"github.com/itohio/keyclimate/pkg/keypad"
	"github.com/itohio/keyclimate/pkg/respond"
)

func quietBoard() *Board {
	cfg := config.Default().Sim
	cfg.NoiseLevel = 0
	return New(&cfg)
}

func TestBoard_Inputs(t *testing.T) {
	b := quietBoard()

	c, err := b.Celsius()
	require.NoError(t, err)
	assert.Equal(t, 24.0, c)

	b.SetTemperature(31.5)
	c, err = b.Celsius()
	require.NoError(t, err)
	assert.Equal(t, 31.5, c)

	b.SetProbeFault(true)
	_, err = b.Celsius()
	assert.ErrorIs(t, err, ErrProbe)

	assert.False(t, b.Present())
	b.SetPresence(true)
	assert.True(t, b.Present())

	b.SetBrightness(2)
	assert.Equal(t, 1.0, b.Level())
	b.SetBrightness(0.5)
	assert.InDelta(t, 1.65, b.Volts(), 1e-9)
}

func TestBoard_Keypad(t *testing.T) {
	b := quietBoard()
	b.Press("12#")

	assert.Equal(t, '1', b.Poll())
	assert.Equal(t, '2', b.Poll())
	assert.Equal(t, '#', b.Poll())
	assert.Equal(t, keypad.NoKey, b.Poll())
}

func TestBoard_Outputs(t *testing.T) {
	b := New(nil)
	assert.True(t, b.Outputs().Locked)

	var seen []respond.Outputs
	b.OnOutput(func(o respond.Outputs) { seen = append(seen, o) })

	require.NoError(t, b.SetLocked(false))
	require.NoError(t, b.SetDuty(100))
	require.NoError(t, b.SetDuty(100))
	require.NoError(t, b.SetRGB(10, 20, 30))

	assert.Equal(t, respond.Outputs{Fan: 100, Red: 10, Green: 20, Blue: 30}, b.Outputs())
	assert.Len(t, seen, 3, "unchanged writes are not reported")
}
