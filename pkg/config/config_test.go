package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, "1234#", cfg.Gate.Credential)
	assert.Equal(t, 5, cfg.Gate.Capacity)
	assert.True(t, cfg.Gate.AppendSubmit)
	assert.Equal(t, ChannelConfig{Min: 0, Max: 15}, cfg.Thresholds.Red)
	assert.Equal(t, ChannelConfig{Min: 10, Max: 30}, cfg.Thresholds.Green)
	assert.Equal(t, ChannelConfig{Min: 40, Max: 50}, cfg.Thresholds.Blue)
	assert.Equal(t, ChannelConfig{Min: 50, Max: 200}, cfg.Thresholds.White)
	assert.Len(t, cfg.Thresholds.Schedules, 3)
	assert.Equal(t, 500*time.Millisecond, cfg.Shell.Delay)
	assert.True(t, cfg.Shell.Monitor)
	assert.False(t, cfg.Shell.PotReport)
	assert.Equal(t, 20*time.Millisecond, cfg.Keypad.Debounce)
	assert.Equal(t, 3950.0, cfg.Sensors.Thermistor.Beta)
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
serial:
  port: "/dev/ttyUSB1"

gate:
  credential: "1234"
  capacity: 8
  append_submit: false
  delete_policy: clear

control:
  mode: scheduled
  period: 250ms

thresholds:
  red: {min: 5, max: 20, band: true}
  schedules:
    - {active: true, start_hour: 6, end_hour: 9, t0: 19, t100: 27}

shell:
  delay: 1s
  monitor: false
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.Port)
	assert.Equal(t, "1234", cfg.Gate.Credential)
	assert.Equal(t, 8, cfg.Gate.Capacity)
	assert.False(t, cfg.Gate.AppendSubmit)
	assert.Equal(t, "clear", cfg.Gate.DeletePolicy)
	assert.Equal(t, "scheduled", cfg.Control.Mode)
	assert.Equal(t, 250*time.Millisecond, cfg.Control.Period)
	assert.Equal(t, ChannelConfig{Min: 5, Max: 20, Band: true}, cfg.Thresholds.Red)
	assert.Equal(t, ChannelConfig{Min: 10, Max: 30}, cfg.Thresholds.Green) // default
	require.Len(t, cfg.Thresholds.Schedules, 1)
	assert.Equal(t, ScheduleConfig{Active: true, StartHour: 6, EndHour: 9, T0: 19, T100: 27}, cfg.Thresholds.Schedules[0])
	assert.Equal(t, time.Second, cfg.Shell.Delay)
	assert.False(t, cfg.Shell.Monitor)
}

func TestLoad_ValidTOML(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "keyclimate.toml")

	tomlContent := `
[serial]
port = "COM4"

[gate]
credential = "4321#"

[shell]
delay = "750ms"

[thresholds.blue]
min = 35.0
max = 45.0
`
	require.NoError(t, os.WriteFile(filename, []byte(tomlContent), 0644))

	cfg, err := Load(filename)
	require.NoError(t, err)

	assert.Equal(t, "COM4", cfg.Serial.Port)
	assert.Equal(t, "4321#", cfg.Gate.Credential)
	assert.Equal(t, 750*time.Millisecond, cfg.Shell.Delay)
	assert.Equal(t, 35.0, cfg.Thresholds.Blue.Min)
	assert.Equal(t, 45.0, cfg.Thresholds.Blue.Max)
	assert.Equal(t, 115200, cfg.Serial.Baud) // default
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("invalid: yaml: content: [")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
serial:
  port: "/dev/ttyACM1"
gate:
  capacity: 0
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// Should use defaults for missing fields
	assert.Equal(t, "/dev/ttyACM1", cfg.Serial.Port)
	assert.Equal(t, 5, cfg.Gate.Capacity)
	assert.Equal(t, "presence", cfg.Control.Mode)
	assert.Equal(t, 16, cfg.Display.Width)
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Serial.Port = "/dev/ttyUSB0"
	cfg.Thresholds.Auto = ChannelConfig{Min: 18, Max: 28}

	tmpfile, err := os.CreateTemp("", "test_save_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	err = cfg.Save(tmpfile.Name())
	require.NoError(t, err)

	// Load it back and verify
	loaded, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", loaded.Serial.Port)
	assert.Equal(t, ChannelConfig{Min: 18, Max: 28}, loaded.Thresholds.Auto)
}
