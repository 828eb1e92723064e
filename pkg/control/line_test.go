package control

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/keyclimate/pkg/gate"
	"github.com/itohio/keyclimate/pkg/respond"
	"github.com/itohio/keyclimate/pkg/settings"
)

func TestStatusLine(t *testing.T) {
	st := Status{
		Time:        time.UnixMicro(1700000000123456),
		State:       gate.Unlocked,
		Temperature: 24.5,
		TempValid:   true,
		Presence:    true,
		Brightness:  0.75,
		Mode:        settings.Presence,
		Outputs:     respond.Outputs{Fan: 100, Red: 50, Green: 0, Blue: 0},
	}

	line := st.Line()
	assert.Equal(t, "T,1700000000123456,24.50,0.750,0,1,100,50,0,0,3", line)

	parsed, err := ParseLine(line)
	require.NoError(t, err)
	assert.Equal(t, st, parsed)
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr bool
	}{
		{name: "valid locked", line: "T,1,20.00,1.000,1,0,0,0,0,0,0"},
		{name: "trailing newline", line: "T,1,20.00,1.000,1,0,0,0,0,0,0\r\n"},
		{name: "shell reply", line: "STATUS: OK (Update delay: 500 ms)", wantErr: true},
		{name: "missing field", line: "T,1,20.00,1.000,1,0,0,0,0,0", wantErr: true},
		{name: "bad timestamp", line: "T,x,20.00,1.000,1,0,0,0,0,0,0", wantErr: true},
		{name: "bad temperature", line: "T,1,warm,1.000,1,0,0,0,0,0,0", wantErr: true},
		{name: "brightness out of range", line: "T,1,20.00,1.500,1,0,0,0,0,0,0", wantErr: true},
		{name: "bad flag", line: "T,1,20.00,1.000,2,0,0,0,0,0,0", wantErr: true},
		{name: "duty out of range", line: "T,1,20.00,1.000,0,1,101,0,0,0,0", wantErr: true},
		{name: "mode out of range", line: "T,1,20.00,1.000,0,1,100,0,0,0,7", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := ParseLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, gate.Locked, st.State)
			assert.True(t, st.Outputs.Locked)
		})
	}
}
