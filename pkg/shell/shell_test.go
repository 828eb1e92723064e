package shell

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/keyclimate/pkg/settings"
)

type volts float64

func (v volts) Volts() float64 { return float64(v) }

func newShell() (*Shell, *settings.Settings) {
	s := settings.New(settings.Defaults())
	return New(s, volts(1.6504)), s
}

func TestExec(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		reply   string
		handled bool
	}{
		{name: "status", line: "status", reply: "STATUS: OK (Update delay: 500 ms)", handled: true},
		{name: "status with crlf", line: "status\r\n", reply: "STATUS: OK (Update delay: 500 ms)", handled: true},
		{name: "set delay", line: "SET_DELAY 1000", reply: "Update delay set to: 1000 ms", handled: true},
		{name: "delay too short", line: "SET_DELAY 50", reply: "Error: Delay must be between 100 and 5000 ms", handled: true},
		{name: "delay too long", line: "SET_DELAY 9000", reply: "Error: Delay must be between 100 and 5000 ms", handled: true},
		{name: "delay not a number", line: "SET_DELAY soon", reply: "Error: Delay must be between 100 and 5000 ms", handled: true},
		{name: "pot read", line: "POT_READ", reply: "POT_VOLTAGE: 1.650 V", handled: true},
		{name: "pot on", line: "POT_ON", reply: "Potentiometer: periodic report ENABLED", handled: true},
		{name: "pot off", line: "POT_OFF", reply: "Potentiometer: periodic report DISABLED", handled: true},
		{name: "monitor on", line: "ENABLE_MONITOR", reply: "Monitor: ENABLED", handled: true},
		{name: "monitor off", line: "DISABLE_MONITOR", reply: "Monitor: DISABLED", handled: true},
		{name: "red min", line: "R_MIN 5", reply: "R_MIN set to 5.00 C", handled: true},
		{name: "red min too high", line: "R_MIN 15", reply: "Error: R_MIN must be < R_MAX", handled: true},
		{name: "green max", line: "G_MAX 35.5", reply: "G_MAX set to 35.50 C", handled: true},
		{name: "blue max too low", line: "B_MAX 40", reply: "Error: B_MAX must be > B_MIN", handled: true},
		{name: "white min", line: "W_MIN 60", reply: "W_MIN set to 60.00 C", handled: true},
		{name: "threshold not a number", line: "B_MIN cold", reply: "Error: invalid value for B_MIN", handled: true},
		{name: "threshold nan", line: "R_MIN NaN", reply: "Error: invalid value for R_MIN", handled: true},
		{name: "threshold infinite", line: "R_MAX +Inf", reply: "Error: invalid value for R_MAX", handled: true},
		{name: "threshold too large", line: "G_MAX 1e9", reply: "Error: invalid value for G_MAX", handled: true},
		{name: "delay wraps when scaled", line: "SET_DELAY 288230376151712500", reply: "Error: Delay must be between 100 and 5000 ms", handled: true},
		{name: "unknown", line: "HELLO", handled: false},
		{name: "unknown with arg", line: "X_MIN 3", handled: false},
		{name: "wrong case", line: "STATUS", handled: false},
		{name: "empty", line: "", handled: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sh, _ := newShell()
			reply, handled := sh.Exec(tt.line)
			assert.Equal(t, tt.handled, handled)
			assert.Equal(t, tt.reply, reply)
		})
	}
}

func TestExec_SideEffects(t *testing.T) {
	sh, s := newShell()

	sh.Exec("SET_DELAY 50")
	assert.Equal(t, 500*time.Millisecond, s.Delay(), "rejected delay leaves previous value")

	sh.Exec("SET_DELAY 250")
	assert.Equal(t, 250*time.Millisecond, s.Delay())

	sh.Exec("R_MIN 20")
	assert.Equal(t, settings.Channel{Min: 0, Max: 15}, s.Channel(settings.Red))
	sh.Exec("R_MAX 25")
	sh.Exec("R_MIN 20")
	assert.Equal(t, settings.Channel{Min: 20, Max: 25}, s.Channel(settings.Red))

	sh.Exec("R_MIN NaN")
	sh.Exec("R_MAX 30")
	assert.Equal(t, settings.Channel{Min: 20, Max: 30}, s.Channel(settings.Red))

	sh.Exec("SET_DELAY 288230376151712500")
	assert.Equal(t, 250*time.Millisecond, s.Delay())

	sh.Exec("POT_ON")
	assert.True(t, s.PotReport())
	sh.Exec("DISABLE_MONITOR")
	assert.False(t, s.Monitor())
}

func TestExec_NoPotentiometer(t *testing.T) {
	sh := New(settings.New(settings.Defaults()), nil)
	reply, ok := sh.Exec("POT_READ")
	assert.True(t, ok)
	assert.Equal(t, "Error: potentiometer unavailable", reply)
}

type pipeRW struct {
	io.Reader
	mu  sync.Mutex
	out bytes.Buffer
}

func (p *pipeRW) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.Write(b)
}

func (p *pipeRW) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.String()
}

func TestServe(t *testing.T) {
	sh, _ := newShell()
	rw := &pipeRW{Reader: strings.NewReader("status\r\nnoise\nSET_DELAY 50\nR_MAX 20\n")}

	err := sh.Serve(context.Background(), rw)
	require.NoError(t, err)

	assert.Equal(t,
		"STATUS: OK (Update delay: 500 ms)\n"+
			"Error: Delay must be between 100 and 5000 ms\n"+
			"R_MAX set to 20.00 C\n",
		rw.String())
}

func TestServe_Cancel(t *testing.T) {
	sh, _ := newShell()
	pr, pw := io.Pipe()
	defer pw.Close()
	rw := &pipeRW{Reader: pr}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sh.Serve(ctx, rw)
	}()

	_, err := pw.Write([]byte("status\n"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rw.String() != "" }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Serve did not stop after cancel")
	}
}

func TestReport(t *testing.T) {
	sh, s := newShell()
	require.NoError(t, s.SetDelay(100))
	out := &pipeRW{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sh.Report(ctx, out)
		close(done)
	}()

	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, out.String(), "reporting disabled by default")

	s.SetPotReport(true)
	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "POT_VOLTAGE: 1.650 V\n") >= 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Report did not stop after cancel")
	}
}

func TestLineBuffer(t *testing.T) {
	var lb LineBuffer
	var got []string
	push := func(s string) {
		for i := 0; i < len(s); i++ {
			if line, ok := lb.Push(s[i]); ok {
				got = append(got, line)
			}
		}
	}

	push("status\r\n\nPOT_")
	push("READ\n")
	push(strings.Repeat("x", MaxLine+5) + "\n")
	push("POT_ON\n")

	assert.Equal(t, []string{"status", "POT_READ", "POT_ON"}, got)
}
