package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/keyclimate/pkg/control"
	"github.com/itohio/keyclimate/pkg/gate"
	"github.com/itohio/keyclimate/pkg/history"
	"github.com/itohio/keyclimate/pkg/respond"
	"github.com/itohio/keyclimate/pkg/settings"
	"github.com/itohio/keyclimate/pkg/store"
)

type fakeController struct {
	status   control.Status
	settings *settings.Settings
}

func (f *fakeController) Latest() control.Status       { return f.status }
func (f *fakeController) Settings() *settings.Settings { return f.settings }

func newController() *fakeController {
	return &fakeController{
		status: control.Status{
			Time:        time.Now(),
			State:       gate.Unlocked,
			Temperature: 25.5,
			TempValid:   true,
			Presence:    true,
			Outputs:     respond.Outputs{Fan: 55, Red: 10, Green: 20, Blue: 30},
		},
		settings: settings.New(settings.Defaults()),
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestIndex(t *testing.T) {
	r := New(newController(), Options{}).Router()
	rec := do(t, r, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<title>keyclimate</title>")
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}

func TestGetStatus(t *testing.T) {
	ctl := newController()
	r := New(ctl, Options{}).Router()

	rec := do(t, r, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 25.5, got["temp"])
	assert.Equal(t, true, got["pir"])
	assert.Equal(t, 55.0, got["pwm"])
	assert.Equal(t, float64(settings.Defaults().Mode), got["mode"])
	assert.Equal(t, false, got["locked"])
	assert.Equal(t, map[string]any{"r": 10.0, "g": 20.0, "b": 30.0}, got["rgb"])
	assert.Len(t, got["schedules"], settings.NumSchedules)

	sched := got["schedules"].([]any)[0].(map[string]any)
	for _, key := range []string{"act", "sh", "eh", "t0", "t100"} {
		assert.Contains(t, sched, key)
	}
}

func TestPostSettings(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		check  func(t *testing.T, snap settings.Snapshot)
	}{
		{
			name:   "mode and manual duty",
			body:   `{"mode":0,"manual_pwm":70}`,
			status: http.StatusOK,
			check: func(t *testing.T, snap settings.Snapshot) {
				assert.Equal(t, settings.Manual, snap.Mode)
				assert.Equal(t, 70, snap.ManualDuty)
			},
		},
		{
			name:   "auto range",
			body:   `{"auto_tmin":18.5,"auto_tmax":27}`,
			status: http.StatusOK,
			check: func(t *testing.T, snap settings.Snapshot) {
				assert.Equal(t, 18.5, snap.Auto.Min)
				assert.Equal(t, 27.0, snap.Auto.Max)
			},
		},
		{
			name:   "only min keeps max",
			body:   `{"auto_tmin":21}`,
			status: http.StatusOK,
			check: func(t *testing.T, snap settings.Snapshot) {
				assert.Equal(t, 21.0, snap.Auto.Min)
				assert.Equal(t, settings.Defaults().Auto.Max, snap.Auto.Max)
			},
		},
		{
			name:   "schedule with skipped entry",
			body:   `{"schedules":[null,{"act":true,"sh":6,"eh":9,"t0":19,"t100":24}]}`,
			status: http.StatusOK,
			check: func(t *testing.T, snap settings.Snapshot) {
				assert.Equal(t, settings.Defaults().Schedules[0], snap.Schedules[0])
				assert.Equal(t, settings.Schedule{Active: true, StartHour: 6, EndHour: 9, T0: 19, T100: 24}, snap.Schedules[1])
			},
		},
		{
			name:   "invalid mode",
			body:   `{"mode":9}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "manual duty out of range",
			body:   `{"manual_pwm":101}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "inverted auto range",
			body:   `{"auto_tmin":30,"auto_tmax":20}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "too many schedules",
			body:   `{"schedules":[null,null,null,null]}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "bad json",
			body:   `{"mode":`,
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctl := newController()
			r := New(ctl, Options{}).Router()

			rec := do(t, r, http.MethodPost, "/api/settings", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
			}
			if tt.check != nil {
				tt.check(t, ctl.settings.Snapshot())
			}
		})
	}
}

func TestPostSettings_InvalidLeavesNothingApplied(t *testing.T) {
	ctl := newController()
	r := New(ctl, Options{}).Router()
	before := ctl.settings.Snapshot()

	rec := do(t, r, http.MethodPost, "/api/settings", `{"manual_pwm":10,"mode":42}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, before, ctl.settings.Snapshot())
}

func TestPostSettings_ThresholdBeyondLimit(t *testing.T) {
	ctl := newController()
	r := New(ctl, Options{}).Router()
	before := ctl.settings.Snapshot()

	for _, body := range []string{
		`{"auto_tmax":1e9}`,
		`{"auto_tmin":-1e9}`,
		`{"schedules":[{"act":true,"sh":8,"eh":12,"t0":20,"t100":1e12}]}`,
	} {
		rec := do(t, r, http.MethodPost, "/api/settings", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Equal(t, before, ctl.settings.Snapshot())
}

func TestPostSettings_Persists(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "kc.db"))
	require.NoError(t, err)
	defer st.Close()

	ctl := newController()
	ctl.settings.Bind(st)
	r := New(ctl, Options{}).Router()

	rec := do(t, r, http.MethodPost, "/api/settings", `{"mode":1,"auto_tmax":31.25}`)
	require.Equal(t, http.StatusOK, rec.Code)

	v, ok, err := st.GetInt32(settings.KeyMode)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int32(settings.AutoMode), v)

	v, ok, err = st.GetInt32("auto_tmax")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int32(3125), v)
}

func TestUploadImage(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "kc.db"))
	require.NoError(t, err)
	defer st.Close()

	dir := filepath.Join(t.TempDir(), "ota")
	restarted := 0
	r := New(newController(), Options{
		OTADir:  dir,
		Images:  st,
		Restart: func() { restarted++ },
	}).Router()

	rec := do(t, r, http.MethodPost, "/ota", "firmware-bytes")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OTA OK", rec.Body.String())
	assert.Equal(t, 1, restarted)

	images, err := st.Images()
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, int64(len("firmware-bytes")), images[0].Size)

	data, err := os.ReadFile(images[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "firmware-bytes", string(data))

	rec = do(t, r, http.MethodGet, "/ota", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []store.Image
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed, 1)

	rec = do(t, r, http.MethodPost, "/ota", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, restarted, "failed upload does not restart")
}

type failingImages struct{}

func (failingImages) PutImage(store.Image) error     { return errors.New("disk full") }
func (failingImages) Images() ([]store.Image, error) { return nil, nil }

func TestUploadImage_RecordFailureRemovesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ota")
	restarted := false
	r := New(newController(), Options{
		OTADir:  dir,
		Images:  failingImages{},
		Restart: func() { restarted = true },
	}).Router()

	rec := do(t, r, http.MethodPost, "/ota", "firmware-bytes")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, restarted)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHistory(t *testing.T) {
	r := New(newController(), Options{}).Router()
	rec := do(t, r, http.MethodGet, "/api/history", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	w := history.New(time.Minute)
	now := time.Now()
	for i := 0; i < 10; i++ {
		w.Add(history.Point{Time: now.Add(time.Duration(i) * time.Second), Temperature: 20 + float64(i)})
	}
	r = New(newController(), Options{History: w}).Router()

	rec = do(t, r, http.MethodGet, "/api/history?max=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got historyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Points, 5)
	assert.InDelta(t, 60.0, got.Trend, 1e-9)

	rec = do(t, r, http.MethodGet, "/api/history?max=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("keyclimate_up 1\n"))
	})
	r := New(newController(), Options{Metrics: metrics}).Router()
	rec := do(t, r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "keyclimate_up 1\n", rec.Body.String())
}

func TestListenAndServe_GracefulShutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	s := New(newController(), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/api/status")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
