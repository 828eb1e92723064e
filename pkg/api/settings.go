package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/itohio/keyclimate/pkg/gate"
	"github.com/itohio/keyclimate/pkg/settings"
)

// MaxSettingsBody bounds the settings request size.
const MaxSettingsBody = 4 << 10

type rgb struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

type statusResponse struct {
	Temp      float64             `json:"temp"`
	TempValid bool                `json:"temp_valid"`
	PIR       bool                `json:"pir"`
	PWM       int                 `json:"pwm"`
	Mode      int                 `json:"mode"`
	ManPWM    int                 `json:"man_pwm"`
	AutoMin   float64             `json:"a_min"`
	AutoMax   float64             `json:"a_max"`
	Schedules []settings.Schedule `json:"schedules"`
	Locked    bool                `json:"locked"`
	RGB       rgb                 `json:"rgb"`
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	st := s.ctl.Latest()
	snap := s.ctl.Settings().Snapshot()

	writeJSON(w, statusResponse{
		Temp:      st.Temperature,
		TempValid: st.TempValid,
		PIR:       st.Presence,
		PWM:       st.Outputs.Fan,
		Mode:      int(snap.Mode),
		ManPWM:    snap.ManualDuty,
		AutoMin:   snap.Auto.Min,
		AutoMax:   snap.Auto.Max,
		Schedules: snap.Schedules[:],
		Locked:    st.State == gate.Locked,
		RGB:       rgb{R: st.Outputs.Red, G: st.Outputs.Green, B: st.Outputs.Blue},
	})
}

// settingsRequest carries the fields to change. Absent fields stay as they are.
type settingsRequest struct {
	Mode      *int                 `json:"mode"`
	ManualPWM *int                 `json:"manual_pwm"`
	AutoTMin  *float64             `json:"auto_tmin"`
	AutoTMax  *float64             `json:"auto_tmax"`
	Schedules []*settings.Schedule `json:"schedules"`
}

func (req *settingsRequest) apply(s *settings.Settings) error {
	if req.Mode != nil {
		if err := s.SetMode(settings.Mode(*req.Mode)); err != nil {
			return err
		}
	}
	if req.ManualPWM != nil {
		if err := s.SetManualDuty(*req.ManualPWM); err != nil {
			return err
		}
	}
	if req.AutoTMin != nil || req.AutoTMax != nil {
		ch := s.Channel(settings.Auto)
		if req.AutoTMin != nil {
			ch.Min = *req.AutoTMin
		}
		if req.AutoTMax != nil {
			ch.Max = *req.AutoTMax
		}
		if err := s.SetChannel(settings.Auto, ch); err != nil {
			return err
		}
	}
	if len(req.Schedules) > settings.NumSchedules {
		return fmt.Errorf("%d schedules, at most %d: %w", len(req.Schedules), settings.NumSchedules, settings.ErrInvalidArgument)
	}
	for i, sc := range req.Schedules {
		if sc == nil {
			continue
		}
		if err := s.SetSchedule(i, *sc); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) postSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxSettingsBody))
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	target := s.ctl.Settings()
	// Validate against a scratch copy so a bad field leaves nothing half applied.
	if err := req.apply(settings.New(target.Snapshot())); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, settings.ErrInvalidArgument) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	if err := req.apply(target); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	log.Printf("api: settings updated")
	writeJSON(w, map[string]string{"status": "ok"})
}
