package settings

import (
	"fmt"
	"log"
	"math"
	"strings"
	"time"
)

// Storage keys. Temperatures are stored as int32 hundredths of a degree.
const (
	KeyDelay      = "delay_ms"
	KeyPotReport  = "pot_report"
	KeyMonitor    = "monitor"
	KeyMode       = "sys_mode"
	KeyManualDuty = "man_pwm"
	KeyAutoMin    = "auto_tmin"
	KeyAutoMax    = "auto_tmax"
)

// KV is non-volatile int32 storage.
type KV interface {
	SetInt32(key string, v int32) error
	GetInt32(key string) (int32, bool, error)
}

func minKey(id ChannelID) string {
	if id == Auto {
		return KeyAutoMin
	}
	return strings.ToLower(id.String()) + "_min"
}

func maxKey(id ChannelID) string {
	if id == Auto {
		return KeyAutoMax
	}
	return strings.ToLower(id.String()) + "_max"
}

func scheduleKeys(i int) []string {
	return []string{
		fmt.Sprintf("sch%d_act", i),
		fmt.Sprintf("sch%d_sh", i),
		fmt.Sprintf("sch%d_eh", i),
		fmt.Sprintf("sch%d_t0", i),
		fmt.Sprintf("sch%d_t1", i),
	}
}

// Keys lists every storage key in a stable order.
func Keys() []string {
	keys := []string{KeyDelay, KeyPotReport, KeyMonitor, KeyMode, KeyManualDuty}
	for _, id := range []ChannelID{Red, Green, Blue, White, Auto} {
		keys = append(keys, minKey(id), maxKey(id))
	}
	for i := 0; i < NumSchedules; i++ {
		keys = append(keys, scheduleKeys(i)...)
	}
	return keys
}

func centi(v float64) int32 {
	return int32(math.Round(v * 100))
}

func fromCenti(v int32) float64 {
	return float64(v) / 100
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// Values encodes a snapshot into storage keys.
func (snap Snapshot) Values() map[string]int32 {
	vals := map[string]int32{
		KeyDelay:      int32(snap.Delay / time.Millisecond),
		KeyPotReport:  boolInt(snap.PotReport),
		KeyMonitor:    boolInt(snap.Monitor),
		KeyMode:       int32(snap.Mode),
		KeyManualDuty: int32(snap.ManualDuty),
	}
	for _, id := range []ChannelID{Red, Green, Blue, White, Auto} {
		c := snap.Channel(id)
		vals[minKey(id)] = centi(c.Min)
		vals[maxKey(id)] = centi(c.Max)
	}
	for i, sc := range snap.Schedules {
		k := scheduleKeys(i)
		vals[k[0]] = boolInt(sc.Active)
		vals[k[1]] = int32(sc.StartHour)
		vals[k[2]] = int32(sc.EndHour)
		vals[k[3]] = centi(sc.T0)
		vals[k[4]] = centi(sc.T100)
	}
	return vals
}

// Persist writes the given keys, or all keys when none are given.
func (s *Settings) Persist(kv KV, keys ...string) error {
	if len(keys) == 0 {
		keys = Keys()
	}
	vals := s.Snapshot().Values()
	for _, k := range keys {
		v, ok := vals[k]
		if !ok {
			continue
		}
		if err := kv.SetInt32(k, v); err != nil {
			return fmt.Errorf("failed to persist %s: %w", k, err)
		}
	}
	return nil
}

// Load applies stored values on top of the current settings. Values that
// fail validation are skipped and logged; the current value stays.
func (s *Settings) Load(kv KV) error {
	get := func(key string) (int32, bool, error) {
		v, ok, err := kv.GetInt32(key)
		if err != nil {
			return 0, false, fmt.Errorf("failed to load %s: %w", key, err)
		}
		return v, ok, nil
	}
	skip := func(err error) {
		if err != nil {
			log.Printf("settings: skipping stored value: %v", err)
		}
	}

	if v, ok, err := get(KeyDelay); err != nil {
		return err
	} else if ok {
		skip(s.SetDelay(int(v)))
	}
	if v, ok, err := get(KeyPotReport); err != nil {
		return err
	} else if ok {
		s.SetPotReport(v != 0)
	}
	if v, ok, err := get(KeyMonitor); err != nil {
		return err
	} else if ok {
		s.SetMonitor(v != 0)
	}
	if v, ok, err := get(KeyMode); err != nil {
		return err
	} else if ok {
		skip(s.SetMode(Mode(v)))
	}
	if v, ok, err := get(KeyManualDuty); err != nil {
		return err
	} else if ok {
		skip(s.SetManualDuty(int(v)))
	}

	for _, id := range []ChannelID{Red, Green, Blue, White, Auto} {
		ch := s.Channel(id)
		lo, okLo, err := get(minKey(id))
		if err != nil {
			return err
		}
		hi, okHi, err := get(maxKey(id))
		if err != nil {
			return err
		}
		if okLo {
			ch.Min = fromCenti(lo)
		}
		if okHi {
			ch.Max = fromCenti(hi)
		}
		if okLo || okHi {
			skip(s.SetChannel(id, ch))
		}
	}

	for i := 0; i < NumSchedules; i++ {
		sc := s.Snapshot().Schedules[i]
		found := false
		for j, k := range scheduleKeys(i) {
			v, ok, err := get(k)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			found = true
			switch j {
			case 0:
				sc.Active = v != 0
			case 1:
				sc.StartHour = int(v)
			case 2:
				sc.EndHour = int(v)
			case 3:
				sc.T0 = fromCenti(v)
			case 4:
				sc.T100 = fromCenti(v)
			}
		}
		if found {
			skip(s.SetSchedule(i, sc))
		}
	}

	return nil
}

// Bind persists every subsequent change to kv.
func (s *Settings) Bind(kv KV) {
	s.OnChange(func(keys []string) {
		if err := s.Persist(kv, keys...); err != nil {
			log.Printf("settings: %v", err)
		}
	})
}
