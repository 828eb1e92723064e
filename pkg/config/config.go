package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Serial     SerialConfig     `yaml:"serial" toml:"serial"`
	Gate       GateConfig       `yaml:"gate" toml:"gate"`
	Control    ControlConfig    `yaml:"control" toml:"control"`
	Thresholds ThresholdsConfig `yaml:"thresholds" toml:"thresholds"`
	Shell      ShellConfig      `yaml:"shell" toml:"shell"`
	Sensors    SensorsConfig    `yaml:"sensors" toml:"sensors"`
	Keypad     KeypadConfig     `yaml:"keypad" toml:"keypad"`
	Hardware   HardwareConfig   `yaml:"hardware" toml:"hardware"`
	Display    DisplayConfig    `yaml:"display" toml:"display"`
	HTTP       HTTPConfig       `yaml:"http" toml:"http"`
	Store      StoreConfig      `yaml:"store" toml:"store"`
	MQTT       MQTTConfig       `yaml:"mqtt" toml:"mqtt"`
	Sim        SimConfig        `yaml:"sim" toml:"sim"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port string `yaml:"port" toml:"port"`
	Baud int    `yaml:"baud" toml:"baud"`
}

// GateConfig configures the keypad access gate.
type GateConfig struct {
	Credential     string `yaml:"credential" toml:"credential"`
	CredentialHash string `yaml:"credential_hash" toml:"credential_hash"` // bcrypt hash, overrides Credential when set
	Capacity       int    `yaml:"capacity" toml:"capacity"`
	SubmitKey      string `yaml:"submit_key" toml:"submit_key"`
	DeleteKey      string `yaml:"delete_key" toml:"delete_key"`
	AppendSubmit   bool   `yaml:"append_submit" toml:"append_submit"` // submit key becomes part of the compared PIN
	DeletePolicy   string `yaml:"delete_policy" toml:"delete_policy"` // "backspace" or "clear"
}

// ControlConfig configures the polling loop and output policies.
type ControlConfig struct {
	Period         time.Duration `yaml:"period" toml:"period"`
	FollowDelay    bool          `yaml:"follow_delay" toml:"follow_delay"` // use the shell update delay as the loop period
	Mode           string        `yaml:"mode" toml:"mode"`                 // presence, auto, manual, scheduled
	PresenceGating bool          `yaml:"presence_gating" toml:"presence_gating"`
	Brightness     bool          `yaml:"brightness" toml:"brightness"` // scale LED duty by the potentiometer
}

// ChannelConfig is a temperature range for one output channel.
type ChannelConfig struct {
	Min  float64 `yaml:"min" toml:"min"`
	Max  float64 `yaml:"max" toml:"max"`
	Band bool    `yaml:"band" toml:"band"` // zero above Max instead of saturating
}

// ScheduleConfig is one programmed fan window.
type ScheduleConfig struct {
	Active    bool    `yaml:"active" toml:"active"`
	StartHour int     `yaml:"start_hour" toml:"start_hour"`
	EndHour   int     `yaml:"end_hour" toml:"end_hour"`
	T0        float64 `yaml:"t0" toml:"t0"`
	T100      float64 `yaml:"t100" toml:"t100"`
}

// ThresholdsConfig contains the boot values of the environmental thresholds.
type ThresholdsConfig struct {
	Red        ChannelConfig    `yaml:"red" toml:"red"`
	Green      ChannelConfig    `yaml:"green" toml:"green"`
	Blue       ChannelConfig    `yaml:"blue" toml:"blue"`
	White      ChannelConfig    `yaml:"white" toml:"white"`
	Auto       ChannelConfig    `yaml:"auto" toml:"auto"`
	ManualDuty int              `yaml:"manual_duty" toml:"manual_duty"`
	Schedules  []ScheduleConfig `yaml:"schedules" toml:"schedules"`
}

// ShellConfig contains the UART shell boot values.
type ShellConfig struct {
	Delay     time.Duration `yaml:"delay" toml:"delay"`
	PotReport bool          `yaml:"pot_report" toml:"pot_report"`
	Monitor   bool          `yaml:"monitor" toml:"monitor"`
}

// ThermistorConfig describes an NTC thermistor in a voltage divider.
type ThermistorConfig struct {
	SeriesResistance   float64 `yaml:"series_resistance" toml:"series_resistance"`
	NominalResistance  float64 `yaml:"nominal_resistance" toml:"nominal_resistance"`
	NominalTemperature float64 `yaml:"nominal_temperature" toml:"nominal_temperature"`
	Beta               float64 `yaml:"beta" toml:"beta"`
	Wiring             string  `yaml:"wiring" toml:"wiring"` // "pulldown" (series resistor to ground) or "pullup"
}

// SensorsConfig contains analog front-end parameters.
type SensorsConfig struct {
	Kind       string           `yaml:"kind" toml:"kind"` // "ntc" or "lm35"
	VRef       float64          `yaml:"vref" toml:"vref"`
	ADCMax     int              `yaml:"adc_max" toml:"adc_max"`
	Samples    int              `yaml:"samples" toml:"samples"` // raw readings averaged per tick
	Thermistor ThermistorConfig `yaml:"thermistor" toml:"thermistor"`
	Smoothing  float64          `yaml:"smoothing" toml:"smoothing"` // LM35 EMA weight of the newest sample
}

// KeypadConfig configures the matrix scanner.
type KeypadConfig struct {
	Scanner  string        `yaml:"scanner" toml:"scanner"` // "edge" or "blocking"
	Debounce time.Duration `yaml:"debounce" toml:"debounce"`
	Release  time.Duration `yaml:"release" toml:"release"`
	Rows     []string      `yaml:"rows" toml:"rows"`
	Cols     []string      `yaml:"cols" toml:"cols"`
}

// HardwareConfig selects the peripheral backend and its pins.
type HardwareConfig struct {
	Backend      string `yaml:"backend" toml:"backend"` // "sim" or "periph"
	PIR          string `yaml:"pir" toml:"pir"`
	Fan          string `yaml:"fan" toml:"fan"`
	Red          string `yaml:"red" toml:"red"`
	Green        string `yaml:"green" toml:"green"`
	Blue         string `yaml:"blue" toml:"blue"`
	LockLED      string `yaml:"lock_led" toml:"lock_led"`
	UnlockLED    string `yaml:"unlock_led" toml:"unlock_led"`
	PWMFrequency int    `yaml:"pwm_frequency" toml:"pwm_frequency"` // Hz

	// External ADS1115 on I2C; channels are "A0".."A3", empty disables the input.
	I2CBus        string `yaml:"i2c_bus" toml:"i2c_bus"`
	ThermistorADC string `yaml:"thermistor_adc" toml:"thermistor_adc"`
	PotADC        string `yaml:"pot_adc" toml:"pot_adc"`
}

// DisplayConfig configures the character display.
type DisplayConfig struct {
	Width int `yaml:"width" toml:"width"`
}

// HTTPConfig configures the web surface.
type HTTPConfig struct {
	Listen string `yaml:"listen" toml:"listen"`
	OTADir string `yaml:"ota_dir" toml:"ota_dir"`
}

// StoreConfig configures non-volatile storage.
type StoreConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// MQTTConfig configures status publishing. An empty Broker disables it.
type MQTTConfig struct {
	Broker   string        `yaml:"broker" toml:"broker"`
	ClientID string        `yaml:"client_id" toml:"client_id"`
	Topic    string        `yaml:"topic" toml:"topic"`
	Username string        `yaml:"username" toml:"username"`
	Password string        `yaml:"password" toml:"password"`
	Interval time.Duration `yaml:"interval" toml:"interval"`
}

// SimConfig contains simulated peripheral configuration.
type SimConfig struct {
	Temperature float64       `yaml:"temperature" toml:"temperature"` // °C
	NoiseLevel  float64       `yaml:"noise_level" toml:"noise_level"` // °C
	Presence    bool          `yaml:"presence" toml:"presence"`
	Brightness  float64       `yaml:"brightness" toml:"brightness"` // 0..1
	SampleRate  time.Duration `yaml:"sample_rate" toml:"sample_rate"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port: "/dev/ttyACM0",
			Baud: 115200,
		},
		Gate: GateConfig{
			Credential:   "1234#",
			Capacity:     5,
			SubmitKey:    "#",
			DeleteKey:    "*",
			AppendSubmit: true,
			DeletePolicy: "backspace",
		},
		Control: ControlConfig{
			Period:         100 * time.Millisecond,
			Mode:           "presence",
			PresenceGating: true,
			Brightness:     true,
		},
		Thresholds: ThresholdsConfig{
			Red:        ChannelConfig{Min: 0, Max: 15},
			Green:      ChannelConfig{Min: 10, Max: 30},
			Blue:       ChannelConfig{Min: 40, Max: 50},
			White:      ChannelConfig{Min: 50, Max: 200},
			Auto:       ChannelConfig{Min: 20, Max: 30},
			ManualDuty: 50,
			Schedules: []ScheduleConfig{
				{StartHour: 8, EndHour: 12, T0: 20, T100: 30},
				{StartHour: 14, EndHour: 18, T0: 22, T100: 32},
				{StartHour: 20, EndHour: 23, T0: 18, T100: 25},
			},
		},
		Shell: ShellConfig{
			Delay:   500 * time.Millisecond,
			Monitor: true,
		},
		Sensors: SensorsConfig{
			Kind:    "ntc",
			VRef:    3.3,
			ADCMax:  4095,
			Samples: 8,
			Thermistor: ThermistorConfig{
				SeriesResistance:   10000,
				NominalResistance:  10000,
				NominalTemperature: 25,
				Beta:               3950,
				Wiring:             "pulldown",
			},
			Smoothing: 0.10,
		},
		Keypad: KeypadConfig{
			Scanner:  "edge",
			Debounce: 20 * time.Millisecond,
			Release:  10 * time.Millisecond,
			Rows:     []string{"GPIO5", "GPIO6", "GPIO13", "GPIO19"},
			Cols:     []string{"GPIO12", "GPIO16", "GPIO20", "GPIO21"},
		},
		Hardware: HardwareConfig{
			Backend:       "sim",
			PIR:           "GPIO17",
			Fan:           "GPIO18",
			Red:           "GPIO22",
			Green:         "GPIO23",
			Blue:          "GPIO24",
			LockLED:       "GPIO25",
			UnlockLED:     "GPIO26",
			PWMFrequency:  5000,
			ThermistorADC: "A0",
			PotADC:        "A1",
		},
		Display: DisplayConfig{
			Width: 16,
		},
		HTTP: HTTPConfig{
			Listen: ":8080",
			OTADir: "ota",
		},
		Store: StoreConfig{
			Path: "keyclimate.db",
		},
		MQTT: MQTTConfig{
			ClientID: "keyclimate",
			Topic:    "keyclimate",
			Interval: 10 * time.Second,
		},
		Sim: SimConfig{
			Temperature: 24,
			NoiseLevel:  0.05,
			Brightness:  1,
			SampleRate:  100 * time.Millisecond,
		},
	}
}

// Load loads configuration from a YAML or TOML file, chosen by extension.
// If the file doesn't exist or fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if isTOML(filename) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML or TOML file, chosen by extension.
func (c *Config) Save(filename string) error {
	var (
		data []byte
		err  error
	)
	if isTOML(filename) {
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(c)
		data = buf.Bytes()
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func isTOML(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".toml")
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = def.Serial.Baud
	}

	if c.Gate.Credential == "" && c.Gate.CredentialHash == "" {
		c.Gate.Credential = def.Gate.Credential
	}
	if c.Gate.Capacity <= 0 {
		c.Gate.Capacity = def.Gate.Capacity
	}
	if c.Gate.SubmitKey == "" {
		c.Gate.SubmitKey = def.Gate.SubmitKey
	}
	if c.Gate.DeleteKey == "" {
		c.Gate.DeleteKey = def.Gate.DeleteKey
	}
	if c.Gate.DeletePolicy == "" {
		c.Gate.DeletePolicy = def.Gate.DeletePolicy
	}

	if c.Control.Period == 0 {
		c.Control.Period = def.Control.Period
	}
	if c.Control.Mode == "" {
		c.Control.Mode = def.Control.Mode
	}

	if len(c.Thresholds.Schedules) == 0 {
		c.Thresholds.Schedules = def.Thresholds.Schedules
	}

	if c.Shell.Delay == 0 {
		c.Shell.Delay = def.Shell.Delay
	}

	if c.Sensors.Kind == "" {
		c.Sensors.Kind = def.Sensors.Kind
	}
	if c.Sensors.VRef == 0 {
		c.Sensors.VRef = def.Sensors.VRef
	}
	if c.Sensors.ADCMax == 0 {
		c.Sensors.ADCMax = def.Sensors.ADCMax
	}
	if c.Sensors.Samples <= 0 {
		c.Sensors.Samples = def.Sensors.Samples
	}
	if c.Sensors.Thermistor.SeriesResistance == 0 {
		c.Sensors.Thermistor.SeriesResistance = def.Sensors.Thermistor.SeriesResistance
	}
	if c.Sensors.Thermistor.NominalResistance == 0 {
		c.Sensors.Thermistor.NominalResistance = def.Sensors.Thermistor.NominalResistance
	}
	if c.Sensors.Thermistor.NominalTemperature == 0 {
		c.Sensors.Thermistor.NominalTemperature = def.Sensors.Thermistor.NominalTemperature
	}
	if c.Sensors.Thermistor.Beta == 0 {
		c.Sensors.Thermistor.Beta = def.Sensors.Thermistor.Beta
	}
	if c.Sensors.Thermistor.Wiring == "" {
		c.Sensors.Thermistor.Wiring = def.Sensors.Thermistor.Wiring
	}
	if c.Sensors.Smoothing == 0 {
		c.Sensors.Smoothing = def.Sensors.Smoothing
	}

	if c.Keypad.Scanner == "" {
		c.Keypad.Scanner = def.Keypad.Scanner
	}
	if c.Keypad.Debounce == 0 {
		c.Keypad.Debounce = def.Keypad.Debounce
	}
	if c.Keypad.Release == 0 {
		c.Keypad.Release = def.Keypad.Release
	}
	if len(c.Keypad.Rows) == 0 {
		c.Keypad.Rows = def.Keypad.Rows
	}
	if len(c.Keypad.Cols) == 0 {
		c.Keypad.Cols = def.Keypad.Cols
	}

	if c.Hardware.Backend == "" {
		c.Hardware.Backend = def.Hardware.Backend
	}
	if c.Hardware.PWMFrequency == 0 {
		c.Hardware.PWMFrequency = def.Hardware.PWMFrequency
	}

	if c.Display.Width <= 0 {
		c.Display.Width = def.Display.Width
	}

	if c.HTTP.Listen == "" {
		c.HTTP.Listen = def.HTTP.Listen
	}
	if c.HTTP.OTADir == "" {
		c.HTTP.OTADir = def.HTTP.OTADir
	}

	if c.Store.Path == "" {
		c.Store.Path = def.Store.Path
	}

	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = def.MQTT.Topic
	}
	if c.MQTT.Interval == 0 {
		c.MQTT.Interval = def.MQTT.Interval
	}

	if c.Sim.SampleRate == 0 {
		c.Sim.SampleRate = def.Sim.SampleRate
	}
}
