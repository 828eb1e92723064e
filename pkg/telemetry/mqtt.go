package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/robfig/cron/v3"

	"github.com/itohio/keyclimate/pkg/config"
	"github.com/itohio/keyclimate/pkg/control"
	"github.com/itohio/keyclimate/pkg/gate"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// ErrTimeout is returned when the broker does not acknowledge in time.
var ErrTimeout = errors.New("mqtt timeout")

// Client publishes payloads to a broker.
type Client interface {
	Publish(topic string, payload []byte) error
	Close()
}

type pahoClient struct {
	client mqtt.Client
}

// Dial connects to the broker described by cfg.
func Dial(cfg config.MQTTConfig) (Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("telemetry: mqtt connection lost: %v", err)
	})

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Broker, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Broker, err)
	}
	return &pahoClient{client: c}, nil
}

func (p *pahoClient) Publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: %w", topic, ErrTimeout)
	}
	return token.Error()
}

func (p *pahoClient) Close() {
	p.client.Disconnect(250)
}

// Payload is the JSON document published for a status.
type Payload struct {
	Time        int64   `json:"time"`
	State       string  `json:"state"`
	Temperature float64 `json:"temp"`
	TempValid   bool    `json:"temp_valid"`
	Presence    bool    `json:"pir"`
	Brightness  float64 `json:"brightness"`
	Mode        string  `json:"mode"`
	Fan         int     `json:"fan"`
	Red         int     `json:"r"`
	Green       int     `json:"g"`
	Blue        int     `json:"b"`
}

// NewPayload builds the published document for st.
func NewPayload(st control.Status) Payload {
	return Payload{
		Time:        st.Time.Unix(),
		State:       st.State.String(),
		Temperature: st.Temperature,
		TempValid:   st.TempValid,
		Presence:    st.Presence,
		Brightness:  st.Brightness,
		Mode:        st.Mode.String(),
		Fan:         st.Outputs.Fan,
		Red:         st.Outputs.Red,
		Green:       st.Outputs.Green,
		Blue:        st.Outputs.Blue,
	}
}

// Publisher sends the latest status on a cron schedule and gate outcomes as
// they happen.
type Publisher struct {
	client Client
	topic  string
	latest func() control.Status

	mu   sync.Mutex
	cron *cron.Cron
}

// NewPublisher creates a publisher. latest is called on every scheduled run.
func NewPublisher(client Client, topic string, latest func() control.Status) *Publisher {
	return &Publisher{
		client: client,
		topic:  topic,
		latest: latest,
	}
}

// StatusTopic is where status payloads go.
func (p *Publisher) StatusTopic() string {
	return p.topic + "/status"
}

// GateTopic is where gate outcomes go.
func (p *Publisher) GateTopic() string {
	return p.topic + "/gate"
}

// PublishNow publishes the latest status immediately.
func (p *Publisher) PublishNow() error {
	data, err := json.Marshal(NewPayload(p.latest()))
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	return p.client.Publish(p.StatusTopic(), data)
}

// PublishGate publishes grant, deny and relock events. Other events are ignored.
// Suitable as a gate.OnEvent callback.
func (p *Publisher) PublishGate(ev gate.Event) {
	switch ev.Action {
	case gate.Granted, gate.Denied, gate.Relocked:
	default:
		return
	}
	data, err := json.Marshal(struct {
		Action string `json:"action"`
		State  string `json:"state"`
	}{ev.Action.String(), ev.State.String()})
	if err != nil {
		log.Printf("telemetry: encode gate event: %v", err)
		return
	}
	if err := p.client.Publish(p.GateTopic(), data); err != nil {
		log.Printf("telemetry: publish gate event: %v", err)
	}
}

// Start schedules PublishNow every interval.
func (p *Publisher) Start(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid publish interval %v", interval)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron != nil {
		return errors.New("publisher already started")
	}

	c := cron.New()
	_, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		if err := p.PublishNow(); err != nil {
			log.Printf("telemetry: publish status: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule publish: %w", err)
	}
	c.Start()
	p.cron = c
	return nil
}

// Stop cancels the schedule and waits for a running publish to finish.
func (p *Publisher) Stop() {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}
