package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/dustin/go-humanize"

	"github.com/itohio/keyclimate/pkg/api"
	"github.com/itohio/keyclimate/pkg/config"
	"github.com/itohio/keyclimate/pkg/control"
	"github.com/itohio/keyclimate/pkg/display"
	"github.com/itohio/keyclimate/pkg/gate"
	"github.com/itohio/keyclimate/pkg/history"
	"github.com/itohio/keyclimate/pkg/hw/periph"
	"github.com/itohio/keyclimate/pkg/hw/sim"
	"github.com/itohio/keyclimate/pkg/respond"
	"github.com/itohio/keyclimate/pkg/settings"
	"github.com/itohio/keyclimate/pkg/shell"
	"github.com/itohio/keyclimate/pkg/store"
	"github.com/itohio/keyclimate/pkg/telemetry"
)

// host is a controller running on a Linux machine: the control loop plus
// its HTTP, MQTT and shell surfaces.
type host struct {
	cfg      *config.Config
	store    *store.Store
	settings *settings.Settings
	loop     *control.Loop
	shell    *shell.Shell
	metrics  *telemetry.Metrics
	history  *history.Window
	source   *history.Source
	api      *api.Server
	board    io.Closer
	sim      *sim.Board
	shellRW  io.ReadWriter

	// dial connects the MQTT client; replaced in tests.
	dial func(config.MQTTConfig) (telemetry.Client, error)

	mu     sync.Mutex
	cancel context.CancelFunc
}

// newHost opens storage and hardware and assembles the controller.
// shellRW, when not nil, gets the text command shell and the monitor lines.
func newHost(cfg *config.Config, shellRW io.ReadWriter) (*host, error) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	h := &host{cfg: cfg, store: st, shellRW: shellRW, dial: telemetry.Dial}
	if err := h.assemble(); err != nil {
		st.Close()
		return nil, err
	}
	return h, nil
}

func (h *host) assemble() error {
	cfg := h.cfg

	h.settings = settings.New(settings.FromConfig(cfg))
	if err := h.settings.Load(h.store); err != nil {
		log.Printf("kcctl: loading stored settings: %v", err)
	}
	h.settings.Bind(h.store)

	g, err := gate.FromConfig(cfg.Gate)
	if err != nil {
		return fmt.Errorf("gate: %w", err)
	}

	var (
		p   control.Peripherals
		pot shell.Voltmeter
	)
	switch cfg.Hardware.Backend {
	case "", "sim":
		b := sim.New(&cfg.Sim)
		h.sim = b
		p = control.Peripherals{
			Keypad:      b,
			Thermometer: b,
			Presence:    b,
			Brightness:  b,
			Fan:         b,
			RGB:         b,
			Indicator:   b,
		}
		pot = b
	case "periph":
		b, err := periph.Open(cfg)
		if err != nil {
			return err
		}
		h.board = b
		p = b.Peripherals
		if b.Pot != nil {
			pot = b.Pot
		}
	default:
		return fmt.Errorf("unknown hardware backend %q", cfg.Hardware.Backend)
	}
	p.Display = display.New(display.Log{}, cfg.Display.Width)

	opts := control.Options{
		Period:      cfg.Control.Period,
		FollowDelay: cfg.Control.FollowDelay,
		Policy: respond.Policy{
			PresenceGating: cfg.Control.PresenceGating,
			Brightness:     cfg.Control.Brightness,
		},
	}
	if h.shellRW != nil {
		opts.Monitor = h.shellRW
	}
	h.loop = control.New(g, h.settings, p, opts)
	h.shell = shell.New(h.settings, pot)

	h.metrics = telemetry.NewMetrics()
	h.loop.OnUpdate(h.metrics.Observe)
	g.OnEvent(h.metrics.ObserveGate)

	h.history = history.New(history.DefaultWindow)
	h.source = history.NewSource(history.DefaultBufferSize)
	h.loop.OnUpdate(h.source.Push)

	h.api = api.New(h.loop, api.Options{
		OTADir:  cfg.HTTP.OTADir,
		Images:  h.store,
		History: h.history,
		Metrics: h.metrics.Handler(),
		Restart: h.restart,
	})
	return nil
}

// restart stops a running host so the service manager starts the new image.
func (h *host) restart() {
	h.mu.Lock()
	defer h.mu.Unlock()
	log.Printf("kcctl: new image stored, restarting")
	if h.cancel != nil {
		h.cancel()
	}
}

// run serves until ctx is cancelled or an OTA image asks for a restart.
func (h *host) run(ctx context.Context) error {
	started := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()

	if h.cfg.MQTT.Broker != "" {
		client, err := h.dial(h.cfg.MQTT)
		if err != nil {
			return err
		}
		defer client.Close()
		pub := telemetry.NewPublisher(client, h.cfg.MQTT.Topic, h.loop.Latest)
		h.loop.Gate().OnEvent(pub.PublishGate)
		if err := pub.Start(h.cfg.MQTT.Interval); err != nil {
			return err
		}
		defer pub.Stop()
	}

	var wg sync.WaitGroup
	errc := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.history.Process(history.NewConverter(history.DefaultBufferSize)(h.source.C()))
	}()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = h.loop.Run(ctx)
	}()

	if rw := h.shellRW; rw != nil {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := h.shell.Serve(ctx, rw); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("kcctl: shell: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			h.shell.Report(ctx, rw)
		}()
	}

	if h.cfg.HTTP.Listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.api.ListenAndServe(ctx, h.cfg.HTTP.Listen); err != nil && !errors.Is(err, context.Canceled) {
				errc <- err
				cancel()
			}
		}()
	}

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Printf("kcctl: sd_notify: %v", err)
	} else if ok {
		log.Printf("kcctl: notified systemd")
	}

	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	<-loopDone
	h.source.Close()
	wg.Wait()
	log.Printf("kcctl: stopped, started %s", humanize.Time(started))

	select {
	case err := <-errc:
		return err
	default:
		return nil
	}
}

// close releases hardware and storage.
func (h *host) close() error {
	var errs []error
	if h.board != nil {
		errs = append(errs, h.board.Close())
	}
	errs = append(errs, h.store.Close())
	return errors.Join(errs...)
}
