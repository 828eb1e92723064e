package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type stdio struct {
	io.Reader
	io.Writer
}

func newRunCmd() *cobra.Command {
	var (
		backend   string
		listen    string
		storePath string
		broker    string
		withShell bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the controller with its HTTP, MQTT and shell surfaces",
		Example: `  kcctl run
  kcctl run --backend periph --listen :80
  kcctl run --shell --mqtt tcp://localhost:1883`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("backend") {
				cfg.Hardware.Backend = backend
			}
			if cmd.Flags().Changed("listen") {
				cfg.HTTP.Listen = listen
			}
			if cmd.Flags().Changed("store") {
				cfg.Store.Path = storePath
			}
			if cmd.Flags().Changed("mqtt") {
				cfg.MQTT.Broker = broker
			}

			var rw io.ReadWriter
			if withShell {
				rw = stdio{Reader: os.Stdin, Writer: os.Stdout}
			}

			h, err := newHost(cfg, rw)
			if err != nil {
				return err
			}
			defer h.close()

			title("keyclimate")
			step("backend", cfg.Hardware.Backend)
			step("store", cfg.Store.Path)
			if cfg.HTTP.Listen != "" {
				step("http", cfg.HTTP.Listen)
			}
			if cfg.MQTT.Broker != "" {
				step("mqtt", cfg.MQTT.Broker)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return h.run(ctx)
		},
	}

	cmd.Flags().StringVar(&backend, "backend", "sim", "hardware backend: sim or periph")
	cmd.Flags().StringVar(&listen, "listen", ":8080", "HTTP listen address, empty disables")
	cmd.Flags().StringVar(&storePath, "store", "keyclimate.db", "settings database")
	cmd.Flags().StringVar(&broker, "mqtt", "", "MQTT broker URL, empty disables")
	cmd.Flags().BoolVar(&withShell, "shell", false, "serve the text command shell on stdin/stdout")
	return cmd
}
