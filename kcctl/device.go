package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/itohio/keyclimate/pkg/config"
	"github.com/itohio/keyclimate/pkg/device"
)

// ErrNoReply is returned when the controller did not answer a command.
var ErrNoReply = errors.New("no reply")

type deviceFlags struct {
	port string
	baud int
	mock bool
}

func (f *deviceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.port, "port", "p", "", "serial port override (e.g., COM3 or /dev/ttyACM0)")
	cmd.Flags().IntVar(&f.baud, "baud", 0, "baud rate override")
	cmd.Flags().BoolVar(&f.mock, "mock", false, "use a simulated controller instead of the serial port")
}

func (f *deviceFlags) open(cfg *config.Config) (device.Device, error) {
	if f.mock {
		return device.NewMock(cfg)
	}
	sc := cfg.Serial
	if f.port != "" {
		sc.Port = f.port
	}
	if f.baud > 0 {
		sc.Baud = f.baud
	}
	return device.FromConfig(sc), nil
}

// awaitReply sends cmd and returns the first shell reply.
func awaitReply(dev device.Device, cmd string, timeout time.Duration) (string, error) {
	if err := dev.Send(cmd); err != nil {
		return "", err
	}
	deadline := time.After(timeout)
	for {
		select {
		case l, ok := <-dev.Lines():
			if !ok {
				return "", device.ErrNotConnected
			}
			if !l.IsTelemetry() {
				return l.Text, nil
			}
		case <-deadline:
			return "", fmt.Errorf("%q: %w", cmd, ErrNoReply)
		}
	}
}

func newMonitorCmd() *cobra.Command {
	var flags deviceFlags

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Print telemetry and shell replies from a controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, err := flags.open(cfg)
			if err != nil {
				return err
			}
			if err := dev.Connect(); err != nil {
				return err
			}
			defer dev.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			if err := dev.Send("ENABLE_MONITOR"); err != nil {
				warn(fmt.Sprintf("enable monitor: %v", err))
			}

			for {
				select {
				case <-ctx.Done():
					return nil
				case l, ok := <-dev.Lines():
					if !ok {
						return nil
					}
					if l.IsTelemetry() {
						fmt.Fprintln(stdout, statusLine(*l.Status))
					} else {
						colorValue.Fprintln(stdout, l.Text)
					}
				}
			}
		},
	}
	flags.register(cmd)
	return cmd
}

func newSendCmd() *cobra.Command {
	var (
		flags   deviceFlags
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send <command...>",
		Short: "Send one shell command and print the reply",
		Example: `  kcctl send status
  kcctl send SET_DELAY 250
  kcctl send R_MAX 20 --port /dev/ttyUSB0`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, err := flags.open(cfg)
			if err != nil {
				return err
			}
			if err := dev.Connect(); err != nil {
				return err
			}
			defer dev.Close()

			line := args[0]
			for _, a := range args[1:] {
				line += " " + a
			}
			reply, err := awaitReply(dev, line, timeout)
			if err != nil {
				return err
			}
			success(reply)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "how long to wait for the reply")
	return cmd
}

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := device.Ports()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				warn("no serial ports found")
				return nil
			}
			for _, p := range ports {
				step(p.Name, p.Description)
			}
			return nil
		},
	}
}
