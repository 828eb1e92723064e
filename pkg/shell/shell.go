// Package shell implements the line-oriented UART command protocol.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/itohio/keyclimate/pkg/settings"
)

// IdlePoll is how often the reporter checks whether reporting was enabled.
const IdlePoll = 100 * time.Millisecond

// Voltmeter reads the potentiometer wiper voltage.
type Voltmeter interface {
	Volts() float64
}

// Shell executes commands against the shared settings block.
type Shell struct {
	settings *settings.Settings
	pot      Voltmeter
}

// New creates a shell. pot may be nil when no potentiometer is fitted.
func New(s *settings.Settings, pot Voltmeter) *Shell {
	return &Shell{settings: s, pot: pot}
}

// Exec runs one command line. ok is false for unrecognised input, which
// gets no reply.
func (sh *Shell) Exec(line string) (reply string, ok bool) {
	line = strings.TrimRight(line, "\r\n")

	switch line {
	case "status":
		return fmt.Sprintf("STATUS: OK (Update delay: %d ms)", sh.settings.Delay().Milliseconds()), true
	case "POT_ON":
		sh.settings.SetPotReport(true)
		return "Potentiometer: periodic report ENABLED", true
	case "POT_OFF":
		sh.settings.SetPotReport(false)
		return "Potentiometer: periodic report DISABLED", true
	case "POT_READ":
		if sh.pot == nil {
			return "Error: potentiometer unavailable", true
		}
		return potLine(sh.pot), true
	case "ENABLE_MONITOR":
		sh.settings.SetMonitor(true)
		return "Monitor: ENABLED", true
	case "DISABLE_MONITOR":
		sh.settings.SetMonitor(false)
		return "Monitor: DISABLED", true
	}

	cmd, arg, found := strings.Cut(line, " ")
	if !found {
		return "", false
	}
	arg = strings.TrimSpace(arg)

	if cmd == "SET_DELAY" {
		return sh.setDelay(arg), true
	}

	prefix, bound, found := strings.Cut(cmd, "_")
	if !found || (bound != "MIN" && bound != "MAX") {
		return "", false
	}
	id, known := settings.ParseChannel(prefix)
	if !known || id == settings.Auto {
		return "", false
	}
	return sh.setThreshold(cmd, id, bound == "MIN", arg), true
}

func (sh *Shell) setDelay(arg string) string {
	fail := fmt.Sprintf("Error: Delay must be between %d and %d ms",
		settings.MinDelay.Milliseconds(), settings.MaxDelay.Milliseconds())
	ms, err := strconv.Atoi(arg)
	if err != nil {
		return fail
	}
	if err := sh.settings.SetDelay(ms); err != nil {
		return fail
	}
	return fmt.Sprintf("Update delay set to: %d ms", ms)
}

func (sh *Shell) setThreshold(cmd string, id settings.ChannelID, lower bool, arg string) string {
	v, err := strconv.ParseFloat(arg, 64)
	if err != nil || settings.CheckThreshold(v) != nil {
		return fmt.Sprintf("Error: invalid value for %s", cmd)
	}
	if lower {
		err = sh.settings.SetMin(id, v)
	} else {
		err = sh.settings.SetMax(id, v)
	}
	switch {
	case err == nil:
		return fmt.Sprintf("%s set to %.2f C", cmd, v)
	case errors.Is(err, settings.ErrInvalidArgument) && lower:
		return fmt.Sprintf("Error: %v_MIN must be < %v_MAX", id, id)
	case errors.Is(err, settings.ErrInvalidArgument):
		return fmt.Sprintf("Error: %v_MAX must be > %v_MIN", id, id)
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}

func potLine(pot Voltmeter) string {
	return fmt.Sprintf("POT_VOLTAGE: %.3f V", pot.Volts())
}

// Serve reads newline-terminated commands from rw and writes replies until
// ctx is cancelled or the reader is exhausted.
func (sh *Shell) Serve(ctx context.Context, rw io.ReadWriter) error {
	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(rw)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					return err
				default:
					return nil
				}
			}
			reply, handled := sh.Exec(line)
			if !handled {
				continue
			}
			if _, err := fmt.Fprintf(rw, "%s\n", reply); err != nil {
				return fmt.Errorf("failed to write reply: %w", err)
			}
		}
	}
}

// Report writes a POT_VOLTAGE line every update delay while reporting is
// enabled. It returns when ctx is cancelled.
func (sh *Shell) Report(ctx context.Context, w io.Writer) {
	if sh.pot == nil {
		log.Printf("shell: no potentiometer, periodic report disabled")
		return
	}
	for {
		wait := IdlePoll
		if sh.settings.PotReport() {
			if _, err := fmt.Fprintf(w, "%s\n", potLine(sh.pot)); err != nil {
				log.Printf("shell: report write failed: %v", err)
			}
			wait = sh.settings.Delay()
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}
