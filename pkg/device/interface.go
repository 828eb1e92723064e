// Package device links a host to a controller: a firmware board on a serial
// port, or an in-process simulation.
package device

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/itohio/keyclimate/pkg/control"
)

// DefaultBufferSize is the default size of the lines channel.
const DefaultBufferSize = 100

var (
	// ErrNotConnected is returned by Send before Connect or after Close.
	ErrNotConnected = errors.New("not connected")
	// ErrAlreadyConnected is returned by a second Connect.
	ErrAlreadyConnected = errors.New("already connected")
)

// Device defines the interface for controller links (real or simulated).
type Device interface {
	Connect() error
	Close() error
	Lines() <-chan Line
	Send(cmd string) error
	IsConnected() bool
}

// Ensure Serial implements Device.
var _ Device = (*Serial)(nil)

// Ensure Mock implements Device.
var _ Device = (*Mock)(nil)

// Line is one line received from the controller. Status is set for
// telemetry lines; everything else is a shell reply.
type Line struct {
	Time   time.Time
	Text   string
	Status *control.Status
}

// IsTelemetry reports whether the line carried a status.
func (l Line) IsTelemetry() bool {
	return l.Status != nil
}

// Classify builds a Line from received text. Malformed telemetry is logged
// and kept as plain text.
func Classify(text string, now time.Time) Line {
	text = strings.TrimSpace(text)
	l := Line{Time: now, Text: text}
	if !control.IsLine(text) {
		return l
	}
	st, err := control.ParseLine(text)
	if err != nil {
		log.Printf("device: failed to parse line '%s': %v", text, err)
		return l
	}
	l.Status = &st
	return l
}

// Statuses forwards telemetry from lines and passes every other line to
// replies when it is not nil. The output closes when lines closes.
func Statuses(lines <-chan Line, replies func(Line)) <-chan control.Status {
	out := make(chan control.Status, DefaultBufferSize)
	go func() {
		defer close(out)
		for l := range lines {
			if !l.IsTelemetry() {
				if replies != nil {
					replies(l)
				}
				continue
			}
			select {
			case out <- *l.Status:
			default:
				log.Printf("device: status channel full, dropping status")
			}
		}
	}()
	return out
}
