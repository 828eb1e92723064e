package device

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/itohio/keyclimate/pkg/config"
)

// DefaultBaudRate matches the firmware UART.
const DefaultBaudRate = 115200

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Ports returns the available serial ports.
func Ports() ([]Port, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err == nil && len(details) > 0 {
		result := make([]Port, 0, len(details))
		for _, d := range details {
			desc := d.Name
			if d.IsUSB {
				desc = fmt.Sprintf("%s (USB %s:%s %s)", d.Name, d.VID, d.PID, d.Product)
			}
			result = append(result, Port{Name: d.Name, Description: desc})
		}
		return result, nil
	}

	names, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	result := make([]Port, 0, len(names))
	for _, name := range names {
		result = append(result, Port{Name: name, Description: name})
	}
	return result, nil
}

type opener func(name string, baud int) (io.ReadWriteCloser, error)

func openSerial(name string, baud int) (io.ReadWriteCloser, error) {
	return serial.Open(name, &serial.Mode{BaudRate: baud})
}

// Serial is a connection to the firmware's UART shell.
type Serial struct {
	port     string
	baudRate int
	bufSize  int
	open     opener
	now      func() time.Time

	mu        sync.RWMutex
	conn      io.ReadWriteCloser
	lines     chan Line
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool
}

// New creates a serial link with the specified port, baud rate and buffer size.
func New(port string, baudRate int, bufSize int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	return &Serial{
		port:     port,
		baudRate: baudRate,
		bufSize:  bufSize,
		open:     openSerial,
		now:      time.Now,
		lines:    make(chan Line, bufSize),
	}
}

// FromConfig creates a serial link from the serial section.
func FromConfig(cfg config.SerialConfig) *Serial {
	return New(cfg.Port, cfg.Baud, DefaultBufferSize)
}

// Connect opens the port and starts reading lines.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return ErrAlreadyConnected
	}

	conn, err := d.open(d.port, d.baudRate)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	d.conn = conn
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.done = make(chan struct{})
	d.connected = true

	go d.readLines(d.ctx, conn, d.done)

	return nil
}

// Close closes the port and the lines channel.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	d.cancel()
	if err := d.conn.Close(); err != nil {
		log.Printf("device: error closing serial port: %v", err)
	}
	<-d.done
	d.conn = nil
	d.connected = false

	close(d.lines)

	return nil
}

// Lines returns the channel of received lines.
func (d *Serial) Lines() <-chan Line {
	return d.lines
}

// Send writes a shell command terminated by a newline.
func (d *Serial) Send(cmd string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return ErrNotConnected
	}

	if _, err := io.WriteString(d.conn, strings.TrimSpace(cmd)+"\n"); err != nil {
		return fmt.Errorf("failed to send command: %w", err)
	}
	return nil
}

// IsConnected returns whether the port is open.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

func (d *Serial) readLines(ctx context.Context, r io.Reader, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("device: panic in readLines: %v", r)
		}
	}()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		select {
		case d.lines <- Classify(text, d.now()):
		case <-ctx.Done():
			return
		default:
			log.Printf("device: lines channel full, dropping line")
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		log.Printf("device: error reading from serial port: %v", err)
	}
}
