package gate

import (
	"fmt"
	"log"
	"sync"
	"unicode/utf8"

	"github.com/itohio/keyclimate/pkg/config"
)

// NoKey is the sentinel fed when the keypad has nothing to report.
const NoKey rune = 0

// State is the lock state of the gate.
type State int

const (
	Locked State = iota
	Unlocked
)

func (s State) String() string {
	if s == Unlocked {
		return "UNLOCKED"
	}
	return "LOCKED"
}

// Action describes what a single fed key did.
type Action int

const (
	None      Action = iota
	Appended         // character stored
	Discarded        // buffer full or not a keypad key, character dropped
	Deleted          // last character removed
	Relocked         // delete on an empty buffer (or clear policy) forced LOCKED
	Granted          // submit matched
	Denied           // submit did not match
)

var actionNames = [...]string{"none", "appended", "discarded", "deleted", "relocked", "granted", "denied"}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Event is reported for every key the gate consumes.
type Event struct {
	Key    rune
	Action Action
	State  State
	Len    int
}

// DeletePolicy selects how the delete key behaves.
type DeletePolicy int

const (
	// Backspace removes the last character; on an empty buffer it locks.
	Backspace DeletePolicy = iota
	// ClearAndLock empties the buffer and locks regardless of its contents.
	ClearAndLock
)

// Options configures a Gate.
type Options struct {
	Capacity     int
	SubmitKey    rune
	DeleteKey    rune
	AppendSubmit bool
	DeletePolicy DeletePolicy
}

// DefaultOptions matches the "1234#" keypad: capacity 5, '#' submits and is
// part of the compared PIN, '*' deletes.
func DefaultOptions() Options {
	return Options{
		Capacity:     5,
		SubmitKey:    '#',
		DeleteKey:    '*',
		AppendSubmit: true,
		DeletePolicy: Backspace,
	}
}

// Gate is the keypad access state machine. It boots LOCKED.
// Feed is called from the control loop; readers may call State and Masked
// concurrently.
type Gate struct {
	cred Credential
	opts Options

	mu        sync.RWMutex
	state     State
	buf       *PinBuffer
	callbacks []func(Event)
}

// New creates a locked gate.
func New(cred Credential, opts Options) *Gate {
	def := DefaultOptions()
	if opts.Capacity <= 0 {
		opts.Capacity = def.Capacity
	}
	if opts.SubmitKey == 0 {
		opts.SubmitKey = def.SubmitKey
	}
	if opts.DeleteKey == 0 {
		opts.DeleteKey = def.DeleteKey
	}
	return &Gate{
		cred:  cred,
		opts:  opts,
		state: Locked,
		buf:   NewPinBuffer(opts.Capacity),
	}
}

// FromConfig builds a gate from configuration. A credential hash takes
// precedence over a clear-text credential.
func FromConfig(cfg config.GateConfig) (*Gate, error) {
	var cred Credential = Plain(cfg.Credential)
	if cfg.CredentialHash != "" {
		h, err := NewHashed(cfg.CredentialHash)
		if err != nil {
			return nil, err
		}
		cred = h
	}

	opts := Options{
		Capacity:     cfg.Capacity,
		AppendSubmit: cfg.AppendSubmit,
	}
	if cfg.SubmitKey != "" {
		opts.SubmitKey, _ = utf8.DecodeRuneInString(cfg.SubmitKey)
	}
	if cfg.DeleteKey != "" {
		opts.DeleteKey, _ = utf8.DecodeRuneInString(cfg.DeleteKey)
	}
	switch cfg.DeletePolicy {
	case "", "backspace":
		opts.DeletePolicy = Backspace
	case "clear":
		opts.DeletePolicy = ClearAndLock
	default:
		return nil, fmt.Errorf("unknown delete policy %q", cfg.DeletePolicy)
	}

	return New(cred, opts), nil
}

// Feed consumes one key. NoKey is a no-op.
func (g *Gate) Feed(key rune) Event {
	if key == NoKey {
		return Event{Action: None, State: g.State(), Len: g.Len()}
	}

	g.mu.Lock()
	ev := Event{Key: key}
	switch key {
	case g.opts.SubmitKey:
		ev.Action = g.submit()
	case g.opts.DeleteKey:
		ev.Action = g.delete()
	default:
		if !isEntryKey(key) {
			ev.Action = Discarded
		} else if g.buf.Append(key) {
			ev.Action = Appended
		} else {
			ev.Action = Discarded
		}
	}
	ev.State = g.state
	ev.Len = g.buf.Len()
	g.mu.Unlock()

	g.notify(ev)
	return ev
}

// isEntryKey reports whether r is a digit or letter key of the keypad.
func isEntryKey(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'A' && r <= 'D')
}

func (g *Gate) submit() Action {
	if g.opts.AppendSubmit {
		g.buf.Append(g.opts.SubmitKey)
	}
	ok := g.cred != nil && g.cred.Match(g.buf.String())
	g.buf.Clear()
	if ok {
		g.state = Unlocked
		return Granted
	}
	g.state = Locked
	return Denied
}

func (g *Gate) delete() Action {
	if g.opts.DeletePolicy == ClearAndLock {
		g.buf.Clear()
		g.state = Locked
		return Relocked
	}
	if g.buf.Backspace() {
		return Deleted
	}
	g.state = Locked
	return Relocked
}

// State returns the current lock state.
func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Len returns the number of buffered characters.
func (g *Gate) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.buf.Len()
}

// Masked returns the buffer as '*' characters for display.
func (g *Gate) Masked() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.buf.Masked()
}

// OnEvent registers a callback for every consumed key.
func (g *Gate) OnEvent(callback func(Event)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.callbacks = append(g.callbacks, callback)
}

func (g *Gate) notify(ev Event) {
	g.mu.RLock()
	callbacks := make([]func(Event), len(g.callbacks))
	copy(callbacks, g.callbacks)
	g.mu.RUnlock()

	for _, cb := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("gate: panic in event callback: %v", r)
				}
			}()
			cb(ev)
		}()
	}
}
