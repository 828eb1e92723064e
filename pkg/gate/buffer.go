package gate

import "strings"

// MaxMask is the longest masked PIN the display shows.
const MaxMask = 8

// PinBuffer holds the characters typed since the last submit or clear.
// It never grows past its capacity; extra input is discarded.
type PinBuffer struct {
	buf []rune
	cap int
}

// NewPinBuffer creates an empty buffer holding at most capacity characters.
func NewPinBuffer(capacity int) *PinBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &PinBuffer{
		buf: make([]rune, 0, capacity),
		cap: capacity,
	}
}

// Append adds r if there is room and reports whether it was stored.
func (b *PinBuffer) Append(r rune) bool {
	if len(b.buf) >= b.cap {
		return false
	}
	b.buf = append(b.buf, r)
	return true
}

// Backspace drops the last character. It reports false when the buffer was empty.
func (b *PinBuffer) Backspace() bool {
	if len(b.buf) == 0 {
		return false
	}
	b.buf = b.buf[:len(b.buf)-1]
	return true
}

// Clear empties the buffer.
func (b *PinBuffer) Clear() {
	for i := range b.buf {
		b.buf[i] = 0
	}
	b.buf = b.buf[:0]
}

func (b *PinBuffer) Len() int { return len(b.buf) }

func (b *PinBuffer) Cap() int { return b.cap }

func (b *PinBuffer) Full() bool { return len(b.buf) >= b.cap }

func (b *PinBuffer) String() string { return string(b.buf) }

// Masked returns one '*' per buffered character, capped at MaxMask.
func (b *PinBuffer) Masked() string {
	n := len(b.buf)
	if n > MaxMask {
		n = MaxMask
	}
	return strings.Repeat("*", n)
}
