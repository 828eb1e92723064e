package shell

// MaxLine is the longest command accepted; longer input is discarded up to
// the next newline.
const MaxLine = 128

// LineBuffer assembles bytes from a non-blocking UART into lines.
type LineBuffer struct {
	buf      []byte
	overflow bool
}

// Push adds one byte and returns a complete line when b terminates it.
// Empty lines are skipped.
func (l *LineBuffer) Push(b byte) (string, bool) {
	switch b {
	case '\r':
		return "", false
	case '\n':
		line := string(l.buf)
		over := l.overflow
		l.buf = l.buf[:0]
		l.overflow = false
		if over || line == "" {
			return "", false
		}
		return line, true
	}
	if len(l.buf) >= MaxLine {
		l.overflow = true
		return "", false
	}
	l.buf = append(l.buf, b)
	return "", false
}
