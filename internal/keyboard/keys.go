package keyboard

import (
	"bufio"
	"unicode/utf8"

	"plasma-ng/internal/control"
)

const esc = 0x1b

// Key labels for keys without a printable form.
const (
	KeyEscape = "esc"
	KeyEnter  = "enter"
)

var arrows = map[byte]string{
	'A': control.KeyUp,
	'B': control.KeyDown,
	'C': control.KeyRight,
	'D': control.KeyLeft,
}

// ReadKey reads one key press and returns its label: the character itself
// for printable keys, an arrow glyph for cursor keys.
func ReadKey(r *bufio.Reader) (string, error) {
	b, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	switch {
	case b == esc:
		return readEscape(r)
	case b == '\r' || b == '\n':
		return KeyEnter, nil
	case b < utf8.RuneSelf:
		return string(rune(b)), nil
	}
	if err := r.UnreadByte(); err != nil {
		return "", err
	}
	ch, _, err := r.ReadRune()
	if err != nil {
		return "", err
	}
	return string(ch), nil
}

// readEscape decodes CSI (ESC [) and SS3 (ESC O) cursor sequences. A lone
// escape, or one followed by something else, is reported as KeyEscape.
func readEscape(r *bufio.Reader) (string, error) {
	if r.Buffered() == 0 {
		return KeyEscape, nil
	}
	b, err := r.ReadByte()
	if err != nil {
		return KeyEscape, nil
	}
	if b != '[' && b != 'O' {
		_ = r.UnreadByte()
		return KeyEscape, nil
	}
	// Skip parameter bytes (e.g. "1;5" for modified arrows).
	for {
		c, err := r.ReadByte()
		if err != nil {
			return KeyEscape, nil
		}
		if c >= 0x40 && c <= 0x7e {
			if label, ok := arrows[c]; ok {
				return label, nil
			}
			return KeyEscape, nil
		}
	}
}
