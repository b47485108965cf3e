package keyboard

import (
	"fmt"
	"io"
	"strings"

	"plasma-ng/internal/control"
)

const (
	clearScreen = "\x1b[H\x1b[2J"
	standout    = "\x1b[7m"
	reset       = "\x1b[0m"
	bell        = "\a"
)

// KnobLine formats one knob for the panel.
func KnobLine(kb control.KnobBinding) string {
	return fmt.Sprintf("%-30.29s (%s=dec, %s=inc): %4.2f", kb.Knob.Name(), kb.Dec, kb.Inc, kb.Knob.Value())
}

// Render draws the whole panel from the knobs' live values. Lines end in
// \r\n so it renders correctly in raw mode.
func Render(w io.Writer, quit string, help string, knobs []control.KnobBinding, status string) error {
	var sb strings.Builder
	sb.WriteString(clearScreen)
	sb.WriteString(standout)
	fmt.Fprintf(&sb, "To quit, type '%s'", quit)
	if help != "" {
		sb.WriteString("   " + help)
	}
	sb.WriteString(reset + "\r\n\r\n")
	for _, kb := range knobs {
		kb.Sync()
		sb.WriteString(KnobLine(kb) + "\r\n")
	}
	if status != "" {
		sb.WriteString("\r\n" + status + "\r\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
