// Package logging builds the diagnostic logger and decides whether
// terminal output is coloured.
//
// Diagnostics (what file was loaded, which executor ran a step) go through
// a zerolog.Logger on stderr. Recipe output never does: step processes
// write straight to the inherited stdout/stderr.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// New returns a logger writing to w. When w is a terminal the output is
// zerolog's human-readable console format; otherwise it is one JSON object
// per line. The level is warn, or debug when verbose is set.
func New(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	out := w
	if IsTerminal(w) {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// IsTerminal reports whether w is an *os.File connected to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// ColorMode is the value of the --color flag.
type ColorMode string

const (
	// ColorAuto colours output when it goes to a terminal and NO_COLOR is unset.
	ColorAuto ColorMode = "auto"

	// ColorAlways colours output unconditionally.
	ColorAlways ColorMode = "always"

	// ColorNever disables colour.
	ColorNever ColorMode = "never"
)

// ParseColorMode validates a --color value. The empty string means auto.
func ParseColorMode(s string) (ColorMode, error) {
	switch mode := ColorMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return ColorAuto, nil
	case ColorAuto, ColorAlways, ColorNever:
		return mode, nil
	default:
		return "", fmt.Errorf("invalid color mode %q (valid: auto, always, never)", s)
	}
}

// Enabled decides whether output written to w should be coloured.
func (m ColorMode) Enabled(w io.Writer) bool {
	switch m {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	return IsTerminal(w)
}
