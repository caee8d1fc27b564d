package logx

import (
	"os"

	"github.com/rs/zerolog"
)

// New returns the client logger. The TUI owns stdout, so enabled logging
// goes to debug.log in the working directory; disabled logging is a no-op.
func New(enabled bool) zerolog.Logger {
	if !enabled {
		return zerolog.Nop()
	}
	f, err := os.OpenFile("debug.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return zerolog.Nop()
	}
	return zerolog.New(f).With().Timestamp().Logger()
}
