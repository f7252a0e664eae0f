package assethat

import (
	"io"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger. format is "json" or "console";
// unknown levels fall back to info.
func NewLogger(level, format string, out io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if format != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
