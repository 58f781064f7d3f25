package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var once sync.Once

// Init configures the global zerolog logger once. An empty or unknown level
// falls back to WARN.
func Init(appName, level string) {
	once.Do(func() {
		setup(os.Stdout, appName, level)
	})
}

func setup(out io.Writer, appName, level string) {
	zerolog.SetGlobalLevel(ParseLevel(level))

	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "02-01-2006 15:04:05.000",
		FormatLevel: func(i any) string {
			return strings.ToUpper(fmt.Sprintf("%-6s", i))
		},
	}).With().Timestamp().Str("app", appName).Logger()
}

func ParseLevel(level string) zerolog.Level {
	if level == "" {
		return zerolog.WarnLevel
	}

	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.WarnLevel
	}

	return parsed
}
