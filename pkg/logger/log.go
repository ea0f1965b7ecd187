package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	CliLogger()
}

// SetWriter configures a log writer for the global logger
func SetWriter(w io.Writer) {
	log.Logger = log.Output(w)
}

// Log formats accepted by Configure
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Configure switches the global logger to the named format. An empty format
// means console.
func Configure(format string) error {
	switch strings.ToLower(format) {
	case "", FormatConsole:
		CliLogger()
	case FormatJSON:
		UseJSONLogging()
	default:
		return fmt.Errorf("unknown log format: %s", format)
	}
	return nil
}

func UseJSONLogging() {
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func CliLogger() {
	log.Logger = NewConsoleWriter(os.Stderr, true)
}

// Set parses level and makes it the global log level
func Set(level string) error {
	if level == "" {
		level = zerolog.InfoLevel.String()
	}
	l, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}
	zerolog.SetGlobalLevel(l)
	return nil
}

// NewConsoleWriter returns a human readable logger. The compact form drops
// timestamps and shortens levels.
func NewConsoleWriter(out io.Writer, compact bool) zerolog.Logger {
	w := zerolog.ConsoleWriter{Out: out}

	if compact {
		w.FormatLevel = consoleFormatLevel()
		w.FormatTimestamp = func(i interface{}) string { return "" }
	}

	return log.Output(w)
}

var (
	debugStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func consoleFormatLevel() zerolog.Formatter {
	return func(i interface{}) string {
		ll, ok := i.(string)
		if !ok {
			return "???"
		}

		switch ll {
		case "trace":
			return debugStyle.Render("TRC")
		case "debug":
			return debugStyle.Render("DBG")
		case "info":
			return infoStyle.Render("→")
		case "warn":
			return warnStyle.Render("!")
		case "error":
			return errorStyle.Render("x")
		case "fatal", "panic":
			return errorStyle.Render(strings.ToUpper(ll[:3]))
		default:
			return "???"
		}
	}
}
