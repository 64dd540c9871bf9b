package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/tessro/tandem/internal/config"
)

const logFileName = "tandem.log"

// newLogger builds the root logger. Output goes to the configured file, to
// a file in the data directory when the command owns the terminal, and to
// a console writer on stderr otherwise.
func newLogger(c config.LogConfig, dataDir string, verbose, ownsTerminal bool, stderr io.Writer) (zerolog.Logger, func() error, error) {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil || c.Level == "" {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}

	path := c.File
	if path == "" && ownsTerminal {
		path = filepath.Join(dataDir, logFileName)
	}

	if path == "" {
		out := zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.Kitchen}
		return zerolog.New(out).Level(level).With().Timestamp().Logger(), func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return zerolog.New(f).Level(level).With().Timestamp().Logger(), f.Close, nil
}
