package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Config holds logger configuration for one subsystem.
type Config struct {
	Dir        string // Log directory (empty = stdout only)
	Subsystem  string // Used in the file name: <subsystem>_<date>.log
	Level      slog.Level
	JSONFormat bool
	AddSource  bool
}

// Logger writes structured records to stdout and to one file per subsystem
// per day.
type Logger struct {
	*slog.Logger
	file *os.File
	mu   sync.Mutex
}

// New creates a subsystem logger. The log file is opened in append mode so
// multiple runs within one day share a file.
func New(cfg Config) (*Logger, error) {
	writers := []io.Writer{os.Stdout}

	l := &Logger{}
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory %s: %w", cfg.Dir, err)
		}
		name := fmt.Sprintf("%s_%s.log", cfg.Subsystem, time.Now().Format("2006-01-02"))
		path := filepath.Join(cfg.Dir, name)
		file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", path, err)
		}
		l.file = file
		writers = append(writers, file)
	}

	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.JSONFormat {
		handler = slog.NewJSONHandler(io.MultiWriter(writers...), opts)
	} else {
		handler = slog.NewTextHandler(io.MultiWriter(writers...), opts)
	}

	l.Logger = slog.New(handler).With("subsystem", cfg.Subsystem)
	return l, nil
}

// ForSubsystem builds the standard production logger for a subsystem:
// JSON records, info level, daily file under dir.
func ForSubsystem(dir, subsystem string, verbose bool) (*Logger, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return New(Config{
		Dir:        dir,
		Subsystem:  subsystem,
		Level:      level,
		JSONFormat: dir != "",
		AddSource:  verbose,
	})
}

// Close closes the log file if one is open.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}
