package applog

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const filePrefix = "usage-bar-"

// Rotator is an io.Writer that appends to a date-stamped log file and moves
// to a new file each calendar day. Files older than keepDays are removed on
// rotation.
type Rotator struct {
	mu       sync.Mutex
	dir      string
	keepDays int
	date     string
	file     *os.File
	now      func() time.Time
}

func NewRotator(dir string, keepDays int) *Rotator {
	return &Rotator{dir: dir, keepDays: keepDays, now: time.Now}
}

// SetNow replaces the time source. Used in tests only.
func (r *Rotator) SetNow(fn func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = fn
}

func (r *Rotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	today := r.now().Format("2006-01-02")
	if today != r.date {
		if err := r.open(today); err != nil {
			return 0, err
		}
		r.prune()
	}
	return r.file.Write(p)
}

func (r *Rotator) open(date string) error {
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}
	f, err := os.OpenFile(filepath.Join(r.dir, filePrefix+date+".log"),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	r.file = f
	r.date = date
	return nil
}

// prune removes files whose date stamp falls before the retention cutoff.
func (r *Rotator) prune() {
	cutoff := r.now().AddDate(0, 0, -r.keepDays).Format("2006-01-02")
	matches, err := filepath.Glob(filepath.Join(r.dir, filePrefix+"*.log"))
	if err != nil {
		return
	}
	for _, name := range matches {
		date := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(name), filePrefix), ".log")
		if date < cutoff {
			os.Remove(name)
		}
	}
}

func (r *Rotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// Init sets up file-backed structured logging under dir at the given level.
// Both slog.Default and the stdlib log package are redirected to the rotating
// file. The returned io.Closer must be deferred by the caller.
func Init(dir, level string) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	rotator := NewRotator(dir, 7)
	handler := slog.NewTextHandler(rotator, &slog.HandlerOptions{Level: ParseLevel(level)})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	log.SetOutput(rotator)
	log.SetFlags(0)
	return logger, rotator, nil
}

// ParseLevel converts a level string to slog.Level. Defaults to LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
