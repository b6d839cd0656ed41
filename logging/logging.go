package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

const (
	maxLogSize = 2 * 1024 * 1024 // 2MB
	maxBackups = 3
)

type RotatingWriter struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	size    int64
	maxSize int64
	backups int
}

// Setup points the standard logger at stdout plus a size-rotated file.
func Setup(logPath string) (*RotatingWriter, error) {
	rw, err := NewRotatingWriter(logPath, maxLogSize, maxBackups)
	if err != nil {
		return nil, err
	}

	log.SetOutput(io.MultiWriter(os.Stdout, rw))
	return rw, nil
}

func NewRotatingWriter(path string, maxSize int64, backups int) (*RotatingWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	if backups < 1 {
		backups = 1
	}

	return &RotatingWriter{
		file:    f,
		path:    path,
		size:    size,
		maxSize: maxSize,
		backups: backups,
	}, nil
}

func (w *RotatingWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err = w.file.Write(p)
	w.size += int64(n)

	if w.size > w.maxSize {
		w.rotate()
	}

	return n, err
}

// rotate shifts path.N-1 to path.N down to path.1 and starts a fresh file.
func (w *RotatingWriter) rotate() {
	w.file.Close()

	for i := w.backups; i > 1; i-- {
		os.Rename(fmt.Sprintf("%s.%d", w.path, i-1), fmt.Sprintf("%s.%d", w.path, i))
	}
	os.Rename(w.path, w.path+".1")

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return
	}

	w.file = f
	w.size = 0
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

var (
	levelMu  sync.RWMutex
	minLevel = levelInfo
)

const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
)

// SetLevel sets the minimum level printed by Debugf/Infof/Warnf/Errorf.
func SetLevel(level string) {
	l := levelInfo
	switch strings.ToLower(level) {
	case "debug":
		l = levelDebug
	case "warn", "warning":
		l = levelWarn
	case "error":
		l = levelError
	}
	levelMu.Lock()
	minLevel = l
	levelMu.Unlock()
}

func enabled(l int) bool {
	levelMu.RLock()
	defer levelMu.RUnlock()
	return l >= minLevel
}

func Debugf(source, format string, args ...any) { printf(levelDebug, "debug", source, format, args...) }
func Infof(source, format string, args ...any)  { printf(levelInfo, "info", source, format, args...) }
func Warnf(source, format string, args ...any)  { printf(levelWarn, "warn", source, format, args...) }
func Errorf(source, format string, args ...any) { printf(levelError, "error", source, format, args...) }

func printf(l int, name, source, format string, args ...any) {
	if !enabled(l) {
		return
	}
	log.Output(3, fmt.Sprintf("[%s] %s: %s", name, source, fmt.Sprintf(format, args...)))
}
