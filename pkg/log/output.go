package log

import (
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
)

// ConsoleOutput writes formatted entries to stderr (errors) or stdout.
type ConsoleOutput struct {
	mu  sync.Mutex
	out io.Writer
	err io.Writer
}

// NewConsoleOutput returns an output writing to os.Stdout/os.Stderr.
func NewConsoleOutput() *ConsoleOutput {
	return &ConsoleOutput{out: os.Stdout, err: os.Stderr}
}

// Write implements Output.
func (c *ConsoleOutput) Write(entry *Entry, formatted []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := c.out
	if entry.Level >= ErrorLevel {
		w = c.err
	}
	_, err := w.Write(formatted)
	return err
}

// Close implements Output.
func (c *ConsoleOutput) Close() error { return nil }

// WriterOutput adapts any io.Writer (a file, a test buffer) to Output.
type WriterOutput struct {
	mu sync.Mutex
	W  io.Writer
}

// Write implements Output.
func (w *WriterOutput) Write(_ *Entry, formatted []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.W.Write(formatted)
	return err
}

// Close implements Output.
func (w *WriterOutput) Close() error { return nil }

// RedirectStdLog routes the standard library logger (used by Pebble) through
// the provided Logger at InfoLevel.
func RedirectStdLog(logger Logger) {
	stdlog.SetFlags(0)
	stdlog.SetOutput(stdLogBridge{logger: logger})
}

type stdLogBridge struct {
	logger Logger
}

func (b stdLogBridge) Write(p []byte) (int, error) {
	msg := strings.TrimSuffix(string(p), "\n")
	b.logger.Info(msg, Str("source", "stdlog"))
	return len(p), nil
}
