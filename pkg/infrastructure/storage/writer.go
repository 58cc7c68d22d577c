package storage

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/WangYihang/subprobe/pkg/domain/entity"
	"github.com/WangYihang/subprobe/pkg/domain/repository"
)

// Stdout is the path that selects standard output
const Stdout = "-"

// nopCloser keeps Close from closing os.Stdout
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

func open(filename string) (io.WriteCloser, error) {
	if filename == Stdout || filename == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(filename)
}

// ResultWriter implements repository.ResultWriter with one hostname per line
type ResultWriter struct {
	file   io.WriteCloser
	writer *bufio.Writer
	mu     sync.Mutex
}

// NewResultWriter creates a new result writer; "-" writes to stdout
func NewResultWriter(filename string) (repository.ResultWriter, error) {
	file, err := open(filename)
	if err != nil {
		return nil, err
	}
	return newResultWriter(file), nil
}

func newResultWriter(w io.WriteCloser) *ResultWriter {
	return &ResultWriter{
		file:   w,
		writer: bufio.NewWriter(w),
	}
}

// Write writes a single hostname
func (w *ResultWriter) Write(host entity.Hostname) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.writer.WriteString(host.String()); err != nil {
		return err
	}
	return w.writer.WriteByte('\n')
}

// Flush ensures all buffered data is written
func (w *ResultWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return err
	}
	if f, ok := w.file.(*os.File); ok {
		return f.Sync()
	}
	return nil
}

// Close flushes and closes the writer
func (w *ResultWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	flushErr := w.writer.Flush()
	closeErr := w.file.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// LogWriter implements repository.LogWriter as JSON lines
type LogWriter struct {
	file    io.WriteCloser
	writer  *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewLogWriter creates a new probe log writer
func NewLogWriter(filename string) (repository.LogWriter, error) {
	file, err := open(filename)
	if err != nil {
		return nil, err
	}
	return newLogWriter(file), nil
}

func newLogWriter(w io.WriteCloser) *LogWriter {
	buffered := bufio.NewWriter(w)
	return &LogWriter{
		file:    w,
		writer:  buffered,
		encoder: json.NewEncoder(buffered),
	}
}

// WriteProbeLog writes one probe record
func (w *LogWriter) WriteProbeLog(record *entity.ProbeLog) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.encoder.Encode(record)
}

// Close flushes and closes the log file
func (w *LogWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	flushErr := w.writer.Flush()
	closeErr := w.file.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
