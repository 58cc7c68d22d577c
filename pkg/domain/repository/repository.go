package repository

import "github.com/WangYihang/subprobe/pkg/domain/entity"

// ResultWriter writes valid hostnames
type ResultWriter interface {
	// Write writes a single hostname
	Write(host entity.Hostname) error
	// Flush ensures all buffered data is written
	Flush() error
	// Close closes the writer
	Close() error
}

// LogWriter writes structured probe logs
type LogWriter interface {
	// WriteProbeLog writes one probe record
	WriteProbeLog(record *entity.ProbeLog) error
	// Close closes the log writer
	Close() error
}

// EventQueue carries events from the use case to reporters
type EventQueue interface {
	// Send sends an event, dropping it once the queue is closed
	Send(event entity.Event)
	// Receive receives an event from the queue
	Receive() (entity.Event, bool)
	// Close closes the queue
	Close()
}
