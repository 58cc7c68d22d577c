package entity

import "errors"

var (
	// ErrInvalidHostname is returned for candidates that cannot become a Hostname
	ErrInvalidHostname = errors.New("invalid hostname")
	// ErrArchiveUnavailable covers transport failures and non-2xx archive responses
	ErrArchiveUnavailable = errors.New("archive unavailable")
	// ErrArchiveParse is returned when the archive body is not text
	ErrArchiveParse = errors.New("archive response is not text")
	// ErrEmptyApex is returned when no apex domain was supplied
	ErrEmptyApex = errors.New("apex domain is required")
	// ErrInvalidApex is returned for malformed apex domains
	ErrInvalidApex = errors.New("invalid apex domain")
	// ErrInvalidConcurrency is returned when the concurrency limit is not positive
	ErrInvalidConcurrency = errors.New("concurrency must be > 0")
	// ErrNoCandidates is returned when the worklist is empty
	ErrNoCandidates = errors.New("no candidate hostnames to validate")
)
