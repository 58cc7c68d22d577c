package entity

import (
	"fmt"
	"time"
)

// Status is the classification of a probed hostname
type Status string

const (
	// StatusValid means at least one configured port accepted a connection
	StatusValid Status = "valid"
	// StatusInvalid means every configured port failed
	StatusInvalid Status = "invalid"
)

// Reason explains why a hostname was classified invalid
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonTimeout           Reason = "timeout"
	ReasonConnectionRefused Reason = "connection-refused"
	ReasonDNSFailure        Reason = "dns-failure"
	ReasonOther             Reason = "other"
)

// Reasons lists every failure reason in reporting order
var Reasons = []Reason{
	ReasonTimeout,
	ReasonConnectionRefused,
	ReasonDNSFailure,
	ReasonOther,
}

// priority orders reasons when several ports fail differently.
// Higher wins.
func (r Reason) priority() int {
	switch r {
	case ReasonDNSFailure:
		return 4
	case ReasonConnectionRefused:
		return 3
	case ReasonTimeout:
		return 2
	case ReasonOther:
		return 1
	}
	return 0
}

// Dominant returns whichever of r and other should describe a failed probe
func (r Reason) Dominant(other Reason) Reason {
	if other.priority() > r.priority() {
		return other
	}
	return r
}

// PortAttempt records one TCP connect attempt
type PortAttempt struct {
	Port    int           `json:"port"`
	Reason  Reason        `json:"reason,omitempty"`
	Error   string        `json:"error,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

// ValidationOutcome is the terminal result of probing one hostname
type ValidationOutcome struct {
	Hostname Hostname      `json:"hostname"`
	Status   Status        `json:"status"`
	Reason   Reason        `json:"reason,omitempty"`
	Port     int           `json:"port,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
	Attempts []PortAttempt `json:"attempts,omitempty"`
}

// Valid reports whether the outcome is StatusValid
func (o ValidationOutcome) Valid() bool {
	return o.Status == StatusValid
}

// NewValidOutcome builds a Valid outcome for a hostname reached on port
func NewValidOutcome(host Hostname, port int, elapsed time.Duration, attempts []PortAttempt) ValidationOutcome {
	return ValidationOutcome{
		Hostname: host,
		Status:   StatusValid,
		Port:     port,
		Elapsed:  elapsed,
		Attempts: attempts,
	}
}

// NewInvalidOutcome builds an Invalid outcome tagged with reason
func NewInvalidOutcome(host Hostname, reason Reason, elapsed time.Duration, attempts []PortAttempt) ValidationOutcome {
	if reason == ReasonNone {
		reason = ReasonOther
	}
	return ValidationOutcome{
		Hostname: host,
		Status:   StatusInvalid,
		Reason:   reason,
		Elapsed:  elapsed,
		Attempts: attempts,
	}
}

// RunStatistics aggregates the outcomes of one run
type RunStatistics struct {
	Total       int64            `json:"total"`
	Valid       int64            `json:"valid"`
	Invalid     int64            `json:"invalid"`
	Reasons     map[Reason]int64 `json:"reasons"`
	Duration    time.Duration    `json:"duration"`
	Interrupted bool             `json:"interrupted"`
}

// NewRunStatistics returns empty statistics
func NewRunStatistics() *RunStatistics {
	return &RunStatistics{Reasons: make(map[Reason]int64)}
}

// Add folds one outcome into the statistics
func (s *RunStatistics) Add(o ValidationOutcome) {
	if s.Reasons == nil {
		s.Reasons = make(map[Reason]int64)
	}
	s.Total++
	if o.Valid() {
		s.Valid++
		return
	}
	s.Invalid++
	s.Reasons[o.Reason]++
}

// Fold computes statistics over a complete slice of outcomes
func Fold(outcomes []ValidationOutcome) *RunStatistics {
	stats := NewRunStatistics()
	for _, o := range outcomes {
		stats.Add(o)
	}
	return stats
}

// String renders a one-line summary
func (s RunStatistics) String() string {
	return fmt.Sprintf("total=%d valid=%d invalid=%d duration=%s interrupted=%t",
		s.Total, s.Valid, s.Invalid, s.Duration.Round(time.Millisecond), s.Interrupted)
}
