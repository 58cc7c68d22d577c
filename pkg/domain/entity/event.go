package entity

// Event is published by the scan use case to reporters
type Event interface {
	isEvent()
}

// RunStarted is published once the worklist is final, before any probe
type RunStarted struct {
	Apex        ApexDomain `json:"apex"`
	Candidates  int        `json:"candidates"`
	Dropped     int        `json:"dropped"`
	FromArchive int        `json:"from_archive"`
	Concurrency int        `json:"concurrency"`
	Ports       []int      `json:"ports"`
}

// ProbeCompleted carries one terminal outcome
type ProbeCompleted struct {
	Outcome ValidationOutcome `json:"outcome"`
}

// ArchiveWarning reports a non-fatal archive failure
type ArchiveWarning struct {
	Reason string `json:"reason"`
}

// WildcardWarning reports that a random label under the apex was reachable
type WildcardWarning struct {
	Hostname Hostname `json:"hostname"`
}

// RunFinished carries the final (possibly partial) statistics
type RunFinished struct {
	Statistics RunStatistics `json:"statistics"`
}

func (RunStarted) isEvent()      {}
func (ProbeCompleted) isEvent()  {}
func (ArchiveWarning) isEvent()  {}
func (WildcardWarning) isEvent() {}
func (RunFinished) isEvent()     {}

// ProbeLog is one line of the JSONL probe log
type ProbeLog struct {
	Hostname  Hostname      `json:"hostname"`
	Status    Status        `json:"status"`
	Reason    Reason        `json:"reason,omitempty"`
	Port      int           `json:"port,omitempty"`
	ElapsedMs int64         `json:"elapsed_ms"`
	Attempts  []PortAttempt `json:"attempts"`
	Timestamp int64         `json:"timestamp"`
}

// NewProbeLog converts an outcome into a probe log record
func NewProbeLog(outcome ValidationOutcome, timestamp int64) *ProbeLog {
	attempts := outcome.Attempts
	if attempts == nil {
		attempts = []PortAttempt{}
	}
	return &ProbeLog{
		Hostname:  outcome.Hostname,
		Status:    outcome.Status,
		Reason:    outcome.Reason,
		Port:      outcome.Port,
		ElapsedMs: outcome.Elapsed.Milliseconds(),
		Attempts:  attempts,
		Timestamp: timestamp,
	}
}
