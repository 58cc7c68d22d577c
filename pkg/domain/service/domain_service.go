package service

import (
	"context"

	"github.com/WangYihang/subprobe/pkg/domain/entity"
	mapset "github.com/deckarep/golang-set/v2"
)

// HostnameNormalizer turns raw strings into validated hostnames
type HostnameNormalizer interface {
	// Normalize returns the canonical hostname or wraps entity.ErrInvalidHostname
	Normalize(raw string, apex entity.ApexDomain) (entity.Hostname, error)
}

// CandidateSource supplies raw seed hostnames for an apex
type CandidateSource interface {
	// Candidates returns raw, not yet normalized, hostnames
	Candidates(ctx context.Context, apex entity.ApexDomain) ([]string, error)
}

// ArchiveSource harvests historical hostnames
type ArchiveSource interface {
	// Fetch performs a single lookup and returns the unique hostnames found
	Fetch(ctx context.Context, apex entity.ApexDomain) (mapset.Set[entity.Hostname], error)
}

// Prober checks TCP reachability of a hostname
type Prober interface {
	// Probe returns the terminal outcome for host.
	// A non-nil error means the probe was abandoned because ctx was cancelled.
	Probe(ctx context.Context, host entity.Hostname) (entity.ValidationOutcome, error)
	// Ports returns the configured port set
	Ports() []int
}

// HTTPFetcher fetches web content
type HTTPFetcher interface {
	// Fetch fetches a URL and returns the response
	Fetch(ctx context.Context, url string) (*HTTPResponse, error)
}

// HTTPResponse represents an HTTP response
type HTTPResponse struct {
	URL           string
	StatusCode    int
	Status        string
	Headers       map[string]string
	Body          []byte
	ContentLength int
}

// DNSResolver resolves domain names
type DNSResolver interface {
	// Resolve resolves a domain to IP addresses
	Resolve(ctx context.Context, domain string) ([]string, error)
}
