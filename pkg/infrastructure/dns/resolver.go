package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

var (
	// ErrNXDomain is returned when the server answers NXDOMAIN
	ErrNXDomain = errors.New("no such host")
	// ErrNoAnswer is returned when no A or AAAA record exists
	ErrNoAnswer = errors.New("no address records")
)

// Resolver implements service.DNSResolver against explicit DNS servers
type Resolver struct {
	servers []string
	timeout time.Duration
	client  *dns.Client
}

// Config holds DNS resolver configuration
type Config struct {
	Servers []string
	Timeout time.Duration
	// Net is "udp" (default) or "tcp"
	Net string
}

// NewResolver creates a new DNS resolver
func NewResolver(config Config) *Resolver {
	if len(config.Servers) == 0 {
		config.Servers = []string{
			"8.8.8.8:53",
			"1.1.1.1:53",
		}
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}

	servers := make([]string, 0, len(config.Servers))
	for _, server := range config.Servers {
		servers = append(servers, withPort(server))
	}

	return &Resolver{
		servers: servers,
		timeout: config.Timeout,
		client: &dns.Client{
			Net:     config.Net,
			Timeout: config.Timeout,
		},
	}
}

// withPort appends the default DNS port when server has none
func withPort(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(server, "53")
}

// Servers returns the upstream servers in query order
func (r *Resolver) Servers() []string {
	return r.servers
}

// Resolve implements service.DNSResolver.
// A and AAAA are both queried; IPv4 addresses come first.
func (r *Resolver) Resolve(ctx context.Context, domain string) ([]string, error) {
	var ips []string
	var firstErr error

	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		found, err := r.query(ctx, domain, qtype)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// NXDOMAIN applies to every type
			if errors.Is(err, ErrNXDomain) {
				return nil, err
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		ips = append(ips, found...)
	}

	if len(ips) == 0 {
		if firstErr != nil {
			return nil, firstErr
		}
		return nil, fmt.Errorf("%w for %s", ErrNoAnswer, domain)
	}
	return ips, nil
}

func (r *Resolver) query(ctx context.Context, domain string, qtype uint16) ([]string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), qtype)
	msg.RecursionDesired = true

	var lastErr error
	var response *dns.Msg

	// Try each DNS server
	for _, server := range r.servers {
		queryCtx, cancel := context.WithTimeout(ctx, r.timeout)
		resp, _, err := r.client.ExchangeContext(queryCtx, msg, server)
		cancel()

		if err == nil && resp != nil {
			response = resp
			break
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	if response == nil {
		if lastErr == nil {
			lastErr = fmt.Errorf("no response from any DNS server")
		}
		return nil, fmt.Errorf("resolve %s: %w", domain, lastErr)
	}

	switch response.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, fmt.Errorf("%w: %s", ErrNXDomain, domain)
	default:
		return nil, fmt.Errorf("resolve %s: %s", domain, dns.RcodeToString[response.Rcode])
	}

	var ips []string
	for _, answer := range response.Answer {
		switch record := answer.(type) {
		case *dns.A:
			ips = append(ips, record.A.String())
		case *dns.AAAA:
			ips = append(ips, record.AAAA.String())
		}
	}
	return ips, nil
}
