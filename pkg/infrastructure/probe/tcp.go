package probe

import (
	"context"
	"errors"
	"net"
	"strconv"
	"syscall"
	"time"

	"github.com/WangYihang/subprobe/pkg/domain/entity"
	"github.com/WangYihang/subprobe/pkg/domain/service"
)

var (
	// DefaultPorts are probed when no ports are configured
	DefaultPorts = []int{80, 443}
	// DefaultTimeout bounds one hostname's probe
	DefaultTimeout = 5 * time.Second
)

// Dialer opens TCP connections; *net.Dialer satisfies it
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Config holds prober configuration
type Config struct {
	Ports   []int
	Timeout time.Duration
	// Resolver replaces the system resolver when set
	Resolver service.DNSResolver
	// Dialer replaces net.Dialer when set
	Dialer Dialer
}

// TCPProber implements service.Prober with plain TCP connects.
// Every port is dialed concurrently under one deadline; the first
// accepted connection makes the hostname valid.
type TCPProber struct {
	ports    []int
	timeout  time.Duration
	resolver service.DNSResolver
	dialer   Dialer
}

// NewTCPProber creates a new TCP prober
func NewTCPProber(config Config) *TCPProber {
	ports := config.Ports
	if len(ports) == 0 {
		ports = DefaultPorts
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	dialer := config.Dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}

	return &TCPProber{
		ports:    ports,
		timeout:  timeout,
		resolver: config.Resolver,
		dialer:   dialer,
	}
}

// Ports implements service.Prober
func (p *TCPProber) Ports() []int {
	return p.ports
}

// Timeout returns the per-hostname deadline
func (p *TCPProber) Timeout() time.Duration {
	return p.timeout
}

type attemptResult struct {
	attempt entity.PortAttempt
	ok      bool
}

// Probe implements service.Prober
func (p *TCPProber) Probe(ctx context.Context, host entity.Hostname) (entity.ValidationOutcome, error) {
	start := time.Now()

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	addrs := []string{host.String()}
	if p.resolver != nil {
		ips, err := p.resolver.Resolve(probeCtx, host.String())
		if err == nil && len(ips) == 0 {
			err = errors.New("no addresses")
		}
		if err != nil {
			if ctx.Err() != nil {
				return entity.ValidationOutcome{}, ctx.Err()
			}
			reason := entity.ReasonDNSFailure
			if errors.Is(err, context.DeadlineExceeded) {
				reason = entity.ReasonTimeout
			}
			attempts := make([]entity.PortAttempt, 0, len(p.ports))
			for _, port := range p.ports {
				attempts = append(attempts, entity.PortAttempt{Port: port, Reason: reason, Error: err.Error()})
			}
			return entity.NewInvalidOutcome(host, reason, time.Since(start), attempts), nil
		}
		addrs = ips
	}

	results := make(chan attemptResult, len(p.ports))
	for _, port := range p.ports {
		go func(port int) {
			results <- p.dialPort(probeCtx, addrs, port)
		}(port)
	}

	var attempts []entity.PortAttempt
	validPort := 0
	reason := entity.ReasonNone
	for range p.ports {
		result := <-results
		attempts = append(attempts, result.attempt)
		if result.ok {
			if validPort == 0 {
				validPort = result.attempt.Port
				// Abandon the remaining ports
				cancel()
			}
			continue
		}
		reason = reason.Dominant(result.attempt.Reason)
	}
	elapsed := time.Since(start)

	if validPort != 0 {
		return entity.NewValidOutcome(host, validPort, elapsed, attempts), nil
	}
	if ctx.Err() != nil {
		return entity.ValidationOutcome{}, ctx.Err()
	}
	return entity.NewInvalidOutcome(host, reason, elapsed, attempts), nil
}

// dialPort tries each address on port until one accepts
func (p *TCPProber) dialPort(ctx context.Context, addrs []string, port int) attemptResult {
	start := time.Now()

	var lastErr error
	for _, addr := range addrs {
		conn, err := p.dialer.DialContext(ctx, "tcp", net.JoinHostPort(addr, strconv.Itoa(port)))
		if err == nil {
			conn.Close()
			return attemptResult{
				attempt: entity.PortAttempt{Port: port, Elapsed: time.Since(start)},
				ok:      true,
			}
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	return attemptResult{
		attempt: entity.PortAttempt{
			Port:    port,
			Reason:  Classify(lastErr),
			Error:   lastErr.Error(),
			Elapsed: time.Since(start),
		},
	}
}

// Classify maps a dial error to a failure reason
func Classify(err error) entity.Reason {
	if err == nil {
		return entity.ReasonNone
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout && !dnsErr.IsNotFound {
			return entity.ReasonTimeout
		}
		return entity.ReasonDNSFailure
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return entity.ReasonConnectionRefused
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return entity.ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return entity.ReasonTimeout
	}

	return entity.ReasonOther
}
