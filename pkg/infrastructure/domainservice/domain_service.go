package domainservice

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/WangYihang/subprobe/pkg/domain/entity"
	"github.com/WangYihang/subprobe/pkg/domain/service"
	"github.com/jpillora/go-tld"
	"golang.org/x/net/publicsuffix"
)

const (
	maxHostnameLength = 253
	maxLabelLength    = 63
)

var labelRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9\-]*[a-z0-9])?$`)

// Normalizer implements service.HostnameNormalizer
type Normalizer struct{}

// NewNormalizer creates a new hostname normalizer
func NewNormalizer() service.HostnameNormalizer {
	return &Normalizer{}
}

// Normalize implements service.HostnameNormalizer
func (n *Normalizer) Normalize(raw string, apex entity.ApexDomain) (entity.Hostname, error) {
	name := strings.ToLower(raw)
	name = strings.TrimSuffix(name, ".")

	if err := checkName(name); err != nil {
		return "", fmt.Errorf("%w: %q: %v", entity.ErrInvalidHostname, raw, err)
	}

	root := strings.ToLower(string(apex))
	if name != root && !strings.HasSuffix(name, "."+root) {
		return "", fmt.Errorf("%w: %q is not under %s", entity.ErrInvalidHostname, raw, root)
	}

	return entity.Hostname(name), nil
}

// checkName validates the DNS syntax of an already lowered name
func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("empty")
	}
	if len(name) > maxHostnameLength {
		return fmt.Errorf("longer than %d characters", maxHostnameLength)
	}
	for _, label := range strings.Split(name, ".") {
		if label == "" {
			return fmt.Errorf("empty label")
		}
		if len(label) > maxLabelLength {
			return fmt.Errorf("label %q longer than %d characters", label, maxLabelLength)
		}
		if !labelRegex.MatchString(label) {
			return fmt.Errorf("malformed label %q", label)
		}
	}
	return nil
}

// ParseApex extracts the apex domain from user input such as
// "example.com" or "https://Example.com/path"
func ParseApex(raw string) (entity.ApexDomain, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return "", entity.ErrEmptyApex
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + strings.TrimSuffix(raw, ".")
	}
	u, err := tld.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrInvalidApex, err)
	}

	host := strings.TrimSuffix(u.Hostname(), ".")
	if host == "" {
		return "", entity.ErrEmptyApex
	}

	if err := checkName(host); err != nil {
		return "", fmt.Errorf("%w: %q: %v", entity.ErrInvalidApex, host, err)
	}

	// A bare public suffix has no registrable label to enumerate under
	if suffix, _ := publicsuffix.PublicSuffix(host); suffix == host {
		return "", fmt.Errorf("%w: %q is a public suffix", entity.ErrInvalidApex, host)
	}

	return entity.ApexDomain(host), nil
}
