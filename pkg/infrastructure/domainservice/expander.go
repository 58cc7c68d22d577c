package domainservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/WangYihang/subprobe/pkg/domain/entity"
)

// CommonSubdomains is the built-in prefix list used when no wordlist is given
var CommonSubdomains = []string{
	// web
	"www", "www1", "www2", "web", "m", "mobile", "wap",

	// mail
	"mail", "mail2", "webmail", "smtp", "pop", "pop3", "imap", "mx", "mx1", "mx2",
	"owa", "exchange", "autodiscover", "autoconfig",

	// name servers
	"ns", "ns1", "ns2", "ns3", "ns4", "dns", "dns1", "dns2",

	// remote access
	"vpn", "remote", "gateway", "proxy", "ssh", "rdp", "citrix",

	// apis and assets
	"api", "apis", "rest", "graphql", "cdn", "static", "assets", "img", "images", "media",
	"files", "download", "downloads", "upload", "ftp", "sftp",

	// environments
	"dev", "development", "test", "testing", "qa", "uat", "stage", "staging",
	"preprod", "prod", "demo", "beta", "alpha", "sandbox",

	// administration
	"admin", "portal", "dashboard", "console", "panel", "cpanel", "whm", "manage",
	"server", "corp", "intranet", "internal", "secure", "sso", "auth", "login", "id",

	// engineering tooling
	"git", "gitlab", "jenkins", "ci", "jira", "confluence", "wiki", "docs", "help", "support",
	"status", "monitor", "grafana", "kibana", "metrics", "logs",

	// data stores
	"db", "mysql", "postgres", "redis", "mongo", "elastic",

	// business
	"blog", "forum", "news", "shop", "store", "pay", "billing", "crm", "hr", "careers",

	// regions
	"us", "eu", "asia", "uk", "de", "jp", "cn",
}

// Expander implements service.CandidateSource by prefixing the apex
// with every word of a prefix list
type Expander struct {
	prefixes []string
}

// NewExpander creates an expander over prefixes, falling back to
// CommonSubdomains when prefixes is empty
func NewExpander(prefixes []string) *Expander {
	if len(prefixes) == 0 {
		prefixes = CommonSubdomains
	}

	seen := make(map[string]bool)
	unique := make([]string, 0, len(prefixes))
	for _, prefix := range prefixes {
		prefix = strings.Trim(strings.ToLower(strings.TrimSpace(prefix)), ".")
		if prefix != "" && !seen[prefix] {
			seen[prefix] = true
			unique = append(unique, prefix)
		}
	}

	return &Expander{prefixes: unique}
}

// Prefixes returns the deduplicated prefix list
func (e *Expander) Prefixes() []string {
	return e.prefixes
}

// Candidates implements service.CandidateSource.
// The apex itself is always the first candidate.
func (e *Expander) Candidates(ctx context.Context, apex entity.ApexDomain) ([]string, error) {
	expanded := make([]string, 0, len(e.prefixes)+1)
	expanded = append(expanded, apex.String())

	for _, prefix := range e.prefixes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		expanded = append(expanded, fmt.Sprintf("%s.%s", prefix, apex))
	}

	return expanded, nil
}
