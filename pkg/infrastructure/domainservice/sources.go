package domainservice

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/WangYihang/subprobe/pkg/domain/entity"
	"github.com/WangYihang/subprobe/pkg/domain/service"
)

// HostListSource implements service.CandidateSource over a file of full
// hostnames, one per line ("-" reads stdin)
type HostListSource struct {
	path  string
	stdin io.Reader
}

// NewHostListSource creates a source reading path
func NewHostListSource(path string) *HostListSource {
	return &HostListSource{path: path, stdin: os.Stdin}
}

// Candidates implements service.CandidateSource
func (s *HostListSource) Candidates(ctx context.Context, apex entity.ApexDomain) ([]string, error) {
	if s.path == "-" {
		return readLines(ctx, s.stdin)
	}

	file, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return readLines(ctx, file)
}

// LoadWordlist loads subdomain prefixes from a file
func LoadWordlist(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wordlist: %w", err)
	}
	defer file.Close()

	words, err := readLines(context.Background(), file)
	if err != nil {
		return nil, fmt.Errorf("failed to read wordlist: %w", err)
	}
	return words, nil
}

// readLines returns trimmed lines, skipping blanks and # comments. It stops
// with ctx.Err() once ctx is done.
func readLines(ctx context.Context, r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)

	var lines []string
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// MultiSource concatenates the candidates of several sources
type MultiSource []service.CandidateSource

// Candidates implements service.CandidateSource
func (m MultiSource) Candidates(ctx context.Context, apex entity.ApexDomain) ([]string, error) {
	var all []string
	for _, source := range m {
		candidates, err := source.Candidates(ctx, apex)
		if err != nil {
			return nil, err
		}
		all = append(all, candidates...)
	}
	return all, nil
}
