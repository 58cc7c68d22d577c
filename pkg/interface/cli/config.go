package cli

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/WangYihang/subprobe/pkg/domain/entity"
	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Target
	Domain string `short:"d" long:"domain" description:"Apex domain to enumerate (e.g. example.com)" yaml:"domain"`

	// Candidates
	Wordlist   string `short:"w" long:"wordlist" description:"File of subdomain prefixes replacing the built-in list" yaml:"wordlist"`
	NoWordlist bool   `long:"no-wordlist" description:"Do not expand the apex with a prefix list" yaml:"no_wordlist"`
	InputFile  string `short:"i" long:"input" description:"File of full hostnames to validate ('-' for stdin)" yaml:"input"`

	// Archive
	Wayback      bool   `short:"b" long:"wayback" description:"Harvest hostnames from the Wayback Machine" yaml:"wayback"`
	ArchiveURL   string `long:"archive-url" description:"CDX search endpoint" default:"http://web.archive.org/cdx/search/cdx" yaml:"archive_url"`
	ArchiveLimit int    `long:"archive-limit" description:"Maximum archive rows to request (0 for no limit)" default:"0" yaml:"archive_limit"`
	HTTPTimeout  int    `long:"http-timeout" description:"Archive request timeout in seconds" default:"60" yaml:"http_timeout"`
	UserAgent    string `long:"user-agent" description:"HTTP User-Agent header (random browser agent when empty)" yaml:"user_agent"`

	// Probing
	Concurrency   int      `short:"c" long:"concurrency" description:"Maximum probes in flight" default:"50" yaml:"concurrency"`
	Timeout       int      `short:"t" long:"timeout" description:"Per-probe timeout in seconds" default:"5" yaml:"timeout"`
	Ports         string   `short:"p" long:"ports" description:"Comma-separated TCP ports to probe" default:"80,443" yaml:"ports"`
	Rate          float64  `long:"rate" description:"Maximum probes started per second (0 for unlimited)" default:"0" yaml:"rate"`
	Resolvers     []string `long:"resolver" description:"DNS server to resolve through instead of the system resolver (repeatable)" yaml:"resolvers"`
	WildcardCheck bool     `long:"wildcard-check" description:"Probe a random label first to detect wildcard DNS" yaml:"wildcard_check"`

	// Output
	OutputFile  string `short:"o" long:"output" description:"Write valid hostnames to this file ('-' for stdout)" yaml:"output"`
	ProbeLog    string `long:"probe-log" description:"Write one JSON record per probe to this file" yaml:"probe_log"`
	MetricsAddr string `long:"metrics-addr" description:"Serve Prometheus metrics on this address (e.g. :9090)" yaml:"metrics_addr"`

	// UI
	ShowDashboard bool `long:"dashboard" description:"Show interactive TUI dashboard" yaml:"dashboard"`
	Progress      bool `long:"progress" description:"Show a progress bar in console mode" yaml:"progress"`
	Verbose       bool `short:"v" long:"verbose" description:"Also print invalid hostnames with their reason" yaml:"verbose"`

	ConfigFile string `long:"config" description:"YAML file with option defaults" yaml:"-"`
	Version    bool   `long:"version" description:"Print version information and exit" yaml:"-"`

	// Parsed from Ports
	PortList []int `no-flag:"true" yaml:"-"`
}

// ParseFlags parses command line flags
func ParseFlags() (*Config, error) {
	cfg, err := Parse(os.Args[1:])
	if err != nil {
		if flags.WroteHelp(err) {
			fmt.Println(err)
			os.Exit(0)
		}
		return nil, err
	}
	return cfg, nil
}

// Parse parses args, overlays the --config file onto options not set on
// the command line and validates the result
func Parse(args []string) (*Config, error) {
	cfg := &Config{}

	parser := flags.NewParser(cfg, flags.HelpFlag|flags.PassDoubleDash)
	parser.Usage = "-d example.com [OPTIONS]"

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if cfg.Version {
		return cfg, nil
	}

	if cfg.ConfigFile != "" {
		if err := cfg.overlay(parser, cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	ports, err := ParsePorts(cfg.Ports)
	if err != nil {
		return nil, err
	}
	cfg.PortList = ports

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// overlay copies values from the YAML file into every option the command
// line left unset
func (c *Config) overlay(parser *flags.Parser, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Keys absent from the file keep their flag defaults
	file := *c
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	dst := reflect.ValueOf(c).Elem()
	src := reflect.ValueOf(&file).Elem()
	for _, option := range parser.Command.Group.Options() {
		if option.IsSet() {
			continue
		}
		index := option.Field().Index
		dst.FieldByIndex(index).Set(src.FieldByIndex(index))
	}
	return nil
}

// ParsePorts parses a comma-separated port list, dropping duplicates
func ParsePorts(raw string) ([]int, error) {
	var ports []int
	seen := make(map[int]bool)
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		port, err := strconv.Atoi(field)
		if err != nil || port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid port %q", field)
		}
		if !seen[port] {
			seen[port] = true
			ports = append(ports, port)
		}
	}
	if len(ports) == 0 {
		return nil, errors.New("at least one port is required")
	}
	return ports, nil
}

// ProbeTimeout returns the per-probe deadline
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// HTTPTimeoutDuration returns the archive request timeout
func (c *Config) HTTPTimeoutDuration() time.Duration {
	return time.Duration(c.HTTPTimeout) * time.Second
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Domain) == "" {
		return entity.ErrEmptyApex
	}

	if c.Concurrency <= 0 {
		return fmt.Errorf("%w, got %d", entity.ErrInvalidConcurrency, c.Concurrency)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0, got %d", c.Timeout)
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP timeout must be > 0, got %d", c.HTTPTimeout)
	}

	if c.Rate < 0 {
		return fmt.Errorf("rate must be >= 0, got %g", c.Rate)
	}

	if c.ArchiveLimit < 0 {
		return fmt.Errorf("archive limit must be >= 0, got %d", c.ArchiveLimit)
	}

	if c.NoWordlist && c.Wordlist != "" {
		return errors.New("--wordlist and --no-wordlist are mutually exclusive")
	}

	if c.ShowDashboard && c.OutputFile == "-" {
		return errors.New("--dashboard cannot be combined with --output -")
	}

	return nil
}
