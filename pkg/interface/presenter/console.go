package presenter

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/WangYihang/subprobe/internal/common"
	"github.com/WangYihang/subprobe/pkg/domain/entity"
	"github.com/fatih/color"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

var (
	info    = color.New(color.FgCyan).SprintFunc()
	success = color.New(color.FgGreen, color.Bold).SprintFunc()
	warn    = color.New(color.FgYellow).SprintFunc()
	failure = color.New(color.FgRed).SprintFunc()
	faint   = color.New(color.Faint).SprintFunc()
)

// ConsoleConfig holds console reporter options
type ConsoleConfig struct {
	Out io.Writer
	// Verbose also prints invalid hostnames with their reason
	Verbose bool
	// Progress draws a progress bar; valid hostnames are then listed
	// once the run finishes instead of as they are found
	Progress bool
}

// Console reports run events as colored lines
type Console struct {
	config ConsoleConfig

	progress *mpb.Progress
	bar      *mpb.Bar
	last     atomic.Value // stores string
	found    []entity.Hostname
}

// NewConsole creates a console reporter
func NewConsole(config ConsoleConfig) *Console {
	return &Console{config: config}
}

// Report implements application.Reporter
func (c *Console) Report(event entity.Event) {
	switch e := event.(type) {
	case entity.RunStarted:
		c.started(e)
	case entity.ProbeCompleted:
		c.completed(e.Outcome)
	case entity.ArchiveWarning:
		c.printf("%s archive lookup failed, continuing without it: %s\n", warn("[!]"), e.Reason)
	case entity.WildcardWarning:
		c.printf("%s %s is reachable; the apex likely has wildcard DNS and results may be inflated\n", warn("[!]"), e.Hostname)
	case entity.RunFinished:
		c.finished(e.Statistics)
	}
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.config.Out, format, args...)
}

func (c *Console) started(e entity.RunStarted) {
	ports := make([]string, len(e.Ports))
	for i, p := range e.Ports {
		ports[i] = fmt.Sprint(p)
	}

	c.printf("%s probing %d candidates under %s (concurrency %d, ports %s)\n",
		info("[*]"), e.Candidates, e.Apex, e.Concurrency, strings.Join(ports, ","))
	if e.FromArchive > 0 {
		c.printf("%s %d hostnames came from the archive\n", info("[*]"), e.FromArchive)
	}
	if e.Dropped > 0 {
		c.printf("%s %d malformed candidates dropped\n", faint("[-]"), e.Dropped)
	}

	if !c.config.Progress {
		return
	}

	c.last.Store("")
	c.progress = mpb.New(
		mpb.WithOutput(c.config.Out),
		mpb.WithWidth(common.TerminalWidth()/3),
	)
	c.bar = c.progress.AddBar(int64(e.Candidates),
		mpb.PrependDecorators(
			decor.Name(e.Apex.String(), decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("[%d / %d]", decor.WCSyncWidth),
			decor.Percentage(decor.WCSyncSpace),
			decor.OnComplete(
				decor.EwmaETA(decor.ET_STYLE_GO, 30, decor.WCSyncSpace), "done",
			),
			decor.Any(func(decor.Statistics) string {
				if last, _ := c.last.Load().(string); last != "" {
					return " last: " + last
				}
				return ""
			}),
		),
	)
}

func (c *Console) completed(o entity.ValidationOutcome) {
	if c.bar != nil {
		c.bar.EwmaIncrement(o.Elapsed)
	}

	if o.Valid() {
		if c.bar != nil {
			c.last.Store(o.Hostname.String())
			c.found = append(c.found, o.Hostname)
			return
		}
		c.printf("%s %s %s\n", success("[+]"), o.Hostname, faint(fmt.Sprintf("(port %d)", o.Port)))
		return
	}

	if c.config.Verbose && c.bar == nil {
		c.printf("%s %s %s\n", faint("[-]"), o.Hostname, faint(string(o.Reason)))
	}
}

func (c *Console) finished(stats entity.RunStatistics) {
	if c.bar != nil {
		if !c.bar.Completed() {
			c.bar.Abort(false)
		}
		c.progress.Wait()

		sort.Slice(c.found, func(i, j int) bool { return c.found[i] < c.found[j] })
		for _, host := range c.found {
			c.printf("%s %s\n", success("[+]"), host)
		}
	}

	var reasons []string
	for _, r := range entity.Reasons {
		if n := stats.Reasons[r]; n > 0 {
			reasons = append(reasons, fmt.Sprintf("%s=%d", r, n))
		}
	}
	breakdown := ""
	if len(reasons) > 0 {
		breakdown = " (" + strings.Join(reasons, ", ") + ")"
	}

	c.printf("%s %d probed, %s valid, %d invalid%s in %s\n",
		info("[*]"), stats.Total, success(stats.Valid), stats.Invalid, breakdown,
		stats.Duration.Round(time.Millisecond))
	if stats.Interrupted {
		c.printf("%s run interrupted; results are partial\n", failure("[!]"))
	}
}
