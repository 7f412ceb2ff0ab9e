// Package render writes the human readable output of the nerve commands.
// Colours are only emitted when the output is a terminal.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/balaji-balu/nerve-cli/internal/journal"
	"github.com/balaji-balu/nerve-cli/internal/labels"
	"github.com/balaji-balu/nerve-cli/internal/nodes"
	"github.com/balaji-balu/nerve-cli/pkg/model"
)

var (
	colorOK      = lipgloss.Color("#2CD7C7")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#6C8A94")
)

type styles struct {
	title   lipgloss.Style
	bold    lipgloss.Style
	muted   lipgloss.Style
	ok      lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(colorOK),
		bold:    r.NewStyle().Bold(true),
		muted:   r.NewStyle().Foreground(colorMuted),
		ok:      r.NewStyle().Foreground(colorOK),
		warning: r.NewStyle().Foreground(colorWarning),
		err:     r.NewStyle().Foreground(colorError),
	}
}

type Printer struct {
	out io.Writer
	st  styles
}

func New(out io.Writer) *Printer {
	return &Printer{out: out, st: newStyles(lipgloss.NewRenderer(out))}
}

func (p *Printer) Println(a ...any) {
	fmt.Fprintln(p.out, a...)
}

func (p *Printer) Printf(format string, a ...any) {
	fmt.Fprintf(p.out, format, a...)
}

func (p *Printer) Success(format string, a ...any) {
	fmt.Fprintln(p.out, p.st.ok.Render(fmt.Sprintf(format, a...)))
}

func (p *Printer) Warning(format string, a ...any) {
	fmt.Fprintln(p.out, p.st.warning.Render("Warning: "+fmt.Sprintf(format, a...)))
}

func (p *Printer) Error(format string, a ...any) {
	fmt.Fprintln(p.out, p.st.err.Render(fmt.Sprintf(format, a...)))
}

func (p *Printer) status(s string) string {
	switch strings.ToLower(s) {
	case model.ConnectionOnline, "started", "running":
		return p.st.ok.Render(s)
	case model.ConnectionOffline, "error", "stopped":
		return p.st.err.Render(s)
	default:
		return p.st.warning.Render(s)
	}
}

// Summary prints the counts of every stage of a node listing.
func (p *Printer) Summary(res *nodes.ListResult) {
	p.Printf("The system has a total of %d nodes.\n", res.Total)
	p.Printf("Of those, %d nodes match the filter criteria regarding nodes.\n", res.Matched)
	p.Printf("Of those, %d nodes are online, %d nodes are offline.\n", res.Online, res.Offline)
	p.Printf("Of the online nodes, %d nodes match the filter criteria regarding workloads.\n", len(res.Nodes))
}

// Nodes prints every node with its deployed workloads.
func (p *Printer) Nodes(list []model.Node) {
	p.Println()
	p.Println(p.st.title.Render("Found following nodes and workloads:"))
	p.Println()
	for _, n := range list {
		p.Printf("Node path: %s   Name:%s   Model:%s   Version:%s\n",
			n.PathString(), p.st.bold.Render(n.Name), n.Model, n.Version)
		for _, wl := range n.Workloads {
			p.Printf("   Workload: %s/%s (%s)\n", wl.Name, wl.VersionName, p.status(wl.State))
		}
		p.Println()
	}
}

// Workloads prints catalogue workloads with their versions.
func (p *Printer) Workloads(list []model.Workload) {
	for _, wl := range list {
		p.Printf("Workload: %s (%s)\n", p.st.bold.Render(wl.Name), wl.Type)
		for _, v := range wl.Versions {
			p.Printf("   Version: %s     Container name: %s\n", v.Name, v.WorkloadProperties.ContainerName)
		}
	}
}

func (p *Printer) Labels(list []labels.Record) {
	p.Println(p.st.title.Render("Labels:"))
	for _, l := range list {
		p.Printf("  %s:%s %s\n", l.Key, l.Value, p.st.muted.Render("("+l.ID+")"))
	}
}

// History prints journal entries, one per line.
func (p *Printer) History(entries []journal.Entry) {
	if len(entries) == 0 {
		p.Println("No actions recorded.")
		return
	}
	for _, e := range entries {
		outcome := p.st.ok.Render(e.Outcome)
		if e.Outcome == journal.OutcomeFailed {
			outcome = p.st.err.Render(e.Outcome)
		}
		line := fmt.Sprintf("%s  %-16s %-24s %s",
			e.Time.Local().Format("2006-01-02 15:04:05"), e.Action, e.Target, outcome)
		if e.Message != "" {
			line += "  " + p.st.muted.Render(e.Message)
		}
		p.Println(line)
	}
}
