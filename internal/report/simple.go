package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/nao1215/webspider/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with nothing to list are shown.
	showEmpty bool

	// verbose adds form fields and statistics.
	verbose bool

	heading *color.Color
	alert   *color.Color
	ok      *color.Color
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// WithColor forces colour on or off. Without it the writer follows
// color.NoColor, which is set when stdout is not a terminal.
func WithColor(enabled bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		for _, c := range []*color.Color{w.heading, w.alert, w.ok} {
			if enabled {
				c.EnableColor()
			} else {
				c.DisableColor()
			}
		}
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		heading:    color.New(color.FgCyan, color.Bold),
		alert:      color.New(color.FgRed),
		ok:         color.New(color.FgGreen),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.ScanReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeRequests(&sb, report)
	w.writeBrokenLinks(&sb, report)
	if w.verbose {
		w.writeStats(&sb, report)
	}
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(w.heading.Sprint(title))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.ScanReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString(w.heading.Sprint("                         WEBSPIDER REPORT"))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	if report.ID != 0 {
		sb.WriteString(fmt.Sprintf("Scan ID:        %d\n", report.ID))
	}
	sb.WriteString(fmt.Sprintf("Targets:        %s\n", strings.Join(report.Targets, ", ")))
	sb.WriteString(fmt.Sprintf("Scan Date:      %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Duration:       %s\n", report.Duration().Round(time.Millisecond)))
	sb.WriteString(fmt.Sprintf("Requests:       %d\n", len(report.Requests)))
	sb.WriteString(fmt.Sprintf("Broken Links:   %d\n", len(report.BrokenLinks)))

	status := statusText(report)
	if report.Cancelled {
		status = w.alert.Sprint(status)
	} else {
		status = w.ok.Sprint(status)
	}
	sb.WriteString(fmt.Sprintf("Status:         %s\n", status))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeRequests(sb *strings.Builder, report *model.ScanReport) {
	if len(report.Requests) == 0 && !w.showEmpty {
		return
	}
	w.section(sb, "DISCOVERED REQUESTS")

	if len(report.Requests) == 0 {
		sb.WriteString("  No requests discovered\n\n")
		return
	}

	for _, fr := range report.Requests {
		sb.WriteString(fmt.Sprintf("  [%-4s] %s\n", fr.Method, fr.URLString()))
		names := paramNames(fr)
		if len(names) == 0 {
			continue
		}
		if !w.verbose {
			sb.WriteString(fmt.Sprintf("         inputs: %s\n", strings.Join(names, ", ")))
			continue
		}
		if fr.Kind == model.KindPostData && fr.Form != nil {
			for _, f := range fr.Form.Fields {
				sb.WriteString(fmt.Sprintf("         %s (%s) = %q\n", f.Name, f.Type, f.Value))
			}
			continue
		}
		for _, p := range fr.Params {
			sb.WriteString(fmt.Sprintf("         %s = %q\n", p.Name, p.Value))
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeBrokenLinks(sb *strings.Builder, report *model.ScanReport) {
	if len(report.BrokenLinks) == 0 && !w.showEmpty {
		return
	}
	w.section(sb, "BROKEN LINKS")

	if len(report.BrokenLinks) == 0 {
		sb.WriteString(w.ok.Sprint("  No broken links found"))
		sb.WriteString("\n\n")
		return
	}

	for _, link := range report.BrokenLinks {
		sb.WriteString(BrokenLinkLine(link))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeStats(sb *strings.Builder, report *model.ScanReport) {
	w.section(sb, "STATISTICS")
	for _, row := range statRows(report.Stats) {
		sb.WriteString(fmt.Sprintf("  %-18s %s\n", row.label+":", row.value))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by webspider\n")
	sb.WriteString("https://github.com/nao1215/webspider\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
