package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/webspider/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ScanReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeAlert(md, report)
	w.writeRequests(md, report)
	w.writeBrokenLinks(md, report)
	w.writeStats(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.ScanReport) {
	md.H1("webspider Report")
	md.PlainText("")

	targets := make([]string, 0, len(report.Targets))
	for _, t := range report.Targets {
		targets = append(targets, "`"+t+"`")
	}

	rows := [][]string{
		{"Targets", strings.Join(targets, ", ")},
		{"Scan Date", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Duration", report.Duration().Round(time.Millisecond).String()},
		{"Requests", strconv.Itoa(len(report.Requests))},
		{"Broken Links", strconv.Itoa(len(report.BrokenLinks))},
		{"Status", statusText(report)},
	}
	if report.ID != 0 {
		rows = append([][]string{{"Scan ID", strconv.FormatInt(report.ID, 10)}}, rows...)
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.ScanReport) {
	switch {
	case report.Cancelled:
		md.Cautionf("The scan was cancelled. Results are partial.")
	case len(report.BrokenLinks) > 0:
		md.Warningf("%d broken link(s) found.", len(report.BrokenLinks))
	default:
		md.Tip("No broken links found.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeRequests(md *markdown.Markdown, report *model.ScanReport) {
	md.H2("Discovered Requests")
	md.PlainText("")

	if len(report.Requests) == 0 {
		md.PlainText("No requests discovered.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(report.Requests))
	for _, fr := range report.Requests {
		inputs := strings.Join(paramNames(fr), ", ")
		if inputs == "" {
			inputs = "-"
		}
		rows = append(rows, []string{fr.Method, "`" + fr.URLString() + "`", fr.Kind.String(), inputs})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Method", "URL", "Kind", "Inputs"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeBrokenLinks(md *markdown.Markdown, report *model.ScanReport) {
	md.H2("Broken Links")
	md.PlainText("")

	if len(report.BrokenLinks) == 0 {
		md.PlainText("No broken links found.")
		md.PlainText("")
		return
	}

	for _, link := range report.BrokenLinks {
		md.PlainText(BrokenLinkLine(link))
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeStats(md *markdown.Markdown, report *model.ScanReport) {
	md.H2("Statistics")
	md.PlainText("")

	rows := make([][]string, 0)
	for _, row := range statRows(report.Stats) {
		rows = append(rows, []string{row.label, row.value})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writeDropChart(md, report.Stats)
}

// writeDropChart writes a mermaid pie chart of why candidates were dropped.
func (w *MarkdownWriter) writeDropChart(md *markdown.Markdown, s model.SpiderStats) {
	drops := []struct {
		label string
		value int64
	}{
		{"Out of domain", s.OutOfDomain},
		{"Pattern rejected", s.PatternRejected},
		{"Variant capped", s.VariantCapped},
		{"Not forward", s.NotForward},
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Dropped Candidates"),
		piechart.WithShowData(true),
	)
	var drawn bool
	for _, d := range drops {
		if d.value > 0 {
			chart.LabelAndIntValue(d.label, uint64(d.value))
			drawn = true
		}
	}
	if !drawn {
		return
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [webspider](https://github.com/nao1215/webspider)*")
}
