package report

import (
	"fmt"
	"io"
	"strconv"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/webspider/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.ScanReport) (int, error)
}

// MultiWriter writes to multiple Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written and stops on the first error.
func (m *MultiWriter) Write(report *model.ScanReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// BrokenLinkLine formats one broken-link pair.
func BrokenLinkLine(link model.BrokenLink) string {
	return fmt.Sprintf("- %s [ referenced from: %s ]", link.URL, link.Referrer)
}

// statRow is one labelled counter of the statistics section.
type statRow struct {
	label string
	value string
}

// statRows lists the spider counters with display labels.
func statRows(s model.SpiderStats) []statRow {
	title := cases.Title(language.English)
	raw := []struct {
		name  string
		value int64
	}{
		{"crawl calls", s.CrawlCalls},
		{"candidates", s.Candidates},
		{"admitted", s.Admitted},
		{"out of domain", s.OutOfDomain},
		{"pattern rejected", s.PatternRejected},
		{"variant capped", s.VariantCapped},
		{"not forward", s.NotForward},
		{"fetch errors", s.FetchErrors},
		{"not found", s.NotFound},
		{"results", s.Results},
		{"shapes", s.Shapes},
		{"broken links", s.BrokenLinks},
	}
	rows := make([]statRow, 0, len(raw))
	for _, r := range raw {
		rows = append(rows, statRow{label: title.String(r.name), value: strconv.FormatInt(r.value, 10)})
	}
	return rows
}

// statusText describes how the scan ended.
func statusText(report *model.ScanReport) string {
	if report.Cancelled {
		return "Cancelled (partial results)"
	}
	return "Complete"
}

// paramNames returns the input names of a request in order.
func paramNames(fr *model.FuzzableRequest) []string {
	var names []string
	if fr.Kind == model.KindPostData {
		if fr.Form != nil {
			for _, f := range fr.Form.Fields {
				names = append(names, f.Name)
			}
		}
		return names
	}
	for _, p := range fr.Params {
		names = append(names, p.Name)
	}
	return names
}
