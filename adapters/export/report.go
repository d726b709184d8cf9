package export

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"semprep/domain/excerpt"
	"semprep/domain/sem"
	"semprep/internal"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// ReportTitle is the page title of the HTML summary
const ReportTitle = "SEM excerpt summary"

// HTMLReporter renders a Markdown summary of the excerpt to a standalone
// HTML page.
type HTMLReporter struct {
	logger *internal.Logger
}

// NewHTMLReporter creates a report writer
func NewHTMLReporter(logger *internal.Logger) *HTMLReporter {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &HTMLReporter{logger: logger.With("Report")}
}

// WriteReport renders the document and overwrites path
func (r *HTMLReporter) WriteReport(ctx context.Context, doc *excerpt.Document, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	page := RenderHTML(doc)
	if err := ensureParent(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, page, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	r.logger.Debug("wrote report (%d bytes) to %s", len(page), path)
	return nil
}

// RenderHTML converts the Markdown summary into a complete HTML page
func RenderHTML(doc *excerpt.Document) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: ReportTitle,
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.ToHTML([]byte(RenderMarkdown(doc)), p, renderer)
}

// RenderMarkdown builds the summary: model, fit indices, loadings, paths and
// per-variable descriptives.
func RenderMarkdown(doc *excerpt.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", ReportTitle)

	if res := doc.SEMResults; res != nil {
		b.WriteString("## Model\n\n```\n")
		b.WriteString(res.ModelSpec)
		b.WriteString("\n```\n\n")

		b.WriteString("## Fit indices\n\n| Index | Value |\n|---|---|\n")
		keys := make([]string, 0, len(res.FitIndices))
		for k := range res.FitIndices {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "| %s | %s |\n", k, formatPtr(res.FitIndices[k]))
		}
		b.WriteString("\n")

		writeCoefficients(&b, "Factor loadings", res.FactorLoadings)
		writeCoefficients(&b, "Path coefficients", res.PathCoefficients)
	}

	if ds := doc.DescriptiveStats; ds != nil {
		fmt.Fprintf(&b, "## Descriptive statistics (n = %d)\n\n", ds.N)
		b.WriteString("| Variable | Description | Mean | Std. dev. |\n|---|---|---|---|\n")
		for _, col := range ds.Columns {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
				col, doc.VariableDescriptions[col],
				formatValue(ds.Means[col].Float()), formatValue(ds.StdDevs[col].Float()))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeCoefficients(b *strings.Builder, title string, rows []sem.Coefficient) {
	fmt.Fprintf(b, "## %s\n\n", title)
	if len(rows) == 0 {
		b.WriteString("_none_\n\n")
		return
	}
	b.WriteString("| From | Op | To | Estimate | Std. err | p-value |\n|---|---|---|---|---|---|\n")
	for _, c := range rows {
		fmt.Fprintf(b, "| %s | `%s` | %s | %s | %s | %s |\n",
			c.From, c.Op, c.To, formatPtr(c.Estimate), formatPtr(c.StdErr), formatPtr(c.PValue))
	}
	b.WriteString("\n")
}

func formatPtr(v *float64) string {
	if v == nil {
		return "-"
	}
	return formatValue(*v)
}

func formatValue(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}
