package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/manohar-125/ThalAI-App/internal/features"
	"github.com/manohar-125/ThalAI-App/internal/model"
	"github.com/manohar-125/ThalAI-App/internal/pipeline"
)

// labelName maps a class label to its dataset spelling.
func labelName(label int) string {
	switch label {
	case 1:
		return "active"
	case 0:
		return "inactive"
	default:
		return fmt.Sprintf("class %d", label)
	}
}

// renderTable lays out rows under header with lipgloss column padding.
func renderTable(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range rows {
		for i, c := range r {
			if w := lipgloss.Width(c); i < len(widths) && w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	cells := make([]string, len(header))
	for i, h := range header {
		cells[i] = TableHeaderStyle.Width(widths[i] + 2).Render(h)
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	for _, r := range rows {
		b.WriteString("\n")
		cells = cells[:0]
		for i, c := range r {
			cells = append(cells, TableCellStyle.Width(widths[i]+2).Render(c))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return b.String()
}

// RenderReport formats held-out evaluation metrics.
func RenderReport(r pipeline.Report) string {
	rows := make([][]string, 0, len(r.Classes))
	for _, c := range r.Classes {
		rows = append(rows, []string{
			labelName(c.Label),
			fmt.Sprintf("%.3f", c.Precision),
			fmt.Sprintf("%.3f", c.Recall),
			fmt.Sprintf("%.3f", c.F1),
			fmt.Sprintf("%d", c.Support),
		})
	}
	table := renderTable([]string{"class", "precision", "recall", "f1", "support"}, rows)
	summary := fmt.Sprintf("accuracy %.3f over %d held-out records", r.Accuracy, r.Samples)
	return RenderBox(ChartIcon+" Evaluation", table+"\n\n"+SubtleStyle.Render(summary))
}

// RenderRunSummary formats the outcome of a training run.
func RenderRunSummary(run model.TrainingRun, diag features.Diagnostics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run:          %s\n", run.ID)
	fmt.Fprintf(&b, "Label column: %s\n", run.LabelColumn)
	fmt.Fprintf(&b, "Records:      %d (%d dropped, unresolvable target)\n", run.Records, run.Dropped)
	fmt.Fprintf(&b, "Partitions:   %d train / %d held-out\n", run.TrainSize, run.TestSize)
	fmt.Fprintf(&b, "Artifact:     %s\n", run.ArtifactPath)
	fmt.Fprintf(&b, "Fingerprint:  %s", shortHash(run.Fingerprint))

	if len(diag) > 0 {
		names := make([]string, 0, len(diag))
		for name := range diag {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString("\n\n")
		b.WriteString(WarningStyle.Render("Unparseable values treated as missing:"))
		for _, name := range names {
			fmt.Fprintf(&b, "\n  • %s: %d", name, diag[name])
		}
	}
	return RenderBox("Training complete", b.String())
}

// RenderSchema formats a feature schema.
func RenderSchema(s model.FeatureSchema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Numeric:     %s\n", joinOrNone(s.Numeric))
	fmt.Fprintf(&b, "Categorical: %s\n", joinOrNone(s.Categorical))
	if s.DateSource != "" {
		fmt.Fprintf(&b, "Date source: %s\n", s.DateSource)
	}
	fmt.Fprintf(&b, "Fingerprint: %s", s.Fingerprint())
	return RenderBox("Feature schema", b.String())
}

// RenderRuns formats the training run history.
func RenderRuns(runs []model.TrainingRun) string {
	if len(runs) == 0 {
		return FormatInfo("No training runs recorded yet")
	}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			shortHash(r.ID),
			fmt.Sprintf("%d", r.Records),
			fmt.Sprintf("%d", r.Dropped),
			fmt.Sprintf("%.3f", r.Accuracy),
			shortHash(r.Fingerprint),
		})
	}
	table := renderTable([]string{"created", "run", "records", "dropped", "accuracy", "fingerprint"}, rows)
	return FormatTitle(fmt.Sprintf("Training runs (%d)", len(runs))) + "\n" + table
}

func shortHash(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return SubtleStyle.Render("(none)")
	}
	return strings.Join(names, ", ")
}
