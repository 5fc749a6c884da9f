package output

import (
	"fmt"
	"strings"

	"github.com/joescharf/crev/internal/models"
)

// Report renders a review response for the terminal: a summary, the
// quality metrics table, and the issues grouped from most to least urgent.
func (u *UI) Report(resp *models.ReviewResponse) error {
	if resp == nil || resp.ReviewReport == nil {
		return fmt.Errorf("no review report to render")
	}
	r := resp.ReviewReport

	fmt.Fprintf(u.Out, "%s  %s  (%s, %d ms)\n", Cyan(resp.Filename), r.Language, resp.ModelUsed, resp.ProcessingTimeMs)
	fmt.Fprintf(u.Out, "Overall score: %s\n", ScoreColor(r.OverallScore, models.MaxOverallScore))
	if r.HasCriticalIssues {
		fmt.Fprintf(u.Out, "%s\n", Red("Critical issues found"))
	}
	fmt.Fprintln(u.Out)
	fmt.Fprintln(u.Out, r.OverallSummary)
	fmt.Fprintln(u.Out)

	ea := r.ExecutionAnalysis
	fmt.Fprintf(u.Out, "Compiles: %s  Runs: %s\n", YesNo(ea.WillCompile), YesNo(ea.WillRun))
	if ea.ExpectedBehavior != "" {
		fmt.Fprintf(u.Out, "Expected behavior: %s\n", ea.ExpectedBehavior)
	}
	fmt.Fprintln(u.Out)

	qm := r.QualityMetrics
	table := u.Table([]string{"Metric", "Score"})
	table.Append([]string{"Readability", ScoreColor(qm.Readability, models.MaxMetricScore)})
	table.Append([]string{"Efficiency", ScoreColor(qm.Efficiency, models.MaxMetricScore)})
	table.Append([]string{"Maintainability", ScoreColor(qm.Maintainability, models.MaxMetricScore)})
	table.Append([]string{"Security", ScoreColor(qm.Security, models.MaxMetricScore)})
	if err := table.Render(); err != nil {
		return err
	}

	if len(r.Issues) == 0 {
		fmt.Fprintln(u.Out)
		u.Success("No issues found")
		return nil
	}

	counts := make(map[models.Priority]int, len(models.Priorities))
	for _, is := range r.Issues {
		counts[is.Priority]++
	}
	var current models.Priority
	for i, is := range r.IssuesByUrgency() {
		if i == 0 || is.Priority != current {
			current = is.Priority
			fmt.Fprintf(u.Out, "\n%s (%d)\n", PriorityColor(current), counts[current])
		}
		u.issue(is)
	}
	return nil
}

func (u *UI) issue(is models.Issue) {
	header := fmt.Sprintf("  L%d  %s", is.Line, is.Title)
	if is.Category != "" {
		header += fmt.Sprintf("  [%s]", is.Category)
	}
	fmt.Fprintln(u.Out, header)
	if len(is.Tags) > 0 {
		fmt.Fprintf(u.Out, "    tags: %s\n", strings.Join(is.Tags, ", "))
	}
	if is.Description != "" {
		fmt.Fprintf(u.Out, "    %s\n", is.Description)
	}
	if is.PotentialImpact != "" {
		fmt.Fprintf(u.Out, "    impact: %s\n", is.PotentialImpact)
	}
	if is.SuggestedFix != "" {
		u.VerboseLog("fix:\n%s", indent(is.SuggestedFix, "      "))
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
