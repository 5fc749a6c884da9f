package models

import "slices"

// Score bounds for a review report.
const (
	MaxOverallScore = 100
	MaxMetricScore  = 10
)

// QualityMetrics holds the per-aspect scores, each in [0, MaxMetricScore].
type QualityMetrics struct {
	Readability     int `json:"readability" yaml:"readability"`
	Efficiency      int `json:"efficiency" yaml:"efficiency"`
	Maintainability int `json:"maintainability" yaml:"maintainability"`
	Security        int `json:"security" yaml:"security"`
}

// ExecutionAnalysis is the model's prediction of how the code behaves when run.
type ExecutionAnalysis struct {
	WillCompile      bool   `json:"will_compile" yaml:"will_compile"`
	WillRun          bool   `json:"will_run" yaml:"will_run"`
	ExpectedBehavior string `json:"expected_behavior" yaml:"expected_behavior"`
}

// ReviewReport is the validated outcome of one analysis.
type ReviewReport struct {
	Language          string            `json:"language" yaml:"language"`
	OverallSummary    string            `json:"overall_summary" yaml:"overall_summary"`
	ExecutionAnalysis ExecutionAnalysis `json:"execution_analysis" yaml:"execution_analysis"`
	HasCriticalIssues bool              `json:"has_critical_issues" yaml:"has_critical_issues"`
	OverallScore      int               `json:"overall_score" yaml:"overall_score"`
	QualityMetrics    QualityMetrics    `json:"quality_metrics" yaml:"quality_metrics"`
	Issues            []Issue           `json:"issues" yaml:"issues"`
}

// IssuesByUrgency returns a copy of the report's issues ordered from most to
// least urgent. Issues of equal priority keep their original order.
func (r *ReviewReport) IssuesByUrgency() []Issue {
	issues := slices.Clone(r.Issues)
	slices.SortStableFunc(issues, func(a, b Issue) int {
		return b.Priority.Rank() - a.Priority.Rank()
	})
	return issues
}

// ReviewResponse is the envelope returned for a successful review.
type ReviewResponse struct {
	Filename         string        `json:"filename" yaml:"filename"`
	ProcessingTimeMs int64         `json:"processing_time_ms" yaml:"processing_time_ms"`
	ModelUsed        string        `json:"model_used" yaml:"model_used"`
	ReviewReport     *ReviewReport `json:"review_report" yaml:"review_report"`
}
