package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/crev/internal/models"
)

func newTestUI() (*UI, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &UI{Out: out, ErrOut: errOut}, out, errOut
}

func TestInfo(t *testing.T) {
	u, out, _ := newTestUI()
	u.Info("hello %s", "world")
	assert.Contains(t, out.String(), "hello world")
}

func TestSuccess(t *testing.T) {
	u, out, _ := newTestUI()
	u.Success("done %d", 42)
	assert.Contains(t, out.String(), "done 42")
}

func TestWarning(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Warning("careful %s", "now")
	assert.Contains(t, errOut.String(), "careful now")
}

func TestError(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Error("failed %s", "badly")
	assert.Contains(t, errOut.String(), "failed badly")
}

func TestVerboseLog_Enabled(t *testing.T) {
	u, out, _ := newTestUI()
	u.Verbose = true
	u.VerboseLog("detail %d", 1)
	assert.Contains(t, out.String(), "detail 1")
}

func TestVerboseLog_Disabled(t *testing.T) {
	u, out, _ := newTestUI()
	u.Verbose = false
	u.VerboseLog("detail %d", 1)
	assert.Empty(t, out.String())
}

func TestColorHelpers(t *testing.T) {
	// Color helpers should return non-empty strings
	assert.NotEmpty(t, Cyan("test"))
	assert.NotEmpty(t, Green("test"))
	assert.NotEmpty(t, Yellow("test"))
	assert.NotEmpty(t, Red("test"))
}

func TestPriorityColor(t *testing.T) {
	for _, p := range models.Priorities {
		assert.Contains(t, PriorityColor(p), string(p))
	}
	assert.Equal(t, "Urgent", PriorityColor("Urgent"))
}

func TestScoreColor(t *testing.T) {
	assert.Contains(t, ScoreColor(90, 100), "90/100")
	assert.Contains(t, ScoreColor(6, 10), "6/10")
	assert.Contains(t, ScoreColor(1, 10), "1/10")
	assert.Equal(t, "0/0", ScoreColor(0, 0))
}

func TestTable(t *testing.T) {
	u, out, _ := newTestUI()
	table := u.Table([]string{"Name", "Status"})
	require.NotNil(t, table)

	table.Append([]string{"readability", "9/10"})
	table.Append([]string{"security", "4/10"})
	err := table.Render()
	require.NoError(t, err)

	result := out.String()
	assert.True(t, strings.Contains(result, "readability") || strings.Contains(result, "Readability"),
		"table output should contain metric names")
	assert.Contains(t, result, "4/10")
}

func sampleResponse() *models.ReviewResponse {
	return &models.ReviewResponse{
		Filename:         "app.py",
		ProcessingTimeMs: 1234,
		ModelUsed:        "test-model",
		ReviewReport: &models.ReviewReport{
			Language:          "Python",
			OverallSummary:    "Mostly fine.",
			ExecutionAnalysis: models.ExecutionAnalysis{WillCompile: true, WillRun: false, ExpectedBehavior: "Crashes on empty input."},
			HasCriticalIssues: true,
			OverallScore:      55,
			QualityMetrics:    models.QualityMetrics{Readability: 8, Efficiency: 7, Maintainability: 6, Security: 3},
			Issues: []models.Issue{
				{Line: 12, Priority: models.PriorityLow, Title: "Long line", Category: "Style"},
				{Line: 3, Priority: models.PriorityHigh, Title: "SQL injection", Tags: []string{"security", "sql"},
					Description: "Query built by concatenation.", SuggestedFix: "Use parameters."},
			},
		},
	}
}

func TestReport(t *testing.T) {
	u, out, _ := newTestUI()
	require.NoError(t, u.Report(sampleResponse()))

	result := out.String()
	assert.Contains(t, result, "app.py")
	assert.Contains(t, result, "55/100")
	assert.Contains(t, result, "Critical issues found")
	assert.Contains(t, result, "Crashes on empty input.")
	assert.Contains(t, result, "3/10")
	assert.Contains(t, result, "security, sql")

	high := strings.Index(result, "SQL injection")
	low := strings.Index(result, "Long line")
	require.True(t, high >= 0 && low >= 0)
	assert.Less(t, high, low, "high priority issues come first")
	assert.NotContains(t, result, "Use parameters.", "fixes are verbose-only")
}

func TestReport_VerboseShowsFix(t *testing.T) {
	u, out, _ := newTestUI()
	u.Verbose = true
	require.NoError(t, u.Report(sampleResponse()))
	assert.Contains(t, out.String(), "Use parameters.")
}

func TestReport_NoIssues(t *testing.T) {
	u, out, _ := newTestUI()
	resp := sampleResponse()
	resp.ReviewReport.Issues = []models.Issue{}
	require.NoError(t, u.Report(resp))
	assert.Contains(t, out.String(), "No issues found")
}

func TestReport_Nil(t *testing.T) {
	u, _, _ := newTestUI()
	assert.Error(t, u.Report(nil))
	assert.Error(t, u.Report(&models.ReviewResponse{}))
}

func TestReport_GroupsByUrgency(t *testing.T) {
	u, out, _ := newTestUI()
	resp := sampleResponse()
	resp.ReviewReport.Issues = append(resp.ReviewReport.Issues,
		models.Issue{Line: 7, Priority: models.PriorityMedium, Title: "Magic number"},
		models.Issue{Line: 9, Priority: models.PriorityHigh, Title: "Unchecked error"},
	)
	require.NoError(t, u.Report(resp))

	result := out.String()
	assert.Equal(t, 1, strings.Count(result, "High"), "one header per priority")
	assert.Contains(t, result, " (2)\n")
	high := strings.Index(result, "Unchecked error")
	medium := strings.Index(result, "Magic number")
	low := strings.Index(result, "Long line")
	assert.Less(t, strings.Index(result, "SQL injection"), high)
	assert.Less(t, high, medium)
	assert.Less(t, medium, low)
}
