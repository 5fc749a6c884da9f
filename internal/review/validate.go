package review

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/joescharf/crev/internal/models"
)

// FieldProblem describes one missing or mistyped field.
type FieldProblem struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (p FieldProblem) String() string {
	return p.Path + " " + p.Message
}

// ValidationError lists every problem found in a candidate report.
type ValidationError struct {
	Problems []FieldProblem
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	return "invalid review report: " + strings.Join(parts, "; ")
}

// Paths returns the offending field paths in the order they were found.
func (e *ValidationError) Paths() []string {
	paths := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		paths[i] = p.Path
	}
	return paths
}

// Validate checks that v, a value decoded from JSON (ideally with UseNumber),
// has exactly the ReviewReport shape. Values are never coerced: numbers sent
// as strings, fractional scores and out-of-range scores are all rejected.
// Unknown keys are ignored. On failure the error is a *ValidationError
// naming every offending field.
func Validate(v any) (*models.ReviewReport, error) {
	root, ok := v.(map[string]any)
	if !ok {
		return nil, &ValidationError{Problems: []FieldProblem{
			{Path: "$", Message: "must be a JSON object, got " + typeName(v)},
		}}
	}

	c := &checker{}
	r := &models.ReviewReport{
		Language:          c.str(root, "language", ""),
		OverallSummary:    c.str(root, "overall_summary", ""),
		HasCriticalIssues: c.boolean(root, "has_critical_issues", ""),
		OverallScore:      c.integer(root, "overall_score", "", 0, models.MaxOverallScore),
	}

	if ea, ok := c.object(root, "execution_analysis", ""); ok {
		r.ExecutionAnalysis = models.ExecutionAnalysis{
			WillCompile:      c.boolean(ea, "will_compile", "execution_analysis"),
			WillRun:          c.boolean(ea, "will_run", "execution_analysis"),
			ExpectedBehavior: c.str(ea, "expected_behavior", "execution_analysis"),
		}
	}

	if qm, ok := c.object(root, "quality_metrics", ""); ok {
		r.QualityMetrics = models.QualityMetrics{
			Readability:     c.integer(qm, "readability", "quality_metrics", 0, models.MaxMetricScore),
			Efficiency:      c.integer(qm, "efficiency", "quality_metrics", 0, models.MaxMetricScore),
			Maintainability: c.integer(qm, "maintainability", "quality_metrics", 0, models.MaxMetricScore),
			Security:        c.integer(qm, "security", "quality_metrics", 0, models.MaxMetricScore),
		}
	}

	r.Issues = []models.Issue{}
	if items, ok := c.array(root, "issues", ""); ok {
		for i, item := range items {
			path := fmt.Sprintf("issues[%d]", i)
			obj, ok := item.(map[string]any)
			if !ok {
				c.add(path, "must be an object, got %s", typeName(item))
				continue
			}
			r.Issues = append(r.Issues, c.issue(obj, path))
		}
	}

	if len(c.problems) > 0 {
		return nil, &ValidationError{Problems: c.problems}
	}
	return r, nil
}

type checker struct {
	problems []FieldProblem
}

func (c *checker) add(path, format string, a ...any) {
	c.problems = append(c.problems, FieldProblem{Path: path, Message: fmt.Sprintf(format, a...)})
}

func join(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

// lookup fetches m[key], recording a problem when it is absent.
func (c *checker) lookup(m map[string]any, key, parent string) (any, bool) {
	v, ok := m[key]
	if !ok {
		c.add(join(parent, key), "is missing")
	}
	return v, ok
}

func (c *checker) str(m map[string]any, key, parent string) string {
	v, ok := c.lookup(m, key, parent)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		c.add(join(parent, key), "must be a string, got %s", typeName(v))
	}
	return s
}

func (c *checker) boolean(m map[string]any, key, parent string) bool {
	v, ok := c.lookup(m, key, parent)
	if !ok {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		c.add(join(parent, key), "must be a boolean, got %s", typeName(v))
	}
	return b
}

func (c *checker) integer(m map[string]any, key, parent string, min, max int) int {
	v, ok := c.lookup(m, key, parent)
	if !ok {
		return 0
	}
	path := join(parent, key)

	var n int64
	switch x := v.(type) {
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			c.add(path, "must be an integer, got %s", x.String())
			return 0
		}
		n = i
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			c.add(path, "must be an integer, got %v", x)
			return 0
		}
		n = int64(x)
	default:
		c.add(path, "must be an integer, got %s", typeName(v))
		return 0
	}

	if n < int64(min) || n > int64(max) {
		c.add(path, "must be between %d and %d, got %d", min, max, n)
		return 0
	}
	return int(n)
}

func (c *checker) object(m map[string]any, key, parent string) (map[string]any, bool) {
	v, ok := c.lookup(m, key, parent)
	if !ok {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	if !ok {
		c.add(join(parent, key), "must be an object, got %s", typeName(v))
	}
	return obj, ok
}

func (c *checker) array(m map[string]any, key, parent string) ([]any, bool) {
	v, ok := c.lookup(m, key, parent)
	if !ok {
		return nil, false
	}
	arr, ok := v.([]any)
	if !ok {
		c.add(join(parent, key), "must be an array, got %s", typeName(v))
	}
	return arr, ok
}

func (c *checker) issue(m map[string]any, path string) models.Issue {
	is := models.Issue{
		Line:            c.integer(m, "line", path, 1, math.MaxInt32),
		Category:        c.str(m, "category", path),
		Title:           c.str(m, "title", path),
		Description:     c.str(m, "description", path),
		PotentialImpact: c.str(m, "potential_impact", path),
		SuggestedFix:    c.str(m, "suggested_fix", path),
		Tags:            []string{},
	}

	if v, ok := c.lookup(m, "priority", path); ok {
		s, isStr := v.(string)
		switch {
		case !isStr:
			c.add(join(path, "priority"), "must be a string, got %s", typeName(v))
		case !models.Priority(s).Valid():
			c.add(join(path, "priority"), "must be one of High, Medium, Low, got %q", s)
		default:
			is.Priority = models.Priority(s)
		}
	}

	if tags, ok := c.array(m, "tags", path); ok {
		for i, t := range tags {
			s, ok := t.(string)
			if !ok {
				c.add(fmt.Sprintf("%s.tags[%d]", path, i), "must be a string, got %s", typeName(t))
				continue
			}
			is.Tags = append(is.Tags, s)
		}
	}
	return is
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}
