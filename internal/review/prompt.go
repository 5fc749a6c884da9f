package review

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/joescharf/crev/internal/llm"
	"github.com/joescharf/crev/internal/redact"
)

// DefaultMaxSourceBytes is the largest source embedded in a prompt before
// truncation kicks in.
const DefaultMaxSourceBytes = 256 * 1024

const systemPrompt = `You are a world-class static analysis engine. Perform a deep static analysis of the provided source file and return a comprehensive report as a single raw JSON object. Do not execute the code. Do not include any text outside the JSON object.

The JSON object must have exactly these keys:

- "language": string, the programming language of the file, e.g. "Python" or "JavaScript".
- "overall_summary": string, one or two sentences summarizing the code's quality and key findings.
- "execution_analysis": object with
    - "will_compile": boolean,
    - "will_run": boolean, false if you detect any critical runtime error,
    - "expected_behavior": string explaining the expected outcome or why it fails.
- "has_critical_issues": boolean, must be true if "will_run" is false.
- "overall_score": integer from 0 to 100 rating overall code quality.
- "quality_metrics": object with four integer keys, each from 0 to 10:
  "readability", "efficiency", "maintainability", "security".
- "issues": array of objects (empty array if there are no issues). Each object has
    - "line": integer line number (1-based) where the issue occurs,
    - "priority": one of "High", "Medium", "Low",
    - "category": short string such as "Logic", "Syntax", "Performance", "Security" or "Best Practice",
    - "tags": array of short strings, e.g. ["error-handling", "api-usage"],
    - "title": short descriptive title,
    - "description": detailed explanation, Markdown allowed,
    - "potential_impact": one sentence on the negative consequence,
    - "suggested_fix": the exact change that fixes the issue, as a Markdown code block.

All numbers must be JSON numbers, never strings. All booleans must be JSON booleans.

Respond with ONLY the JSON object. No markdown fences, no explanation, no preamble.`

// PromptOptions controls how the source is embedded in the prompt.
type PromptOptions struct {
	MaxSourceBytes int
	RedactSecrets  bool
}

// Prompt is the instruction pair sent to the model.
type Prompt struct {
	System    string
	User      string
	Truncated bool
	Redacted  int
}

// Text returns the whole prompt as one string.
func (p Prompt) Text() string {
	return p.System + "\n\n" + p.User
}

// Request converts the prompt into an LLM request.
func (p Prompt) Request(maxTokens int) llm.Request {
	return llm.Request{System: p.System, User: p.User, MaxTokens: maxTokens}
}

// SystemPrompt returns the fixed instruction describing the report schema.
func SystemPrompt() string {
	return systemPrompt
}

// BuildPrompt embeds the source text of filename into a review prompt. It is
// deterministic: identical inputs give identical prompts.
func BuildPrompt(filename, source string, opts PromptOptions) Prompt {
	p := Prompt{System: systemPrompt}

	if opts.RedactSecrets {
		source, p.Redacted = redact.Secrets(source)
	}

	limit := opts.MaxSourceBytes
	if limit <= 0 {
		limit = DefaultMaxSourceBytes
	}
	total := len(source)
	if total > limit {
		source = truncateSource(source, limit)
		p.Truncated = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following code from the file '%s'.\n", filename)
	if lang := DetectLanguage(filename); lang != "Unknown" {
		fmt.Fprintf(&b, "Language hint (from file extension): %s\n", lang)
	}
	if p.Truncated {
		fmt.Fprintf(&b, "The file was truncated to its first %d of %d bytes; only review the part shown.\n", len(source), total)
	}

	b.WriteString("\n--- BEGIN SOURCE ---\n")
	b.WriteString(source)
	if !strings.HasSuffix(source, "\n") {
		b.WriteString("\n")
	}
	if p.Truncated {
		fmt.Fprintf(&b, "[... truncated: showing %d of %d bytes ...]\n", len(source), total)
	}
	b.WriteString("--- END SOURCE ---\n\n")
	b.WriteString("Return only the raw JSON object, without any surrounding text or markdown formatting.\n")

	p.User = b.String()
	return p
}

// truncateSource cuts s to at most limit bytes, preferring the last line
// break and never splitting a UTF-8 sequence.
func truncateSource(s string, limit int) string {
	cut := s[:limit]
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		return cut[:i+1]
	}
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}

var languages = map[string]string{
	".py":    "Python",
	".js":    "JavaScript",
	".jsx":   "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript",
	".java":  "Java",
	".cpp":   "C++",
	".cc":    "C++",
	".hpp":   "C++",
	".c":     "C",
	".h":     "C",
	".cs":    "C#",
	".php":   "PHP",
	".rb":    "Ruby",
	".go":    "Go",
	".rs":    "Rust",
	".swift": "Swift",
	".kt":    "Kotlin",
	".scala": "Scala",
	".r":     "R",
	".m":     "Objective-C",
	".pl":    "Perl",
	".sh":    "Shell",
	".sql":   "SQL",
	".html":  "HTML",
	".css":   "CSS",
	".xml":   "XML",
	".yaml":  "YAML",
	".yml":   "YAML",
	".json":  "JSON",
}

// DetectLanguage infers the programming language from a filename extension.
func DetectLanguage(filename string) string {
	if lang, ok := languages[strings.ToLower(filepath.Ext(filename))]; ok {
		return lang
	}
	return "Unknown"
}
