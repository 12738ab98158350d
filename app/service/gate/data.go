package gate

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCheckerUnavailable marks a checker whose backing service was
// unreachable or timed out. The gate fails open on it.
var ErrCheckerUnavailable = errors.New("checker unavailable")

type FindingKind string

const (
	KindSyntactic FindingKind = "syntactic"
	KindSemantic  FindingKind = "semantic"
)

// Span is a byte-offset range into the utterance.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Finding is one detected grammar or usage issue. Produced by exactly one
// checker and never mutated afterwards.
type Finding struct {
	Kind        FindingKind `json:"kind"`
	Span        Span        `json:"span"`
	Original    string      `json:"original"`
	Suggestion  string      `json:"suggestion"`
	Explanation string      `json:"explanation"`
}

// Annotation is the merged checker output for one utterance. Findings from
// both checkers are kept as-is, overlaps included; reconciling them is the
// planner's job.
type Annotation struct {
	Utterance string    `json:"utterance"`
	Findings  []Finding `json:"findings"`

	// Degraded is set when at least one checker failed and the gate
	// proceeded with partial results.
	Degraded bool `json:"degraded"`
}

func (a *Annotation) findingsOfKind(kind FindingKind) []Finding {
	var result []Finding
	for _, f := range a.Findings {
		if f.Kind == kind {
			result = append(result, f)
		}
	}
	return result
}

// FormatSyntactic renders the syntactic findings for the planner prompt.
func (a *Annotation) FormatSyntactic() string {
	return formatFindings(a.findingsOfKind(KindSyntactic), "No syntax errors found.")
}

// FormatSemantic renders the semantic findings for the planner prompt.
func (a *Annotation) FormatSemantic() string {
	return formatFindings(a.findingsOfKind(KindSemantic), "No additional semantic errors found.")
}

func formatFindings(findings []Finding, emptyText string) string {
	if len(findings) == 0 {
		return emptyText
	}

	var builder strings.Builder

	for i, f := range findings {
		builder.WriteString(fmt.Sprintf("%d. %q", i+1, f.Original))
		if f.Suggestion != "" {
			builder.WriteString(fmt.Sprintf(" -> %q", f.Suggestion))
		}
		if f.Explanation != "" {
			builder.WriteString(": " + f.Explanation)
		}
		builder.WriteString("\n")
	}

	return strings.TrimSpace(builder.String())
}
