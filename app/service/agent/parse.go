package agent

import (
	"fmt"
	"strings"
)

// extractTag returns the content of the first <tag>...</tag> block.
func extractTag(content, tag string) (string, bool) {
	openTag := "<" + tag + ">"
	closeTag := "</" + tag + ">"

	start := strings.Index(content, openTag)
	if start < 0 {
		return "", false
	}

	rest := content[start+len(openTag):]

	end := strings.Index(rest, closeTag)
	if end < 0 {
		return "", false
	}

	return strings.TrimSpace(rest[:end]), true
}

// parsePlanOutput turns raw planner output into a PlanStep. The planner is
// instructed to emit <final_answer> or <tool_call> tags; tag-less non-empty
// output is treated as a final answer, everything else is a planning
// failure.
func parsePlanOutput(content string) (PlanStep, error) {
	if answer, ok := extractTag(content, "final_answer"); ok {
		if answer == "" {
			return PlanStep{}, fmt.Errorf("%w: empty final answer", ErrPlanningFailure)
		}

		return PlanStep{
			Kind:   StepFinalAnswer,
			Answer: answer,
		}, nil
	}

	if call, ok := extractTag(content, "tool_call"); ok {
		kind, err := matchToolKind(call)
		if err != nil {
			return PlanStep{}, err
		}

		return PlanStep{
			Kind: StepToolCall,
			ToolCall: &ToolCall{
				Tool: kind,
				Raw:  call,
			},
		}, nil
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return PlanStep{}, fmt.Errorf("%w: empty planner output", ErrPlanningFailure)
	}

	return PlanStep{
		Kind:   StepFinalAnswer,
		Answer: trimmed,
	}, nil
}

func matchToolKind(call string) (ToolKind, error) {
	switch {
	case strings.Contains(call, string(ToolWebSearch)):
		return ToolWebSearch, nil
	case strings.Contains(call, string(ToolUpdateUserProfile)):
		return ToolUpdateUserProfile, nil
	case strings.Contains(call, string(ToolSaveGrammarCorrection)):
		return ToolSaveGrammarCorrection, nil
	default:
		return "", fmt.Errorf("%w: tool not recognized in %q", ErrPlanningFailure, call)
	}
}
