package gate

import (
	"context"
	"fmt"

	"lingotutor/app/client/languagetool"
)

// syntacticChecker maps LanguageTool matches onto findings.
type syntacticChecker struct {
	client *languagetool.Client
}

func NewSyntacticChecker(client *languagetool.Client) Checker {
	return &syntacticChecker{client: client}
}

func (c *syntacticChecker) Kind() FindingKind {
	return KindSyntactic
}

func (c *syntacticChecker) Check(ctx context.Context, text string) ([]Finding, error) {
	result, err := c.client.Check(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("languagetool check: %w", err)
	}

	findings := make([]Finding, 0, len(result.Matches))

	for _, m := range result.Matches {
		start := m.Offset
		end := m.Offset + m.Length
		if start < 0 || end > len(text) || start > end {
			continue
		}

		finding := Finding{
			Kind: KindSyntactic,
			Span: Span{
				Start: start,
				End:   end,
			},
			Original:    text[start:end],
			Explanation: m.Message,
		}

		if finding.Explanation == "" {
			finding.Explanation = m.ShortMessage
		}
		if len(m.Replacements) > 0 {
			finding.Suggestion = m.Replacements[0]
		}

		findings = append(findings, finding)
	}

	return findings, nil
}
