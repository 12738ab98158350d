package languagetool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lingotutor/app/config"

	"github.com/samber/do"
)

// Client talks to the LanguageTool check API (the free public endpoint or
// the premium one, depending on config).
type Client struct {
	cfg        *config.Config
	httpClient *http.Client
	checkURL   string
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		checkURL: strings.TrimSuffix(cfg.LanguageTool.BaseURL, "/") + "/check",
	}, nil
}

type Match struct {
	Message      string
	ShortMessage string
	Offset       int
	Length       int
	RuleID       string
	Category     string
	Replacements []string
}

type CheckResult struct {
	OriginalText  string
	CorrectedText string
	Matches       []Match
}

type apiResponse struct {
	Matches []apiMatch `json:"matches"`
}

type apiMatch struct {
	Message      string `json:"message"`
	ShortMessage string `json:"shortMessage"`
	Offset       int    `json:"offset"`
	Length       int    `json:"length"`
	Replacements []struct {
		Value string `json:"value"`
	} `json:"replacements"`
	Rule struct {
		ID       string `json:"id"`
		Category struct {
			Name string `json:"name"`
		} `json:"category"`
	} `json:"rule"`
}

func (c *Client) Check(ctx context.Context, text string) (*CheckResult, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("language", c.cfg.LanguageTool.Language)
	form.Set("enabledOnly", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.checkURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.cfg.LanguageTool.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.LanguageTool.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call languagetool: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("languagetool returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed apiResponse
	if err = json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode languagetool response: %w", err)
	}

	result := &CheckResult{
		OriginalText: text,
		Matches:      make([]Match, 0, len(parsed.Matches)),
	}

	for _, m := range parsed.Matches {
		match := Match{
			Message:      m.Message,
			ShortMessage: m.ShortMessage,
			Offset:       m.Offset,
			Length:       m.Length,
			RuleID:       m.Rule.ID,
			Category:     m.Rule.Category.Name,
		}
		for _, r := range m.Replacements {
			match.Replacements = append(match.Replacements, r.Value)
		}
		result.Matches = append(result.Matches, match)
	}

	result.CorrectedText = applyCorrections(text, result.Matches)

	return result, nil
}

// applyCorrections substitutes the first replacement of every match,
// walking back-to-front so earlier offsets stay valid.
func applyCorrections(text string, matches []Match) string {
	corrected := text

	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		if len(m.Replacements) == 0 {
			continue
		}

		start := m.Offset
		end := m.Offset + m.Length
		if start < 0 || end > len(corrected) || start > end {
			continue
		}

		corrected = corrected[:start] + m.Replacements[0] + corrected[end:]
	}

	return corrected
}
