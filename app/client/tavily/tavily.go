package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lingotutor/app/config"

	"github.com/samber/do"
)

const defaultBaseURL = "https://api.tavily.com"

// Client is a minimal Tavily web search client.
type Client struct {
	cfg        *config.Config
	httpClient *http.Client
	baseURL    string
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: defaultBaseURL,
	}, nil
}

type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type searchRequest struct {
	APIKey            string `json:"api_key"`
	Query             string `json:"query"`
	MaxResults        int    `json:"max_results"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

type searchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	payload, err := json.Marshal(searchRequest{
		APIKey:     c.cfg.Tavily.Token,
		Query:      query,
		MaxResults: c.cfg.Tavily.MaxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search",
		bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call tavily: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("tavily returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed searchResponse
	if err = json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode tavily response: %w", err)
	}

	return parsed.Results, nil
}

// FormatResults renders search results as markdown-ish text suitable for
// feeding back into the planner as an observation.
func FormatResults(results []SearchResult) string {
	if len(results) == 0 {
		return "No results found"
	}

	var builder strings.Builder

	for _, item := range results {
		builder.WriteString(fmt.Sprintf("[%s](%s)\n%s\n", item.Title, item.URL, item.Content))
	}

	return strings.TrimSpace(builder.String())
}
