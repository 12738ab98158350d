package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"lingotutor/app/config"

	_ "embed"

	"github.com/sashabaranov/go-openai"
)

//go:embed semantic_prompt_template.txt
var semanticPromptTemplate string

// semanticChecker asks a specialist LLM for usage errors an automatic
// syntax tool misses (word choice, unnatural phrasing).
type semanticChecker struct {
	client *openai.Client
	model  string
}

func NewSemanticChecker(cfg *config.Config) Checker {
	return &semanticChecker{
		client: createClient(cfg.OpenAI.Semantic),
		model:  cfg.OpenAI.Semantic.Model,
	}
}

func createClient(cfg config.ModelConfig) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.Token)

	clientConfig.BaseURL = cfg.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Timeout: 30 * time.Second,
	}

	return openai.NewClientWithConfig(clientConfig)
}

type semanticResponse struct {
	Findings []struct {
		Original    string `json:"original"`
		Suggestion  string `json:"suggestion"`
		Explanation string `json:"explanation"`
	} `json:"findings"`
}

func (c *semanticChecker) Kind() FindingKind {
	return KindSemantic
}

func (c *semanticChecker) Check(ctx context.Context, text string) ([]Finding, error) {
	prompt := strings.ReplaceAll(semanticPromptTemplate, "{user_input}", text)

	aiResponse, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxCompletionTokens: 1000,
			Temperature:         0.1,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(aiResponse.Choices) == 0 {
		return nil, fmt.Errorf("no chat completion found")
	}

	result := aiResponse.Choices[0].Message.Content
	result = strings.Trim(result, "`")
	result = strings.TrimSpace(result)
	result = strings.TrimPrefix(result, "json")
	result = strings.TrimSpace(result)

	var response semanticResponse
	if err = json.Unmarshal([]byte(result), &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	findings := make([]Finding, 0, len(response.Findings))

	for _, f := range response.Findings {
		original := strings.TrimSpace(f.Original)
		if original == "" {
			continue
		}

		// The model reports snippets, not offsets. Locate the snippet in
		// the utterance; an unlocatable one spans the whole text.
		span := Span{Start: 0, End: len(text)}
		if idx := strings.Index(text, original); idx >= 0 {
			span = Span{Start: idx, End: idx + len(original)}
		}

		findings = append(findings, Finding{
			Kind:        KindSemantic,
			Span:        span,
			Original:    original,
			Suggestion:  strings.TrimSpace(f.Suggestion),
			Explanation: strings.TrimSpace(f.Explanation),
		})
	}

	return findings, nil
}
