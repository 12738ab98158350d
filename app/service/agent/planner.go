package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"lingotutor/app/config"

	_ "embed"

	"github.com/kaptinlin/jsonrepair"
	"github.com/sashabaranov/go-openai"
)

//go:embed planner_prompt_template.txt
var plannerPromptTemplate string

// Planner produces exactly one PlanStep per call. Observe feeds a tool
// result back before the next call.
type Planner interface {
	Plan(ctx context.Context) (PlanStep, error)
	Observe(result ToolResult)
}

// PlannerFactory creates a fresh planner for one turn.
type PlannerFactory interface {
	NewTurn(req TurnRequest) Planner
}

type llmPlannerFactory struct {
	client *openai.Client
	model  string
}

func NewPlannerFactory(cfg *config.Config) PlannerFactory {
	clientConfig := openai.DefaultConfig(cfg.OpenAI.Planner.Token)
	clientConfig.BaseURL = cfg.OpenAI.Planner.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Timeout: 60 * time.Second,
	}

	return &llmPlannerFactory{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.OpenAI.Planner.Model,
	}
}

func (f *llmPlannerFactory) NewTurn(req TurnRequest) Planner {
	templateValues := map[string]any{
		"conversation_id":    req.ConversationID,
		"user_profile":       req.Profile,
		"history":            req.History,
		"user_input":         req.Utterance,
		"syntactic_analysis": req.Annotation.FormatSyntactic(),
		"semantic_analysis":  req.Annotation.FormatSemantic(),
	}

	prompt := plannerPromptTemplate
	for key, value := range templateValues {
		prompt = strings.ReplaceAll(prompt, "{"+key+"}", fmt.Sprint(value))
	}

	return &llmPlanner{
		client: f.client,
		model:  f.model,
		messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: prompt,
			},
		},
	}
}

// llmPlanner accumulates the turn's message exchange: its own outputs plus
// tool observations.
type llmPlanner struct {
	client   *openai.Client
	model    string
	messages []openai.ChatCompletionMessage
}

func (p *llmPlanner) Plan(ctx context.Context) (PlanStep, error) {
	aiResponse, err := p.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:               p.model,
			Messages:            p.messages,
			MaxCompletionTokens: 2000,
			Temperature:         0.3,
		},
	)
	if err != nil {
		return PlanStep{}, fmt.Errorf("%w: %v", ErrPlanningFailure, err)
	}

	if len(aiResponse.Choices) == 0 {
		return PlanStep{}, fmt.Errorf("%w: no chat completion found", ErrPlanningFailure)
	}

	content := aiResponse.Choices[0].Message.Content

	p.messages = append(p.messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: content,
	})

	step, err := parsePlanOutput(content)
	if err != nil {
		return PlanStep{}, err
	}

	if step.Kind == StepToolCall {
		args, err := p.extractArgs(ctx, step.ToolCall.Tool, step.ToolCall.Raw)
		if err != nil {
			// Leave Args nil; the executor reports the failure back to
			// planning as an observation.
			slog.Warn("Tool argument extraction failed",
				"tool", step.ToolCall.Tool,
				"error", err,
			)
		} else {
			step.ToolCall.Args = args
		}
	}

	return step, nil
}

func (p *llmPlanner) Observe(result ToolResult) {
	p.messages = append(p.messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: fmt.Sprintf("<observation>\n%s\n</observation>", result.Payload),
	})
}

// extractArgs runs a second, deterministic completion that restates the
// tool call as a JSON argument object matching the tool's schema.
func (p *llmPlanner) extractArgs(ctx context.Context, kind ToolKind, rawCall string) (json.RawMessage, error) {
	prompt := fmt.Sprintf(
		"Extract the parameters from this function call and return them as a single JSON object with exactly these fields: %s.\n\n%s\n\nRespond ONLY with the JSON object.",
		argSchemaHint(kind), rawCall,
	)

	aiResponse, err := p.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: p.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxCompletionTokens: 1000,
			Temperature:         0,
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

	return repairArgs(result)
}

// repairArgs validates the extracted JSON, running it through jsonrepair
// when the model produced something almost-JSON.
func repairArgs(raw string) (json.RawMessage, error) {
	if json.Valid([]byte(raw)) {
		return json.RawMessage(raw), nil
	}

	fixed, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to repair arguments JSON: %w", err)
	}

	if !json.Valid([]byte(fixed)) {
		return nil, fmt.Errorf("arguments are not valid JSON after repair")
	}

	return json.RawMessage(fixed), nil
}

func argSchemaHint(kind ToolKind) string {
	switch kind {
	case ToolWebSearch:
		return `query (string)`
	case ToolUpdateUserProfile:
		return `name (string, optional), location (string, optional), interests_to_add (string array, optional)`
	case ToolSaveGrammarCorrection:
		return `original_text (string), corrected_text (string), explanation (string), improvement (string)`
	default:
		return ""
	}
}
