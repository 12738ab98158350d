package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"lingotutor/app/client/tavily"
	"lingotutor/app/service/memory"

	"github.com/tmc/langchaingo/tools"
)

type agentTool struct {
	name        string
	description string
	call        func(ctx context.Context, input string) (string, error)
}

func (m *agentTool) Name() string {
	return m.name
}

func (m *agentTool) Description() string {
	return m.description
}

func (m *agentTool) Call(ctx context.Context, input string) (string, error) {
	return m.call(ctx, input)
}

// createTools builds the turn's tool set. The closures capture the turn's
// user and conversation, so tool input stays pure argument JSON.
func (s *Service) createTools(req TurnRequest) map[ToolKind]tools.Tool {
	return map[ToolKind]tools.Tool{
		ToolWebSearch: &agentTool{
			name:        "web_search",
			description: "Search the web for real-time information. Input must be a JSON object with a query (string) field.",
			call: func(ctx context.Context, input string) (string, error) {
				var args WebSearchArgs
				if err := json.Unmarshal([]byte(input), &args); err != nil {
					return "", fmt.Errorf("invalid arguments JSON: %w", err)
				}

				if strings.TrimSpace(args.Query) == "" {
					return "", fmt.Errorf("query must not be empty")
				}

				results, err := s.searchClient.Search(ctx, args.Query)
				if err != nil {
					return "", err
				}

				return tavily.FormatResults(results), nil
			},
		},
		ToolUpdateUserProfile: &agentTool{
			name:        "update_user_profile",
			description: "Add new profile information for the user. Input must be a JSON object with optional name (string), location (string) and interests_to_add (string[]) fields.",
			call: func(ctx context.Context, input string) (string, error) {
				var args UpdateUserProfileArgs
				if err := json.Unmarshal([]byte(input), &args); err != nil {
					return "", fmt.Errorf("invalid arguments JSON: %w", err)
				}

				if err := s.memorySvc.UpdateProfile(req.UserID, memory.ProfileUpdate{
					Name:           args.Name,
					Location:       args.Location,
					InterestsToAdd: args.InterestsToAdd,
				}); err != nil {
					return "", err
				}

				return "User profile updated successfully.", nil
			},
		},
		ToolSaveGrammarCorrection: &agentTool{
			name:        "save_grammar_correction",
			description: "Persist an identified grammar correction. Input must be a JSON object with original_text, corrected_text, explanation and improvement (all strings).",
			call: func(ctx context.Context, input string) (string, error) {
				var args SaveGrammarCorrectionArgs
				if err := json.Unmarshal([]byte(input), &args); err != nil {
					return "", fmt.Errorf("invalid arguments JSON: %w", err)
				}

				if args.OriginalText == "" || args.CorrectedText == "" {
					return "", fmt.Errorf("original_text and corrected_text must not be empty")
				}

				if err := s.memorySvc.AddCorrection(req.UserID, req.ConversationID, memory.Correction{
					OriginalText:  args.OriginalText,
					CorrectedText: args.CorrectedText,
					Explanation:   args.Explanation,
					Improvement:   args.Improvement,
				}); err != nil {
					return "", err
				}

				return "Grammar correction saved successfully.", nil
			},
		},
	}
}

// executeTool runs one tool call exactly once. Failures become a failed
// ToolResult, never an aborted turn; there are no retries here.
func executeTool(ctx context.Context, toolSet map[ToolKind]tools.Tool, call ToolCall) ToolResult {
	switch call.Tool {
	case ToolWebSearch, ToolUpdateUserProfile, ToolSaveGrammarCorrection:
	default:
		return ToolResult{
			Call:    call,
			Status:  ToolFailed,
			Payload: fmt.Sprintf("Error: tool %q is not recognized", call.Tool),
		}
	}

	if call.Args == nil {
		return ToolResult{
			Call:    call,
			Status:  ToolFailed,
			Payload: "Error: could not extract tool arguments from the call",
		}
	}

	output, err := toolSet[call.Tool].Call(ctx, string(call.Args))
	if err != nil {
		return ToolResult{
			Call:    call,
			Status:  ToolFailed,
			Payload: fmt.Sprintf("Error executing tool: %v", err),
		}
	}

	return ToolResult{
		Call:    call,
		Status:  ToolOK,
		Payload: output,
	}
}
