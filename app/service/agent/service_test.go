package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"lingotutor/app/client/tavily"
	"lingotutor/app/config"
	"lingotutor/app/service/memory"

	"github.com/stretchr/testify/require"
)

type plannedStep struct {
	step PlanStep
	err  error
}

// scriptedPlanner replays a fixed plan script, repeating the last entry
// once the script runs out.
type scriptedPlanner struct {
	script   []plannedStep
	calls    int
	observed []ToolResult
}

func (p *scriptedPlanner) Plan(ctx context.Context) (PlanStep, error) {
	if err := ctx.Err(); err != nil {
		return PlanStep{}, err
	}

	i := p.calls
	p.calls++

	if i >= len(p.script) {
		i = len(p.script) - 1
	}

	entry := p.script[i]
	if entry.err != nil {
		return PlanStep{}, entry.err
	}

	// Copy the tool call so repeated steps don't share state.
	step := entry.step
	if step.ToolCall != nil {
		call := *step.ToolCall
		step.ToolCall = &call
	}

	return step, nil
}

func (p *scriptedPlanner) Observe(result ToolResult) {
	p.observed = append(p.observed, result)
}

type scriptedFactory struct {
	planner *scriptedPlanner
}

func (f *scriptedFactory) NewTurn(_ TurnRequest) Planner {
	return f.planner
}

type fakeSearcher struct {
	queries []string
	results []tavily.SearchResult
	err     error
}

func (s *fakeSearcher) Search(_ context.Context, query string) ([]tavily.SearchResult, error) {
	s.queries = append(s.queries, query)

	if s.err != nil {
		return nil, s.err
	}

	return s.results, nil
}

func answerStep(text string) plannedStep {
	return plannedStep{step: PlanStep{Kind: StepFinalAnswer, Answer: text}}
}

func toolStep(kind ToolKind, args string) plannedStep {
	call := &ToolCall{
		Tool: kind,
		Raw:  fmt.Sprintf("%s(%s)", kind, args),
	}
	if args != "" {
		call.Args = json.RawMessage(args)
	}

	return plannedStep{step: PlanStep{Kind: StepToolCall, ToolCall: call}}
}

func newTestService(t *testing.T, script []plannedStep, searcher Searcher) (*Service, *scriptedPlanner, *memory.Service) {
	t.Helper()

	cfg := &config.Config{
		Agent: config.Agent{
			MaxTurns:       5,
			PlannerTimeout: config.Duration(time.Second),
		},
		Data: config.Data{
			Dir: t.TempDir(),
		},
	}

	memorySvc, err := memory.NewService(cfg)
	require.NoError(t, err)

	planner := &scriptedPlanner{script: script}

	if searcher == nil {
		searcher = &fakeSearcher{}
	}

	svc := NewService(cfg, &scriptedFactory{planner: planner}, memorySvc, searcher)

	return svc, planner, memorySvc
}

func testRequest() TurnRequest {
	return TurnRequest{
		UserID:         "u1",
		ConversationID: "c1",
		Utterance:      "hello",
	}
}

func TestRunTurnFinalAnswer(t *testing.T) {
	svc, planner, _ := newTestService(t, []plannedStep{
		answerStep("Hi there! What would you like to practice today?"),
	}, nil)

	outcome, err := svc.RunTurn(context.Background(), testRequest())
	require.NoError(t, err)
	require.False(t, outcome.Degraded)
	require.Equal(t, "Hi there! What would you like to practice today?", outcome.FinalAnswer)
	require.Len(t, outcome.Steps, 1)
	require.Equal(t, 1, planner.calls)
	require.Empty(t, planner.observed)
}

func TestRunTurnWebSearchThenAnswer(t *testing.T) {
	searcher := &fakeSearcher{
		results: []tavily.SearchResult{
			{Title: "Lisbon forecast", URL: "https://example.com/w", Content: "Sunny, 24C"},
		},
	}

	svc, planner, _ := newTestService(t, []plannedStep{
		toolStep(ToolWebSearch, `{"query": "weather in Lisbon tomorrow"}`),
		answerStep("Tomorrow in Lisbon looks sunny, around 24 degrees."),
	}, searcher)

	outcome, err := svc.RunTurn(context.Background(), testRequest())
	require.NoError(t, err)
	require.False(t, outcome.Degraded)
	require.Equal(t, []string{"weather in Lisbon tomorrow"}, searcher.queries)

	require.Len(t, outcome.Steps, 2)
	require.NotNil(t, outcome.Steps[0].Result)
	require.Equal(t, ToolOK, outcome.Steps[0].Result.Status)
	require.Contains(t, outcome.Steps[0].Result.Payload, "Lisbon forecast")
	require.Contains(t, outcome.Steps[0].Result.Payload, "Sunny, 24C")

	require.Len(t, planner.observed, 1)
	require.Equal(t, ToolOK, planner.observed[0].Status)
}

func TestRunTurnIterationCap(t *testing.T) {
	searcher := &fakeSearcher{}

	// The planner never answers: it keeps requesting the same search.
	svc, planner, _ := newTestService(t, []plannedStep{
		toolStep(ToolWebSearch, `{"query": "weather in Lisbon tomorrow"}`),
	}, searcher)

	outcome, err := svc.RunTurn(context.Background(), testRequest())
	require.NoError(t, err)
	require.True(t, outcome.Degraded)
	require.Equal(t, degradedAnswer, outcome.FinalAnswer)

	// Exactly five planning calls, each followed by its tool execution, no
	// sixth call.
	require.Equal(t, 5, planner.calls)
	require.Len(t, searcher.queries, 5)
	require.Len(t, outcome.Steps, 5)
	require.Len(t, planner.observed, 5)
}

func TestRunTurnPlanningFailure(t *testing.T) {
	svc, planner, _ := newTestService(t, []plannedStep{
		{err: fmt.Errorf("%w: empty planner output", ErrPlanningFailure)},
	}, nil)

	outcome, err := svc.RunTurn(context.Background(), testRequest())
	require.NoError(t, err)
	require.True(t, outcome.Degraded)
	require.Equal(t, degradedAnswer, outcome.FinalAnswer)
	require.Empty(t, outcome.Steps)
	require.Equal(t, 1, planner.calls)
}

func TestRunTurnToolFailureObserved(t *testing.T) {
	searcher := &fakeSearcher{err: fmt.Errorf("search backend down")}

	svc, planner, _ := newTestService(t, []plannedStep{
		toolStep(ToolWebSearch, `{"query": "anything"}`),
		answerStep("I couldn't look that up right now, but let's keep practicing."),
	}, searcher)

	outcome, err := svc.RunTurn(context.Background(), testRequest())
	require.NoError(t, err)
	require.False(t, outcome.Degraded)

	require.Len(t, planner.observed, 1)
	require.Equal(t, ToolFailed, planner.observed[0].Status)
	require.Contains(t, planner.observed[0].Payload, "Error executing tool")
	require.Contains(t, planner.observed[0].Payload, "search backend down")
}

func TestRunTurnMissingArgsObserved(t *testing.T) {
	svc, planner, _ := newTestService(t, []plannedStep{
		toolStep(ToolWebSearch, ""),
		answerStep("Let me answer from what I already know."),
	}, nil)

	outcome, err := svc.RunTurn(context.Background(), testRequest())
	require.NoError(t, err)
	require.False(t, outcome.Degraded)

	require.Len(t, planner.observed, 1)
	require.Equal(t, ToolFailed, planner.observed[0].Status)
	require.Contains(t, planner.observed[0].Payload, "could not extract tool arguments")
}

func TestRunTurnUpdateUserProfile(t *testing.T) {
	svc, _, memorySvc := newTestService(t, []plannedStep{
		toolStep(ToolUpdateUserProfile, `{"name": "Maria", "location": "Lisbon", "interests_to_add": ["hiking"]}`),
		answerStep("Nice to meet you, Maria from Lisbon!"),
	}, nil)

	outcome, err := svc.RunTurn(context.Background(), testRequest())
	require.NoError(t, err)
	require.False(t, outcome.Degraded)
	require.Equal(t, ToolOK, outcome.Steps[0].Result.Status)

	profile, ok, err := memorySvc.GetProfile("u1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Maria", profile.Name)
	require.Equal(t, "Lisbon", profile.Location)
	require.Equal(t, []string{"hiking"}, profile.Interests)
}

func TestRunTurnSaveGrammarCorrection(t *testing.T) {
	svc, _, memorySvc := newTestService(t, []plannedStep{
		toolStep(ToolSaveGrammarCorrection, `{"original_text": "I have went to the store yesterday", "corrected_text": "I went to the store yesterday", "explanation": "Past simple, not present perfect, with a finished time.", "improvement": "past tense usage"}`),
		answerStep("Good catch on that sentence, here's the fix."),
	}, nil)

	outcome, err := svc.RunTurn(context.Background(), testRequest())
	require.NoError(t, err)
	require.Equal(t, ToolOK, outcome.Steps[0].Result.Status)

	corrections, err := memorySvc.ListCorrections("u1")
	require.NoError(t, err)
	require.Len(t, corrections, 1)
	require.Equal(t, "I have went to the store yesterday", corrections[0].OriginalText)
	require.Equal(t, "I went to the store yesterday", corrections[0].CorrectedText)
	require.Equal(t, "c1", corrections[0].ConversationID)
}

func TestRunTurnCancelled(t *testing.T) {
	svc, planner, _ := newTestService(t, []plannedStep{
		answerStep("never delivered"),
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.RunTurn(ctx, testRequest())
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, planner.calls)
}

func TestExecuteToolUnknownKind(t *testing.T) {
	svc, _, _ := newTestService(t, nil, nil)
	toolSet := svc.createTools(testRequest())

	result := executeTool(context.Background(), toolSet, ToolCall{
		Tool: ToolKind("DeleteEverything"),
		Args: json.RawMessage(`{}`),
	})
	require.Equal(t, ToolFailed, result.Status)
	require.Contains(t, result.Payload, "not recognized")
}

func TestExecuteToolInvalidArgsJSON(t *testing.T) {
	svc, _, _ := newTestService(t, nil, nil)
	toolSet := svc.createTools(testRequest())

	result := executeTool(context.Background(), toolSet, ToolCall{
		Tool: ToolSaveGrammarCorrection,
		Args: json.RawMessage(`{"original_text": ""}`),
	})
	require.Equal(t, ToolFailed, result.Status)
	require.Contains(t, result.Payload, "must not be empty")
}
