package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lingotutor/app/client/tavily"
	"lingotutor/app/config"
	"lingotutor/app/service/memory"

	"github.com/samber/do"
)

// Searcher is the web search dependency of the WebSearch tool.
type Searcher interface {
	Search(ctx context.Context, query string) ([]tavily.SearchResult, error)
}

// Service is the decision core: a plan-act loop over a closed tool set
// that terminates with a final answer within a bounded iteration count.
type Service struct {
	cfg          *config.Config
	factory      PlannerFactory
	memorySvc    *memory.Service
	searchClient Searcher
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(
		cfg,
		NewPlannerFactory(cfg),
		do.MustInvoke[*memory.Service](di),
		do.MustInvoke[*tavily.Client](di),
	), nil
}

func NewService(cfg *config.Config, factory PlannerFactory, memorySvc *memory.Service, searchClient Searcher) *Service {
	return &Service{
		cfg:          cfg,
		factory:      factory,
		memorySvc:    memorySvc,
		searchClient: searchClient,
	}
}

// RunTurn drives one turn through Planning, Acting and Answering.
// The loop is strictly sequential: a tool must finish (or fail) before the
// next planning call. Reaching the iteration cap forces a degraded answer
// instead of a further planning call.
func (s *Service) RunTurn(ctx context.Context, req TurnRequest) (*TurnOutcome, error) {
	planner := s.factory.NewTurn(req)
	toolSet := s.createTools(req)

	outcome := &TurnOutcome{}

	for turn := 0; turn < s.cfg.Agent.MaxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		step, err := s.plan(ctx, planner)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}

			if errors.Is(err, ErrPlanningFailure) {
				slog.Error("Planning failed, answering degraded",
					"conversation_id", req.ConversationID,
					"turn", turn+1,
					"error", err,
				)

				outcome.FinalAnswer = degradedAnswer
				outcome.Degraded = true
				return outcome, nil
			}

			return nil, fmt.Errorf("planner.Plan: %w", err)
		}

		if step.Kind == StepFinalAnswer {
			outcome.Steps = append(outcome.Steps, StepRecord{Step: step})
			outcome.FinalAnswer = step.Answer
			return outcome, nil
		}

		slog.Debug("Executing tool",
			"conversation_id", req.ConversationID,
			"turn", turn+1,
			"tool", step.ToolCall.Tool,
		)

		start := time.Now()
		result := executeTool(ctx, toolSet, *step.ToolCall)

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		slog.Info("Tool executed",
			"tool", step.ToolCall.Tool,
			"status", result.Status,
			"duration", time.Since(start),
		)

		outcome.Steps = append(outcome.Steps, StepRecord{Step: step, Result: &result})
		planner.Observe(result)
	}

	slog.Warn("Iteration cap reached without a final answer, answering degraded",
		"conversation_id", req.ConversationID,
		"cap", s.cfg.Agent.MaxTurns,
	)

	outcome.FinalAnswer = degradedAnswer
	outcome.Degraded = true

	return outcome, nil
}

func (s *Service) plan(ctx context.Context, planner Planner) (PlanStep, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Agent.PlannerTimeout.Std())
	defer cancel()

	return planner.Plan(ctx)
}
