package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lingotutor/app/config"
	"lingotutor/app/service/agent"
	"lingotutor/app/service/gate"
	"lingotutor/app/service/history"
	"lingotutor/app/service/memory"

	"github.com/samber/do"
)

// ErrCancelledTurn marks a turn abandoned mid-flight (client went away).
// Nothing is persisted for such a turn.
var ErrCancelledTurn = errors.New("turn cancelled")

const titleLimit = 60

// Service runs full conversation turns: gate, decision core, persistence.
// Turns within one conversation are serialized; distinct conversations run
// in parallel.
type Service struct {
	cfg        *config.Config
	gateSvc    *gate.Service
	agentSvc   *agent.Service
	historySvc *history.Service
	memorySvc  *memory.Service

	locks sync.Map // conversation id -> *sync.Mutex
}

func New(di *do.Injector) (*Service, error) {
	return NewService(
		do.MustInvoke[*config.Config](di),
		do.MustInvoke[*gate.Service](di),
		do.MustInvoke[*agent.Service](di),
		do.MustInvoke[*history.Service](di),
		do.MustInvoke[*memory.Service](di),
	), nil
}

func NewService(
	cfg *config.Config,
	gateSvc *gate.Service,
	agentSvc *agent.Service,
	historySvc *history.Service,
	memorySvc *memory.Service,
) *Service {
	return &Service{
		cfg:        cfg,
		gateSvc:    gateSvc,
		agentSvc:   agentSvc,
		historySvc: historySvc,
		memorySvc:  memorySvc,
	}
}

type StartResult struct {
	Conversation history.Conversation
	Reply        string
}

// StartConversation creates a conversation titled after the first message
// and processes that message as its first turn.
func (s *Service) StartConversation(ctx context.Context, userID, text string) (*StartResult, error) {
	title := text
	if len(title) > titleLimit {
		title = title[:titleLimit] + "..."
	}

	conv, err := s.historySvc.CreateConversation(userID, title)
	if err != nil {
		return nil, fmt.Errorf("historySvc.CreateConversation: %w", err)
	}

	reply, err := s.ProcessTurn(ctx, userID, conv.ID, text)
	if err != nil {
		return nil, err
	}

	return &StartResult{
		Conversation: *conv,
		Reply:        reply,
	}, nil
}

// ProcessTurn runs one utterance through the gate and the decision core,
// persists the finished turn and returns the visible answer. A cancelled
// turn persists nothing and surfaces ErrCancelledTurn.
func (s *Service) ProcessTurn(ctx context.Context, userID, conversationID, text string) (string, error) {
	lock := s.conversationLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	if _, _, err := s.historySvc.GetConversation(userID, conversationID); err != nil {
		return "", err
	}

	start := time.Now()

	annotation, err := s.gateSvc.Annotate(ctx, text)
	if err != nil {
		return "", s.turnError("gateSvc.Annotate", ctx, err)
	}

	outcome, err := s.agentSvc.RunTurn(ctx, agent.TurnRequest{
		UserID:         userID,
		ConversationID: conversationID,
		Utterance:      text,
		Annotation:     annotation,
		Profile:        s.memorySvc.FormatProfile(userID),
		History:        s.historySvc.FormatHistory(conversationID),
	})
	if err != nil {
		return "", s.turnError("agentSvc.RunTurn", ctx, err)
	}

	reply := outcome.FinalAnswer
	if len(reply) > s.cfg.Agent.MaxReplyLength {
		slog.Warn("Reply is too long, truncating",
			"conversation_id", conversationID,
			"length", len(reply),
		)
		reply = reply[:s.cfg.Agent.MaxReplyLength]
	}

	if err = s.historySvc.AppendTurn(&history.ConversationTurn{
		ConversationID: conversationID,
		UserID:         userID,
		Utterance:      text,
		Annotation:     *annotation,
		Steps:          outcome.Steps,
		FinalAnswer:    reply,
		Degraded:       outcome.Degraded,
	}); err != nil {
		return "", fmt.Errorf("historySvc.AppendTurn: %w", err)
	}

	slog.Info("Processed turn",
		"conversation_id", conversationID,
		"findings", len(annotation.Findings),
		"steps", len(outcome.Steps),
		"degraded", outcome.Degraded,
		"duration", time.Since(start),
	)

	return reply, nil
}

// turnError maps a cancellation into ErrCancelledTurn and wraps everything
// else.
func (s *Service) turnError(op string, ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %s: %v", ErrCancelledTurn, op, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}

func (s *Service) conversationLock(conversationID string) *sync.Mutex {
	value, _ := s.locks.LoadOrStore(conversationID, &sync.Mutex{})
	return value.(*sync.Mutex)
}
