package console

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"lingotutor/app/config"
	"lingotutor/app/service/conversation"
	"lingotutor/app/service/queue"

	"github.com/samber/do"
)

const consoleUserID = "console"

// Service is a local REPL for exercising the tutor without the HTTP
// boundary: stdin lines go through the queue and run as normal turns.
type Service struct {
	cfg             *config.Config
	conversationSvc *conversation.Service
	queueSvc        *queue.Service
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		cfg:             do.MustInvoke[*config.Config](di),
		conversationSvc: do.MustInvoke[*conversation.Service](di),
		queueSvc:        do.MustInvoke[*queue.Service](di),
	}, nil
}

func (s *Service) Run(ctx context.Context) {
	go s.readInput(ctx)

	fmt.Println("Type a message and press enter. Ctrl+C to quit.")

	var conversationID string

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.queueSvc.Channel():
			if !ok {
				return
			}

			start := time.Now()

			reply, err := s.processMessage(ctx, &conversationID, msg)
			if err != nil {
				slog.Error("Failed to process message", "error", err)
				continue
			}

			fmt.Printf("\ntutor> %s\n\n", reply)

			slog.Debug("Processed console message",
				"text", msg.Text,
				"duration", time.Since(start),
			)
		}
	}
}

func (s *Service) processMessage(ctx context.Context, conversationID *string, msg queue.Message) (string, error) {
	if *conversationID == "" {
		result, err := s.conversationSvc.StartConversation(ctx, msg.UserID, msg.Text)
		if err != nil {
			return "", fmt.Errorf("StartConversation: %w", err)
		}

		*conversationID = result.Conversation.ID

		return result.Reply, nil
	}

	reply, err := s.conversationSvc.ProcessTurn(ctx, msg.UserID, *conversationID, msg.Text)
	if err != nil {
		return "", fmt.Errorf("ProcessTurn: %w", err)
	}

	return reply, nil
}

func (s *Service) readInput(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		text := scanner.Text()
		if text == "" {
			continue
		}

		s.queueSvc.Add(consoleUserID, text)
	}
}
