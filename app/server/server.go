package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"lingotutor/app/config"
	"lingotutor/app/service/conversation"
	"lingotutor/app/service/history"
	"lingotutor/app/service/memory"
	"lingotutor/app/service/speech"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/do"
)

// Service is the HTTP boundary. It stays thin: handlers validate input,
// call the services and shape the response.
type Service struct {
	cfg             *config.Config
	app             *fiber.App
	conversationSvc *conversation.Service
	historySvc      *history.Service
	memorySvc       *memory.Service
	speechSvc       *speech.Service
}

func New(di *do.Injector) (*Service, error) {
	s := &Service{
		cfg:             do.MustInvoke[*config.Config](di),
		conversationSvc: do.MustInvoke[*conversation.Service](di),
		historySvc:      do.MustInvoke[*history.Service](di),
		memorySvc:       do.MustInvoke[*memory.Service](di),
		speechSvc:       do.MustInvoke[*speech.Service](di),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "lingotutor",
		DisableStartupMessage: true,
		BodyLimit:             32 * 1024 * 1024,
	})

	s.registerRoutes()

	return s, nil
}

func (s *Service) registerRoutes() {
	api := s.app.Group("/api")

	api.Post("/conversations", s.handleStartConversation)
	api.Get("/conversations", s.handleListConversations)
	api.Get("/conversations/:id", s.handleGetConversation)
	api.Delete("/conversations/:id", s.handleDeleteConversation)
	api.Post("/conversations/:id/messages", s.handleSendMessage)

	api.Post("/audio/messages", s.handleAudioMessage)

	api.Get("/users/:id/profile", s.handleGetProfile)
	api.Get("/users/:id/corrections", s.handleListCorrections)
}

func (s *Service) Run(ctx context.Context) {
	go func() {
		if err := s.app.Listen(s.cfg.Server.Listen); err != nil {
			slog.Error("HTTP server failed", "error", err)
		}
	}()

	slog.Info("HTTP server started", "listen", s.cfg.Server.Listen)

	<-ctx.Done()

	if err := s.app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("HTTP server shutdown failed", "error", err)
	}
}

func (s *Service) Close() error {
	return nil
}

func mapError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, history.ErrConversationNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "conversation not found",
		})
	case errors.Is(err, conversation.ErrCancelledTurn):
		// The client went away; the status is mostly for the logs.
		return c.SendStatus(fiber.StatusRequestTimeout)
	default:
		slog.Error("Request failed", "path", c.Path(), "error", err)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}
}
