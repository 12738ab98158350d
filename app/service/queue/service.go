package queue

import (
	"log/slog"

	"github.com/samber/do"
)

const bufferSize = 64

var _ do.Shutdownable = (*Service)(nil)

// Service is the bounded inbox between an input source (console reader)
// and the turn processor. Overflow drops the message rather than blocking
// the producer.
type Service struct {
	queue chan Message
}

type Message struct {
	UserID string
	Text   string
}

func New(_ *do.Injector) (*Service, error) {
	return &Service{
		queue: make(chan Message, bufferSize),
	}, nil
}

func (s *Service) Add(userID, text string) {
	defer func() {
		if r := recover(); r != nil {

		}
	}()

	select {
	case s.queue <- Message{userID, text}:
	default:
		slog.Warn("message queue is full")
	}
}

func (s *Service) Channel() <-chan Message {
	return s.queue
}

func (s *Service) Shutdown() error {
	close(s.queue)

	return nil
}
