package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"lingotutor/app/config"

	"github.com/elliotchance/pie/v2"
	"github.com/google/uuid"
	"github.com/samber/do"
)

// Service is the append-only conversation store. State lives in memory and
// is journaled to JSONL files so restarts keep the transcripts.
type Service struct {
	cfg *config.Config
	mu  sync.RWMutex

	conversations map[string]*Conversation
	turns         map[string][]*ConversationTurn

	conversationsPath string
	turnsPath         string
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(cfg)
}

func NewService(cfg *config.Config) (*Service, error) {
	if err := os.MkdirAll(cfg.Data.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	s := &Service{
		cfg:               cfg,
		conversations:     make(map[string]*Conversation),
		turns:             make(map[string][]*ConversationTurn),
		conversationsPath: filepath.Join(cfg.Data.Dir, "conversations.jsonl"),
		turnsPath:         filepath.Join(cfg.Data.Dir, "turns.jsonl"),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) load() error {
	if err := readLines(s.conversationsPath, func(line string) error {
		var conv Conversation
		if err := json.Unmarshal([]byte(line), &conv); err != nil {
			return fmt.Errorf("failed to parse conversation line: %w", err)
		}

		s.conversations[conv.ID] = &conv
		return nil
	}); err != nil {
		return err
	}

	return readLines(s.turnsPath, func(line string) error {
		var turn ConversationTurn
		if err := json.Unmarshal([]byte(line), &turn); err != nil {
			return fmt.Errorf("failed to parse turn line: %w", err)
		}

		s.turns[turn.ConversationID] = append(s.turns[turn.ConversationID], &turn)
		return nil
	})
}

func (s *Service) CreateConversation(userID, title string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	conv := &Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.conversations[conv.ID] = conv

	if err := s.saveConversations(); err != nil {
		return nil, err
	}

	return conv, nil
}

// AppendTurn journals one finalized turn and bumps the conversation's
// UpdatedAt.
func (s *Service) AppendTurn(turn *ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[turn.ConversationID]
	if !ok {
		return ErrConversationNotFound
	}

	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	file, err := os.OpenFile(s.turnsPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open turns file: %w", err)
	}
	defer file.Close()

	if _, err = file.WriteString(string(data) + "\n"); err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}

	s.turns[turn.ConversationID] = append(s.turns[turn.ConversationID], turn)

	conv.UpdatedAt = turn.CreatedAt

	return s.saveConversations()
}

func (s *Service) GetConversation(userID, conversationID string) (*Conversation, []ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[conversationID]
	if !ok || conv.UserID != userID {
		return nil, nil, ErrConversationNotFound
	}

	stored := s.turns[conversationID]
	turns := make([]ConversationTurn, 0, len(stored))
	for _, t := range stored {
		turns = append(turns, *t)
	}

	convCopy := *conv

	return &convCopy, turns, nil
}

func (s *Service) ListConversations(userID string) []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Conversation
	for _, conv := range s.conversations {
		if conv.UserID == userID {
			result = append(result, *conv)
		}
	}

	return pie.SortUsing(result, func(a, b Conversation) bool {
		return a.UpdatedAt.After(b.UpdatedAt)
	})
}

func (s *Service) DeleteConversation(userID, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok || conv.UserID != userID {
		return ErrConversationNotFound
	}

	delete(s.conversations, conversationID)
	delete(s.turns, conversationID)

	if err := s.saveConversations(); err != nil {
		return err
	}

	return s.saveTurns()
}

const historyFormatLimit = 20

// FormatHistory renders the last turns of a conversation for the planner
// prompt.
func (s *Service) FormatHistory(conversationID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.turns[conversationID]
	if len(turns) == 0 {
		return "No messages yet"
	}

	if len(turns) > historyFormatLimit {
		turns = turns[len(turns)-historyFormatLimit:]
	}

	var builder strings.Builder

	for _, turn := range turns {
		builder.WriteString("user: " + turn.Utterance + "\n")
		builder.WriteString("tutor: " + turn.FinalAnswer + "\n")
	}

	return strings.TrimSpace(builder.String())
}

func (s *Service) saveConversations() error {
	var lines []any
	for _, conv := range s.conversations {
		lines = append(lines, conv)
	}

	return writeLines(s.conversationsPath, lines)
}

func (s *Service) saveTurns() error {
	var lines []any
	for _, turns := range s.turns {
		for _, turn := range turns {
			lines = append(lines, turn)
		}
	}

	return writeLines(s.turnsPath, lines)
}

func readLines(path string, fn func(line string) error) error {
	file, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if err = fn(line); err != nil {
			return err
		}
	}

	if err = scanner.Err(); err != nil {
		return fmt.Errorf("error reading history file: %w", err)
	}

	return nil
}

func writeLines(path string, lines []any) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create/open history file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	for _, value := range lines {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}

		if _, err = writer.WriteString(string(data) + "\n"); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	return writer.Flush()
}
