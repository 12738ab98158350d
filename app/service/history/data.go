package history

import (
	"errors"
	"time"

	"lingotutor/app/service/agent"
	"lingotutor/app/service/gate"
)

var ErrConversationNotFound = errors.New("conversation not found")

type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ConversationTurn is one finalized request/response cycle: the utterance,
// its annotation, the full step trace and the answer shown to the user.
// Appended only after the turn completes; cancelled turns never get here.
type ConversationTurn struct {
	ID             string             `json:"id"`
	ConversationID string             `json:"conversationId"`
	UserID         string             `json:"userId"`
	Utterance      string             `json:"utterance"`
	Annotation     gate.Annotation    `json:"annotation"`
	Steps          []agent.StepRecord `json:"steps,omitempty"`
	FinalAnswer    string             `json:"finalAnswer"`
	Degraded       bool               `json:"degraded,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
}
