package memory

import "time"

// Profile is the long-term memory the tutor keeps about one user.
type Profile struct {
	UserID    string   `json:"userId"`
	Name      string   `json:"name,omitempty"`
	Location  string   `json:"location,omitempty"`
	Interests []string `json:"interests,omitempty"`
}

// ProfileUpdate is additive: empty fields leave the profile untouched and
// interests are unioned in, never replaced.
type ProfileUpdate struct {
	Name           string
	Location       string
	InterestsToAdd []string
}

// Correction is one saved grammar correction record.
type Correction struct {
	UserID         string    `json:"userId"`
	ConversationID string    `json:"conversationId"`
	OriginalText   string    `json:"originalText"`
	CorrectedText  string    `json:"correctedText"`
	Explanation    string    `json:"explanation"`
	Improvement    string    `json:"improvement"`
	CreatedAt      time.Time `json:"createdAt"`
}
