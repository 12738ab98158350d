package memory

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"lingotutor/app/config"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
)

// Service is the write-through long-term memory behind the profile and
// correction tools: JSONL files on disk, one line per record. All writes
// are serialized by the mutex, which also covers the per-user write
// ordering the tools rely on.
type Service struct {
	cfg *config.Config
	mu  sync.RWMutex

	profilesPath    string
	correctionsPath string
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
		cfg:             cfg,
		profilesPath:    filepath.Join(cfg.Data.Dir, "profiles.jsonl"),
		correctionsPath: filepath.Join(cfg.Data.Dir, "corrections.jsonl"),
	}

	for _, path := range []string{s.profilesPath, s.correctionsPath} {
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to create memory file: %w", err)
		}
		_ = file.Close()
	}

	return s, nil
}

func (s *Service) loadProfiles() ([]*Profile, error) {
	var profiles []*Profile

	if err := readLines(s.profilesPath, func(line string) error {
		var p Profile
		if err := json.Unmarshal([]byte(line), &p); err != nil {
			return fmt.Errorf("failed to parse JSON line: %w", err)
		}

		profiles = append(profiles, &p)
		return nil
	}); err != nil {
		return nil, err
	}

	return profiles, nil
}

func (s *Service) saveProfiles(profiles []*Profile) error {
	return writeLines(s.profilesPath, len(profiles), func(i int) (any, error) {
		return profiles[i], nil
	})
}

func (s *Service) loadCorrections() ([]*Correction, error) {
	var corrections []*Correction

	if err := readLines(s.correctionsPath, func(line string) error {
		var c Correction
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			return fmt.Errorf("failed to parse JSON line: %w", err)
		}

		corrections = append(corrections, &c)
		return nil
	}); err != nil {
		return nil, err
	}

	return corrections, nil
}

// UpdateProfile merges the update into the user's profile, creating it if
// needed. Interests are a set union, repeated updates are idempotent.
func (s *Service) UpdateProfile(userID string, update ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.loadProfiles()
	if err != nil {
		return err
	}

	var profile *Profile
	for _, p := range profiles {
		if p.UserID == userID {
			profile = p
			break
		}
	}

	if profile == nil {
		profile = &Profile{UserID: userID}
		profiles = append(profiles, profile)
	}

	if update.Name != "" {
		profile.Name = update.Name
	}
	if update.Location != "" {
		profile.Location = update.Location
	}
	if len(update.InterestsToAdd) > 0 {
		profile.Interests = pie.Unique(append(profile.Interests, update.InterestsToAdd...))
	}

	if err = s.saveProfiles(profiles); err != nil {
		return err
	}

	slog.Info("Updated user profile", "user_id", userID)

	return nil
}

// GetProfile returns the user's profile, or false when none is saved yet.
func (s *Service) GetProfile(userID string) (Profile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profiles, err := s.loadProfiles()
	if err != nil {
		return Profile{}, false, err
	}

	for _, p := range profiles {
		if p.UserID == userID {
			return *p, true, nil
		}
	}

	return Profile{}, false, nil
}

// FormatProfile renders the profile for the planner prompt.
func (s *Service) FormatProfile(userID string) string {
	profile, ok, err := s.GetProfile(userID)
	if err != nil {
		slog.Warn("Failed to load profile", "user_id", userID, "error", err)
		return "No profile saved yet."
	}
	if !ok {
		return "No profile saved yet."
	}

	var parts []string
	if profile.Name != "" {
		parts = append(parts, "name: "+profile.Name)
	}
	if profile.Location != "" {
		parts = append(parts, "location: "+profile.Location)
	}
	if len(profile.Interests) > 0 {
		parts = append(parts, "interests: "+strings.Join(profile.Interests, ", "))
	}

	if len(parts) == 0 {
		return "No profile saved yet."
	}

	return strings.Join(parts, "; ")
}

// AddCorrection appends one correction record for the user.
func (s *Service) AddCorrection(userID, conversationID string, correction Correction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	corrections, err := s.loadCorrections()
	if err != nil {
		return err
	}

	correction.UserID = userID
	correction.ConversationID = conversationID
	correction.CreatedAt = time.Now()

	corrections = append(corrections, &correction)

	if err = writeLines(s.correctionsPath, len(corrections), func(i int) (any, error) {
		return corrections[i], nil
	}); err != nil {
		return err
	}

	slog.Info("Saved grammar correction",
		"user_id", userID,
		"conversation_id", conversationID,
	)

	return nil
}

// ListCorrections returns the user's corrections in insertion order.
func (s *Service) ListCorrections(userID string) ([]Correction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	corrections, err := s.loadCorrections()
	if err != nil {
		return nil, err
	}

	result := make([]Correction, 0)
	for _, c := range corrections {
		if c.UserID == userID {
			result = append(result, *c)
		}
	}

	return result, nil
}

func readLines(path string, fn func(line string) error) error {
	file, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open memory file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
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
		return fmt.Errorf("error reading memory file: %w", err)
	}

	return nil
}

func writeLines(path string, count int, item func(i int) (any, error)) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create/open memory file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	for i := 0; i < count; i++ {
		value, err := item(i)
		if err != nil {
			return err
		}

		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}

		if _, err = writer.WriteString(string(data) + "\n"); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	if err = writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}

	return nil
}
