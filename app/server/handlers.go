package server

import (
	"encoding/base64"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type newConversationRequest struct {
	UserID  string `json:"user_id"`
	Content string `json:"content"`
}

type sendMessageRequest struct {
	UserID  string `json:"user_id"`
	Content string `json:"content"`
}

func (s *Service) handleStartConversation(c *fiber.Ctx) error {
	var req newConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	if req.UserID == "" || strings.TrimSpace(req.Content) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id and content are required"})
	}

	result, err := s.conversationSvc.StartConversation(c.UserContext(), req.UserID, req.Content)
	if err != nil {
		return mapError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"conversation_id": result.Conversation.ID,
		"title":           result.Conversation.Title,
		"response":        result.Reply,
	})
}

func (s *Service) handleSendMessage(c *fiber.Ctx) error {
	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	if req.UserID == "" || strings.TrimSpace(req.Content) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id and content are required"})
	}

	reply, err := s.conversationSvc.ProcessTurn(c.UserContext(), req.UserID, c.Params("id"), req.Content)
	if err != nil {
		return mapError(c, err)
	}

	return c.JSON(fiber.Map{
		"response": reply,
	})
}

func (s *Service) handleListConversations(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}

	return c.JSON(fiber.Map{
		"conversations": s.historySvc.ListConversations(userID),
	})
}

func (s *Service) handleGetConversation(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}

	conv, turns, err := s.historySvc.GetConversation(userID, c.Params("id"))
	if err != nil {
		return mapError(c, err)
	}

	return c.JSON(fiber.Map{
		"conversation": conv,
		"turns":        turns,
	})
}

func (s *Service) handleDeleteConversation(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}

	if err := s.historySvc.DeleteConversation(userID, c.Params("id")); err != nil {
		return mapError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// handleAudioMessage accepts a voice clip, transcribes it, runs the turn
// and optionally synthesizes the reply back into audio (?tts=1).
func (s *Service) handleAudioMessage(c *fiber.Ctx) error {
	userID := c.FormValue("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}

	fileHeader, err := c.FormFile("audio")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "audio file is required"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return mapError(c, err)
	}
	defer file.Close()

	ctx := c.UserContext()

	transcript, err := s.speechSvc.Transcribe(ctx, file)
	if err != nil {
		return mapError(c, err)
	}

	var reply string
	conversationID := c.FormValue("conversation_id")

	if conversationID == "" {
		result, err := s.conversationSvc.StartConversation(ctx, userID, transcript)
		if err != nil {
			return mapError(c, err)
		}

		conversationID = result.Conversation.ID
		reply = result.Reply
	} else {
		reply, err = s.conversationSvc.ProcessTurn(ctx, userID, conversationID, transcript)
		if err != nil {
			return mapError(c, err)
		}
	}

	response := fiber.Map{
		"conversation_id": conversationID,
		"transcript":      transcript,
		"response":        reply,
	}

	if c.QueryBool("tts") {
		audio, err := s.speechSvc.Synthesize(ctx, reply)
		if err != nil {
			return mapError(c, err)
		}

		response["audio"] = base64.StdEncoding.EncodeToString(audio)
	}

	return c.JSON(response)
}

func (s *Service) handleGetProfile(c *fiber.Ctx) error {
	profile, ok, err := s.memorySvc.GetProfile(c.Params("id"))
	if err != nil {
		return mapError(c, err)
	}

	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "profile not found"})
	}

	return c.JSON(profile)
}

func (s *Service) handleListCorrections(c *fiber.Ctx) error {
	corrections, err := s.memorySvc.ListCorrections(c.Params("id"))
	if err != nil {
		return mapError(c, err)
	}

	return c.JSON(fiber.Map{
		"corrections": corrections,
	})
}
