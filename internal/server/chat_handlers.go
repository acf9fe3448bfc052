package server

import (
	"sidequest/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetUserChats handles GET /api/user/:id/chat/
// @Summary List a user's chats
// @Description Most recently active first
// @Tags chats
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} object{chats=[]models.Chat}
// @Failure 403 {object} models.ErrorResponse
// @Router /user/{id}/chat/ [get]
func (s *Server) GetUserChats(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	chats, err := s.chatService.ListChatsForUser(c.UserContext(), actorID(c), userID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"chats": chats})
}

// CreateChat handles POST /api/chat/
// @Summary Start a chat
// @Description Returns the pair's existing chat (200) or a new one (201)
// @Tags chats
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CreateChatInput true "Participants"
// @Success 200 {object} models.Chat
// @Success 201 {object} models.Chat
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /chat/ [post]
func (s *Server) CreateChat(c *fiber.Ctx) error {
	var req service.CreateChatInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	chat, created, err := s.chatService.CreateChat(c.UserContext(), actorID(c), req)
	if err != nil {
		return s.respondError(c, err)
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(chat)
}

// GetChat handles GET /api/chat/:id/
// @Summary Get chat
// @Tags chats
// @Produce json
// @Security BearerAuth
// @Param id path int true "Chat ID"
// @Success 200 {object} models.Chat
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /chat/{id}/ [get]
func (s *Server) GetChat(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	chat, err := s.chatService.GetChat(c.UserContext(), actorID(c), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(chat)
}

// GetChatMessages handles GET /api/chat/:id/message/
// @Summary Chat history
// @Tags chats
// @Produce json
// @Security BearerAuth
// @Param id path int true "Chat ID"
// @Success 200 {object} object{messages=[]models.Message}
// @Failure 403 {object} models.ErrorResponse
// @Router /chat/{id}/message/ [get]
func (s *Server) GetChatMessages(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	messages, err := s.chatService.History(c.UserContext(), actorID(c), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"messages": messages})
}

// DeleteChat handles DELETE /api/chat/:id/
// @Summary Delete chat
// @Tags chats
// @Produce json
// @Security BearerAuth
// @Param id path int true "Chat ID"
// @Success 200 {object} models.Chat
// @Failure 403 {object} models.ErrorResponse
// @Router /chat/{id}/ [delete]
func (s *Server) DeleteChat(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	chat, err := s.chatService.DeleteChat(c.UserContext(), actorID(c), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(chat)
}

// GetMessage handles GET /api/message/:id/
// @Summary Get message
// @Tags chats
// @Produce json
// @Security BearerAuth
// @Param id path int true "Message ID"
// @Success 200 {object} models.Message
// @Failure 403 {object} models.ErrorResponse
// @Router /message/{id}/ [get]
func (s *Server) GetMessage(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	msg, err := s.chatService.GetMessage(c.UserContext(), actorID(c), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(msg)
}

// DeleteMessage handles DELETE /api/message/:id/
// @Summary Delete message
// @Description Only the sender may delete a message
// @Tags chats
// @Produce json
// @Security BearerAuth
// @Param id path int true "Message ID"
// @Success 200 {object} models.Message
// @Failure 403 {object} models.ErrorResponse
// @Router /message/{id}/ [delete]
func (s *Server) DeleteMessage(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	msg, err := s.chatService.DeleteMessage(c.UserContext(), actorID(c), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(msg)
}
