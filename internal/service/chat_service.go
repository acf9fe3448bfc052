package service

import (
	"context"
	"strings"

	"sidequest/internal/models"
	"sidequest/internal/observability"
	"sidequest/internal/repository"
)

const maxMessageLength = 4000

type ChatService struct {
	chatRepo repository.ChatRepository
	userRepo repository.UserRepository
}

// CreateChatInput is the body accepted by POST /api/chat/ and the new_chat event.
type CreateChatInput struct {
	SenderID   uint `json:"sender_id"`
	ReceiverID uint `json:"receiver_id"`
}

func NewChatService(chatRepo repository.ChatRepository, userRepo repository.UserRepository) *ChatService {
	return &ChatService{chatRepo: chatRepo, userRepo: userRepo}
}

// SharedChatID returns the first chat id in a that also appears in b. Callers
// pass a in most-recently-active order, so the freshest shared chat wins.
func SharedChatID(a, b []uint) (uint, bool) {
	if len(a) == 0 || len(b) == 0 {
		return 0, false
	}
	inB := make(map[uint]struct{}, len(b))
	for _, id := range b {
		inB[id] = struct{}{}
	}
	for _, id := range a {
		if _, ok := inB[id]; ok {
			return id, true
		}
	}
	return 0, false
}

// RoomFor resolves the chat two users share.
func (s *ChatService) RoomFor(ctx context.Context, user1, user2 uint) (uint, error) {
	id, ok, err := s.sharedChat(ctx, user1, user2)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, models.NewNotFoundError("Chat between users", [2]uint{user1, user2})
	}
	return id, nil
}

func (s *ChatService) sharedChat(ctx context.Context, user1, user2 uint) (uint, bool, error) {
	ids1, err := s.chatRepo.ChatIDsForUser(ctx, user1)
	if err != nil {
		return 0, false, err
	}
	ids2, err := s.chatRepo.ChatIDsForUser(ctx, user2)
	if err != nil {
		return 0, false, err
	}
	id, ok := SharedChatID(ids1, ids2)
	return id, ok, nil
}

// CreateChat opens a chat between sender and receiver, or returns the one
// they already share. created reports which happened.
func (s *ChatService) CreateChat(ctx context.Context, actorID uint, in CreateChatInput) (chat *models.Chat, created bool, err error) {
	if in.SenderID == 0 || in.ReceiverID == 0 {
		return nil, false, models.NewValidationError("sender_id and receiver_id are required")
	}
	if actorID != in.SenderID {
		return nil, false, models.NewForbiddenError("You can only start chats as yourself")
	}
	if in.SenderID == in.ReceiverID {
		return nil, false, models.NewValidationError("You cannot start a chat with yourself")
	}
	if _, err := s.userRepo.GetByID(ctx, in.SenderID); err != nil {
		return nil, false, err
	}
	if _, err := s.userRepo.GetByID(ctx, in.ReceiverID); err != nil {
		return nil, false, err
	}

	existing, ok, err := s.sharedChat(ctx, in.SenderID, in.ReceiverID)
	if err != nil {
		return nil, false, err
	}
	if ok {
		chat, err := s.chatRepo.GetByID(ctx, existing)
		return chat, false, err
	}

	chat, err = s.chatRepo.Create(ctx, in.SenderID, in.ReceiverID)
	if err != nil {
		return nil, false, err
	}
	return chat, true, nil
}

// JoinRoom resolves the room for a pair the actor belongs to and returns its
// history.
func (s *ChatService) JoinRoom(ctx context.Context, actorID, user1, user2 uint) (uint, []models.Message, error) {
	if actorID != user1 && actorID != user2 {
		return 0, nil, models.NewForbiddenError("You can only join your own chats")
	}
	room, err := s.RoomFor(ctx, user1, user2)
	if err != nil {
		return 0, nil, err
	}
	history, err := s.chatRepo.GetMessages(ctx, room)
	if err != nil {
		return 0, nil, err
	}
	return room, history, nil
}

// PostMessage persists body into chatID and bumps the chat's activity.
func (s *ChatService) PostMessage(ctx context.Context, chatID, senderID uint, body string) (*models.Message, error) {
	if strings.TrimSpace(body) == "" {
		return nil, models.NewValidationError("Message cannot be empty")
	}
	if len(body) > maxMessageLength {
		return nil, models.NewValidationError("Message too long")
	}
	msg := &models.Message{ChatID: chatID, SenderID: senderID, Body: body}
	if err := s.chatRepo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	observability.ChatMessagesTotal.Inc()
	return msg, nil
}

func (s *ChatService) ListChatsForUser(ctx context.Context, actorID, userID uint) ([]models.Chat, error) {
	if actorID != userID {
		return nil, models.NewForbiddenError("You can only list your own chats")
	}
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.chatRepo.ListForUser(ctx, userID)
}

func (s *ChatService) GetChat(ctx context.Context, actorID, id uint) (*models.Chat, error) {
	return s.memberOnly(ctx, actorID, id)
}

// History lists a chat's messages in the order they were stored.
func (s *ChatService) History(ctx context.Context, actorID, chatID uint) ([]models.Message, error) {
	if _, err := s.memberOnly(ctx, actorID, chatID); err != nil {
		return nil, err
	}
	return s.chatRepo.GetMessages(ctx, chatID)
}

func (s *ChatService) DeleteChat(ctx context.Context, actorID, id uint) (*models.Chat, error) {
	chat, err := s.memberOnly(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	if err := s.chatRepo.Delete(ctx, id); err != nil {
		return nil, err
	}
	return chat, nil
}

func (s *ChatService) GetMessage(ctx context.Context, actorID, id uint) (*models.Message, error) {
	msg, err := s.chatRepo.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.memberOnly(ctx, actorID, msg.ChatID); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *ChatService) DeleteMessage(ctx context.Context, actorID, id uint) (*models.Message, error) {
	msg, err := s.chatRepo.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != actorID {
		return nil, models.NewForbiddenError("Only the sender can delete this message")
	}
	if err := s.chatRepo.DeleteMessage(ctx, id); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *ChatService) memberOnly(ctx context.Context, actorID, chatID uint) (*models.Chat, error) {
	chat, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasMember(actorID) {
		return nil, models.NewForbiddenError("You are not a member of this chat")
	}
	return chat, nil
}
