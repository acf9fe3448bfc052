package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"sidequest/internal/middleware"
	"sidequest/internal/models"
	"sidequest/internal/notifications"
	"sidequest/internal/observability"
	"sidequest/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const chatEventTimeout = 10 * time.Second

// pastHistory is the payload of past_history.
type pastHistory struct {
	Chat []models.Message `json:"chat"`
}

// WebSocketChatHandler handles WebSocket connections for real-time chat
func (s *Server) WebSocketChatHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		// Set by WSTicketRequired
		userID, ok := conn.Locals("userID").(uint)
		if !ok || userID == 0 {
			_ = conn.WriteMessage(websocket.TextMessage, notifications.FailureFrame("unauthorized"))
			_ = conn.Close()
			return
		}

		client := s.chatHub.Register(userID, conn)
		client.IncomingHandler = s.handleChatEvent

		s.logger.Info("chat socket connected", slog.Uint64("user_id", uint64(userID)))
		observability.WebSocketEventsTotal.WithLabelValues(notifications.EventConnect).Inc()
		s.sendConnected(client)

		go client.WritePump()
		client.ReadPump()
	})
}

// handleChatEvent dispatches one inbound frame. Failures go back to the
// sender only, as a failure frame.
func (s *Server) handleChatEvent(c *notifications.Client, message []byte) {
	var frame notifications.Frame
	if err := json.Unmarshal(message, &frame); err != nil {
		observability.WebSocketEventsTotal.WithLabelValues("invalid").Inc()
		c.TrySend(notifications.FailureFrame("Invalid message format"))
		return
	}

	ctx, cancel := context.WithTimeout(middleware.WithUserID(s.baseContext(), c.UserID), chatEventTimeout)
	defer cancel()

	var err error
	switch frame.Event {
	case notifications.EventConnect:
		s.sendConnected(c)
	case notifications.EventNewChat:
		err = s.onNewChat(ctx, c, frame)
	case notifications.EventJoin:
		err = s.onJoin(ctx, c, frame)
	case notifications.EventPrivateMessage:
		err = s.onPrivateMessage(ctx, c, frame)
	default:
		observability.WebSocketEventsTotal.WithLabelValues("unknown").Inc()
		c.TrySend(notifications.FailureFrame("Unknown event"))
		return
	}
	observability.WebSocketEventsTotal.WithLabelValues(frame.Event).Inc()

	if err != nil {
		s.sendFailure(ctx, c, frame.Event, err)
	}
}

func (s *Server) sendConnected(c *notifications.Client) {
	payload, err := notifications.Encode(notifications.EventConnectionSucceeded, "connected!")
	if err != nil {
		return
	}
	c.TrySend(payload)
}

func (s *Server) onNewChat(ctx context.Context, c *notifications.Client, frame notifications.Frame) error {
	var data notifications.NewChatData
	if err := frame.Decode(&data); err != nil {
		return models.NewValidationError("Invalid new_chat payload")
	}

	chat, _, err := s.chatService.CreateChat(ctx, c.UserID, service.CreateChatInput{
		SenderID:   data.SenderID,
		ReceiverID: data.ReceiverID,
	})
	if err != nil {
		return err
	}

	payload, err := notifications.Encode(notifications.EventChatCreated, chat)
	if err != nil {
		return err
	}
	c.TrySend(payload)
	return nil
}

func (s *Server) onJoin(ctx context.Context, c *notifications.Client, frame notifications.Frame) error {
	var data notifications.JoinData
	if err := frame.Decode(&data); err != nil {
		return models.NewValidationError("Invalid join payload")
	}

	room, history, err := s.chatService.JoinRoom(ctx, c.UserID, data.User1ID, data.User2ID)
	if err != nil {
		return err
	}
	s.chatHub.Join(c, room)

	if history == nil {
		history = []models.Message{}
	}
	payload, err := notifications.Encode(notifications.EventPastHistory, pastHistory{Chat: history})
	if err != nil {
		return err
	}
	c.TrySend(payload)
	return nil
}

func (s *Server) onPrivateMessage(ctx context.Context, c *notifications.Client, frame notifications.Frame) error {
	var data notifications.PrivateMessageData
	if err := frame.Decode(&data); err != nil {
		return models.NewValidationError("Invalid private_message payload")
	}
	if data.SenderID != c.UserID {
		return models.NewForbiddenError("You can only send messages as yourself")
	}

	room, err := s.chatService.RoomFor(ctx, data.SenderID, data.ReceiverID)
	if err != nil {
		return err
	}

	// Persist and publish under the room lock so subscribers see messages
	// in the order they were stored.
	unlock := s.chatHub.LockRoom(room)
	defer unlock()

	msg, err := s.chatService.PostMessage(ctx, room, data.SenderID, data.Msg)
	if err != nil {
		return err
	}
	payload, err := notifications.Encode(notifications.EventPrivateMessage, msg)
	if err != nil {
		return err
	}
	if err := s.chatHub.Broadcast(ctx, room, payload); err != nil {
		// The message is stored; members still get it from history.
		s.logger.WarnContext(ctx, "chat broadcast failed",
			slog.Uint64("room_id", uint64(room)),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

func (s *Server) sendFailure(ctx context.Context, c *notifications.Client, event string, err error) {
	msg := "Internal server error"
	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.Code != models.CodeInternal {
		msg = appErr.Message
	} else {
		s.logger.ErrorContext(ctx, "chat event failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
	c.TrySend(notifications.FailureFrame(msg))
}
