package server

import (
	"context"
	"strconv"
	"time"

	"sidequest/internal/models"
	"sidequest/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	wsTicketIssuer   = "sidequest-api"
	wsTicketAudience = "sidequest-ws"
)

var errTicketInvalid = models.NewUnauthorizedError("Invalid or expired WebSocket ticket")

// IssueWSTicket handles POST /api/ws/ticket
// @Summary Issue a chat socket ticket
// @Description Short-lived, single-use credential for GET /api/chat/ws?ticket=...
// @Tags chats
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{ticket=string,expires_in=int}
// @Failure 401 {object} models.ErrorResponse
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	ticket, err := s.signWSTicket(actorID(c), time.Now())
	if err != nil {
		return s.respondError(c, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(s.config.WSTicketTTL().Seconds()),
	})
}

func (s *Server) signWSTicket(userID uint, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		Issuer:    wsTicketIssuer,
		Audience:  jwt.ClaimStrings{wsTicketAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.config.WSTicketTTL())),
		ID:        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.WSTicketSecret))
}

// consumeWSTicket verifies a ticket and returns its user. With Redis the
// ticket's jti is burned on first use, so a replay fails.
func (s *Server) consumeWSTicket(ctx context.Context, raw string) (uint, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(s.config.WSTicketSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(wsTicketIssuer),
		jwt.WithAudience(wsTicketAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return 0, errTicketInvalid
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		return 0, errTicketInvalid
	}

	if s.redis != nil {
		if claims.ID == "" {
			return 0, errTicketInvalid
		}
		ttl := time.Until(claims.ExpiresAt.Time)
		if ttl < time.Second {
			ttl = time.Second
		}
		fresh, err := s.redis.SetNX(ctx, "ws_ticket:used:"+claims.ID, claims.Subject, ttl).Result()
		if err != nil {
			observability.RedisErrorRate.WithLabelValues("ws_ticket").Inc()
			return 0, models.NewInternalError(err)
		}
		if !fresh {
			return 0, models.NewUnauthorizedError("WebSocket ticket already used")
		}
	}

	return uint(userID), nil
}

// WSTicketRequired guards the chat socket: the request must be a websocket
// upgrade carrying a valid ticket in the query string.
func (s *Server) WSTicketRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return models.RespondWithError(c, fiber.StatusUpgradeRequired,
				models.NewValidationError("WebSocket upgrade required"))
		}

		ticket := c.Query("ticket")
		if ticket == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("WebSocket ticket required"))
		}

		userID, err := s.consumeWSTicket(c.UserContext(), ticket)
		if err != nil {
			return s.respondError(c, err)
		}

		c.Locals("userID", userID)
		return c.Next()
	}
}
