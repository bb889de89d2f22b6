package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/skillcore/skillcore-backend/internal/config"
	"github.com/skillcore/skillcore-backend/internal/event"
	"github.com/skillcore/skillcore-backend/internal/middleware"
	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/response"
	"github.com/skillcore/skillcore-backend/internal/service"
	"github.com/skillcore/skillcore-backend/internal/validator"
	ws "github.com/skillcore/skillcore-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// MessagingHandler handles conversation endpoints. Most of them serve
// staff and guardian tokens alike; the participant kind comes from the
// token itself.
type MessagingHandler struct {
	messagingService *service.MessagingService
	publisher        *event.Publisher
	rdb              *redis.Client
	log              zerolog.Logger
	upgrader         websocket.Upgrader
}

// NewMessagingHandler creates a new MessagingHandler.
func NewMessagingHandler(messagingService *service.MessagingService, publisher *event.Publisher, rdb *redis.Client, log zerolog.Logger, allowedOrigins []string) *MessagingHandler {
	return &MessagingHandler{
		messagingService: messagingService,
		publisher:        publisher,
		rdb:              rdb,
		log:              log.With().Str("component", "messaging_handler").Logger(),
		upgrader:         buildUpgrader(allowedOrigins),
	}
}

// ─── REST ────────────────────────────────────────────────────────────

// CreateConversation godoc
// POST /api/v1/staff/conversations
// Opens a thread with guardians, optionally about a student.
func (h *MessagingHandler) CreateConversation(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.CreateConversationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	conversation, err := h.messagingService.CreateConversation(c.Request.Context(), claims.Scope(), claims.UserID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrGuardianNotLinked):
			response.Fail(c, http.StatusBadRequest, response.ErrGuardianNotLinked)
		case errors.Is(err, pgx.ErrNoRows):
			// A referenced student, guardian, or staff member does not exist.
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	auditAction(c, h.publisher, "conversation.create", "conversation", conversation.ID.String(), gin.H{"subject": conversation.Subject})

	response.Success(c, http.StatusCreated, gin.H{"conversation": conversation})
}

// CreateGuardianConversation godoc
// POST /api/v1/guardian/conversations
// Opens a thread from the portal about one of the guardian's children.
func (h *MessagingHandler) CreateGuardianConversation(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.GuardianCreateConversationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	conversation, err := h.messagingService.CreateGuardianConversation(c.Request.Context(), claims.DistrictID, claims.UserID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrGuardianNotLinked):
			response.Fail(c, http.StatusForbidden, response.ErrGuardianNotLinked)
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	auditAction(c, h.publisher, "conversation.create", "conversation", conversation.ID.String(), gin.H{"subject": conversation.Subject})

	response.Success(c, http.StatusCreated, gin.H{"conversation": conversation})
}

// ListConversations godoc
// GET /api/v1/staff/conversations
// GET /api/v1/guardian/conversations
// Lists the caller's threads, most recently active first.
func (h *MessagingHandler) ListConversations(c *gin.Context) {
	claims := middleware.GetClaims(c)
	kind := model.ParticipantKind(claims.TokenType)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "25"))

	conversations, total, err := h.messagingService.ListConversations(c.Request.Context(), kind, claims.UserID, perPage, (page-1)*perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: int(math.Ceil(float64(total) / float64(perPage))),
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"conversations": conversations}, pagination)
}

// GetConversation godoc
// GET /api/v1/staff/conversations/:id
// GET /api/v1/guardian/conversations/:id
// Returns one thread with its participant list.
func (h *MessagingHandler) GetConversation(c *gin.Context) {
	claims := middleware.GetClaims(c)

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	conversation, err := h.messagingService.GetConversation(c.Request.Context(), claims.Scope(), conversationID, model.ParticipantKind(claims.TokenType), claims.UserID)
	if err != nil {
		h.failConversationError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"conversation": conversation})
}

// ListMessages godoc
// GET /api/v1/staff/conversations/:id/messages
// GET /api/v1/guardian/conversations/:id/messages
// Pages through a thread's messages, newest first.
func (h *MessagingHandler) ListMessages(c *gin.Context) {
	claims := middleware.GetClaims(c)

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))

	messages, total, err := h.messagingService.ListMessages(c.Request.Context(), claims.Scope(), conversationID, model.ParticipantKind(claims.TokenType), claims.UserID, perPage, (page-1)*perPage)
	if err != nil {
		h.failConversationError(c, err)
		return
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: int(math.Ceil(float64(total) / float64(perPage))),
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"messages": messages}, pagination)
}

// SendMessage godoc
// POST /api/v1/staff/conversations/:id/messages
// POST /api/v1/guardian/conversations/:id/messages
// Posts a message over REST. Open sockets get it pushed live.
func (h *MessagingHandler) SendMessage(c *gin.Context) {
	claims := middleware.GetClaims(c)

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SendMessageRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	message, err := h.messagingService.SendMessage(c.Request.Context(), claims.Scope(), conversationID, model.ParticipantKind(claims.TokenType), claims.UserID, &req)
	if err != nil {
		h.failConversationError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"message": message})
}

// MarkRead godoc
// POST /api/v1/staff/conversations/:id/read
// POST /api/v1/guardian/conversations/:id/read
// Moves the caller's read marker to now.
func (h *MessagingHandler) MarkRead(c *gin.Context) {
	claims := middleware.GetClaims(c)

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.messagingService.MarkRead(c.Request.Context(), claims.Scope(), conversationID, model.ParticipantKind(claims.TokenType), claims.UserID); err != nil {
		h.failConversationError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "conversation marked as read"})
}

// failConversationError maps conversation access failures onto API
// error codes.
func (h *MessagingHandler) failConversationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotParticipant):
		response.Fail(c, http.StatusForbidden, response.ErrNotParticipant)
	case errors.Is(err, pgx.ErrNoRows):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// ─── WebSocket ───────────────────────────────────────────────────────

// ConversationStream godoc
// WS /ws/v1/conversations/:id/stream
// Upgrades to WebSocket for live messages, typing, and read receipts.
func (h *MessagingHandler) ConversationStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation ID"})
		return
	}

	kind := model.ParticipantKind(claims.TokenType)
	memberID := claims.UserID

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	ws.Configure(conn)

	// Membership gates the stream. Everything past this point trusts it.
	isMember, err := h.messagingService.IsParticipant(c.Request.Context(), conversationID, kind, memberID)
	if err != nil {
		ws.WriteError(conn, "membership check failed")
		return
	}
	if !isMember {
		ws.WriteError(conn, "not a participant in this conversation")
		return
	}

	// Resolved once; typing indicators reuse it for every frame.
	senderName, err := h.messagingService.MemberName(c.Request.Context(), claims.DistrictID, kind, memberID)
	if err != nil {
		senderName = ""
	}

	wsLog := h.log.With().
		Str("conversation_id", conversationID.String()).
		Str("member_kind", string(kind)).
		Int("member_id", memberID).
		Logger()

	wsLog.Info().Msg("Participant connected")

	// Hijacked connections stop feeding the request context, so the
	// subscription and action handlers run on the background context.
	// The deferred Close ends the forwarder goroutine when the read
	// loop exits.
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, config.CacheKey.ConversationChannel(conversationID.String()))
	defer pubsub.Close()

	// gorilla permits one concurrent writer, and frames come from both
	// the Pub/Sub forwarder and the read loop's direct replies.
	var writeMu sync.Mutex

	go func() {
		for msg := range pubsub.Channel() {
			writeMu.Lock()
			err := ws.WriteRaw(conn, []byte(msg.Payload))
			writeMu.Unlock()
			if err != nil {
				wsLog.Debug().Err(err).Msg("Socket write failed, stopping forwarder")
				return
			}
		}
	}()

	for {
		raw, err := ws.ReadFrame(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		var envelope ws.RequestEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			writeMu.Lock()
			ws.WriteError(conn, "malformed frame")
			writeMu.Unlock()
			continue
		}

		switch envelope.Action {
		case ws.ActionSend:
			h.handleSend(ctx, &writeMu, conn, wsLog, claims.Scope(), conversationID, kind, memberID, raw)
		case ws.ActionTyping:
			h.messagingService.BroadcastTyping(ctx, conversationID, kind, memberID, senderName)
		case ws.ActionRead:
			if err := h.messagingService.MarkRead(ctx, claims.Scope(), conversationID, kind, memberID); err != nil {
				wsLog.Error().Err(err).Msg("Read marker update failed")
				writeMu.Lock()
				ws.WriteError(conn, "read marker update failed")
				writeMu.Unlock()
			}
		case ws.ActionPing:
			writeMu.Lock()
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
			writeMu.Unlock()
		default:
			wsLog.Warn().Str("action", string(envelope.Action)).Msg("Unknown action")
			writeMu.Lock()
			ws.WriteError(conn, "unknown action: "+string(envelope.Action))
			writeMu.Unlock()
		}
	}
}

// handleSend decodes and posts a message frame. Binding tags do not run
// over the socket, so the limits are checked by hand.
func (h *MessagingHandler) handleSend(ctx context.Context, mu *sync.Mutex, conn *websocket.Conn, wsLog zerolog.Logger, scope model.TenantScope, conversationID uuid.UUID, kind model.ParticipantKind, memberID int, raw []byte) {
	var req ws.SendRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		mu.Lock()
		ws.WriteError(conn, "malformed send frame")
		mu.Unlock()
		return
	}

	body := strings.TrimSpace(req.Body)
	if body == "" || len(body) > 5000 {
		mu.Lock()
		ws.WriteError(conn, "body must be between 1 and 5000 characters")
		mu.Unlock()
		return
	}

	// No direct reply on success: the sender's socket receives the
	// message through the conversation channel like everyone else's.
	_, err := h.messagingService.SendMessage(ctx, scope, conversationID, kind, memberID, &model.SendMessageRequest{Body: body, AttachmentURL: req.AttachmentURL})
	if err != nil {
		wsLog.Error().Err(err).Msg("Send over socket failed")
		mu.Lock()
		ws.WriteError(conn, "send failed")
		mu.Unlock()
	}
}
