package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"peer-chat/auth"
	"peer-chat/domain/chat"
	"peer-chat/domain/event"
	"peer-chat/errors"
	"peer-chat/observability"
	"peer-chat/services"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	// ConnectionHeader lets a client that posts over HTTP name its own event channel
	// connection, which is then skipped by the cross-device echo.
	ConnectionHeader = "X-Connection-ID"
	// NextCursorHeader carries the cursor of the previous history page, absent on the oldest one.
	NextCursorHeader = "X-Next-Cursor"
)

type StatsSource interface {
	GetLatest() observability.MonitoringStats
}

// ChatHandler serves the chat and message endpoints for the authenticated caller.
type ChatHandler struct {
	service         services.IChatService
	stats           StatsSource
	validate        *validator.Validate
	log             *slog.Logger
	inflightTimeout time.Duration
}

func NewChatHandler(service services.IChatService, stats StatsSource, log *slog.Logger) *ChatHandler {
	return &ChatHandler{
		service:         service,
		stats:           stats,
		validate:        validator.New(),
		log:             log,
		inflightTimeout: 5 * time.Second,
	}
}

type accessChatRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type createGroupRequest struct {
	Name  string   `json:"name" validate:"required"`
	Users []string `json:"users" validate:"required,min=2,dive,required"`
}

type renameRequest struct {
	ChatID   string `json:"chatId" validate:"required"`
	ChatName string `json:"chatName" validate:"required"`
}

type groupMemberRequest struct {
	ChatID string `json:"chatId" validate:"required"`
	UserID string `json:"userId" validate:"required"`
}

type sendMessageRequest struct {
	ChatID  string `json:"chatId" validate:"required"`
	Content string `json:"content"`
}

type markReadRequest struct {
	ChatID string `json:"chatId" validate:"required"`
}

// FetchChats handles GET /chat.
func (h *ChatHandler) FetchChats() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := h.context(c)
		defer cancel()

		chats, err := h.service.FetchChats(ctx, auth.CallerID(c))
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, lo.Ternary(chats == nil, []chat.Chat{}, chats))
	}
}

// AccessChat handles POST /chat.
func (h *ChatHandler) AccessChat() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req accessChatRequest
		if !h.bind(c, &req) {
			return
		}
		ctx, cancel := h.context(c)
		defer cancel()

		result, err := h.service.AccessChat(ctx, auth.CallerID(c), chat.UserID(req.UserID))
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// CreateGroup handles POST /chat/group. The caller becomes the admin.
func (h *ChatHandler) CreateGroup() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createGroupRequest
		if !h.bind(c, &req) {
			return
		}
		ctx, cancel := h.context(c)
		defer cancel()

		result, err := h.service.CreateGroup(ctx, chat.CreateGroupCommand{
			Creator: auth.CallerID(c),
			Name:    req.Name,
			Members: lo.Map(req.Users, func(u string, _ int) chat.UserID { return chat.UserID(u) }),
		})
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// RenameGroup handles PUT /chat/rename.
func (h *ChatHandler) RenameGroup() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req renameRequest
		if !h.bind(c, &req) {
			return
		}
		ctx, cancel := h.context(c)
		defer cancel()

		result, err := h.service.RenameGroup(ctx, chat.MembershipCommand{
			ChatID: chat.ChatID(req.ChatID),
			Actor:  auth.CallerID(c),
			Name:   req.ChatName,
		})
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// AddToGroup handles PUT /chat/groupadd.
func (h *ChatHandler) AddToGroup() gin.HandlerFunc {
	return h.membership(func(ctx context.Context, cmd chat.MembershipCommand) (chat.Chat, error) {
		return h.service.AddToGroup(ctx, cmd)
	})
}

// RemoveFromGroup handles PUT /chat/groupremove.
func (h *ChatHandler) RemoveFromGroup() gin.HandlerFunc {
	return h.membership(func(ctx context.Context, cmd chat.MembershipCommand) (chat.Chat, error) {
		return h.service.RemoveFromGroup(ctx, cmd)
	})
}

func (h *ChatHandler) membership(apply func(context.Context, chat.MembershipCommand) (chat.Chat, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req groupMemberRequest
		if !h.bind(c, &req) {
			return
		}
		ctx, cancel := h.context(c)
		defer cancel()

		result, err := apply(ctx, chat.MembershipCommand{
			ChatID: chat.ChatID(req.ChatID),
			Actor:  auth.CallerID(c),
			Target: chat.UserID(req.UserID),
		})
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// GetMessages handles GET /message/:chatId. Pass the X-Next-Cursor value back
// as ?cursor= to walk further into the past.
func (h *ChatHandler) GetMessages() gin.HandlerFunc {
	return func(c *gin.Context) {
		cmd := chat.GetMessageCommand{
			ChatID: chat.ChatID(c.Param("chatId")),
			UserID: auth.CallerID(c),
		}
		if cursor := c.Query("cursor"); cursor != "" {
			cmd.Cursor = &cursor
		}
		ctx, cancel := h.context(c)
		defer cancel()

		messages, next, err := h.service.GetMessages(ctx, cmd)
		if err != nil {
			h.fail(c, err)
			return
		}
		if next != nil {
			c.Header(NextCursorHeader, *next)
		}
		c.JSON(http.StatusOK, lo.Ternary(messages == nil, []chat.Message{}, messages))
	}
}

// SendMessage handles POST /message. Empty content is left to the domain so the
// caller gets an EmptyContent kind rather than a generic validation failure.
func (h *ChatHandler) SendMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendMessageRequest
		if !h.bind(c, &req) {
			return
		}
		ctx, cancel := h.context(c)
		defer cancel()

		msg, err := h.service.SendMessage(ctx, chat.PostMessageCommand{
			ChatID:   chat.ChatID(req.ChatID),
			SenderID: auth.CallerID(c),
			Content:  req.Content,
			Origin:   c.GetHeader(ConnectionHeader),
		})
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, msg)
	}
}

// MarkRead handles PUT /message/:messageId/read.
func (h *ChatHandler) MarkRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		messageID, err := uuid.Parse(c.Param("messageId"))
		if err != nil {
			h.fail(c, fmt.Errorf("%w: malformed message id", errors.ErrInvalidArgument))
			return
		}
		var req markReadRequest
		if !h.bind(c, &req) {
			return
		}
		ctx, cancel := h.context(c)
		defer cancel()

		msg, err := h.service.MarkRead(ctx, chat.MarkReadCommand{
			ChatID:    chat.ChatID(req.ChatID),
			MessageID: messageID,
			Reader:    auth.CallerID(c),
		})
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, msg)
	}
}

// Stats handles GET /debug/stats.
func (h *ChatHandler) Stats() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, h.stats.GetLatest())
	}
}

func (h *ChatHandler) context(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.inflightTimeout)
}

// bind decodes and validates the JSON body. On failure the response is already written.
func (h *ChatHandler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.fail(c, fmt.Errorf("%w: %s", errors.ErrInvalidArgument, err))
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		h.fail(c, fmt.Errorf("%w: %s", errors.ErrInvalidArgument, err))
		return false
	}
	return true
}

func (h *ChatHandler) fail(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, event.ErrorPayload{Kind: errors.Kind(err), Message: err.Error()})
}
