package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"quest-server/internal/model"
	"quest-server/internal/session"
)

// SessionHandler - HTTP-слой игровых сессий: подача действий, поток событий
// комнаты (SSE) и чтение состояния.
type SessionHandler struct {
	manager *session.SessionManager
	logger  *zap.Logger
}

// NewSessionHandler создает обработчик сессий.
func NewSessionHandler(manager *session.SessionManager, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		manager: manager,
		logger:  logger.Named("SessionHandler"),
	}
}

// RegisterRoutes регистрирует маршруты сессий.
func (h *SessionHandler) RegisterRoutes(router *gin.Engine) {
	rooms := router.Group("/api/rooms")
	{
		rooms.POST("/:room_id/actions", h.submitAction)
		rooms.GET("/:room_id/events", h.streamEvents)
		rooms.GET("/:room_id/state", h.getState)
	}
}

type submitActionRequest struct {
	UserID        string `json:"user_id" binding:"required"`
	Username      string `json:"username" binding:"required"`
	Content       string `json:"content" binding:"required"`
	CharacterID   string `json:"character_id"`
	CharacterName string `json:"character_name"`
}

// submitAction принимает действие игрока. Если после приема гейт закрыл раунд,
// раунд обрабатывается в рамках этого же запроса (события уходят по SSE).
func (h *SessionHandler) submitAction(c *gin.Context) {
	roomID := c.Param("room_id")

	var req submitActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса: " + err.Error()})
		return
	}

	action := model.PlayerAction{
		UserID:        req.UserID,
		Username:      req.Username,
		Content:       req.Content,
		CharacterID:   req.CharacterID,
		CharacterName: req.CharacterName,
	}

	advanced, err := h.manager.SubmitAction(c.Request.Context(), roomID, action)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrActionNotAllowed):
			c.JSON(http.StatusForbidden, gin.H{"error": "действие сейчас недоступно"})
		case errors.Is(err, session.ErrBehaviorNotImplemented):
			// Раунд завершен, но запрошенный переход режима недоступен.
			c.JSON(http.StatusAccepted, gin.H{
				"round_processed": true,
				"warning":         "запрошенный режим пока не поддерживается",
			})
		default:
			h.logger.Error("Ошибка обработки действия",
				zap.String("room_id", roomID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "внутренняя ошибка обработки действия"})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"round_processed": advanced})
}

// streamEvents отдает события комнаты как Server-Sent Events до закрытия
// соединения клиентом.
func (h *SessionHandler) streamEvents(c *gin.Context) {
	roomID := c.Param("room_id")

	events, cancel, err := h.manager.Subscribe(c.Request.Context(), roomID)
	if err != nil {
		h.logger.Error("Ошибка подписки на события комнаты",
			zap.String("room_id", roomID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "не удалось открыть поток событий"})
		return
	}
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(event.Type), event)
			return true
		}
	})
}

// getState возвращает снимок состояния комнаты и статус гейта хода.
func (h *SessionHandler) getState(c *gin.Context) {
	roomID := c.Param("room_id")

	state, gate, err := h.manager.Snapshot(c.Request.Context(), roomID)
	if err != nil {
		h.logger.Error("Ошибка чтения состояния комнаты",
			zap.String("room_id", roomID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "не удалось получить состояние комнаты"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"state": state,
		"gate":  gate,
	})
}
