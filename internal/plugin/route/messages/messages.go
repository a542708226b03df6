package messages

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/peerchat/chat-store/internal/config"
	"github.com/peerchat/chat-store/internal/lifecycle"
	"github.com/peerchat/chat-store/internal/model"
	registrystore "github.com/peerchat/chat-store/internal/registry/store"
	"github.com/peerchat/chat-store/internal/security"
)

// MountRoutes mounts message routes on the given engine. Reads go straight
// to the store; every mutation goes through the lifecycle engine.
func MountRoutes(r *gin.Engine, store registrystore.ChatStore, engine *lifecycle.Engine, cfg *config.Config, auth gin.HandlerFunc) {
	g := r.Group("/v1", auth)

	g.GET("/chats/:chatId/messages", func(c *gin.Context) {
		listMessages(c, store, cfg)
	})
	g.POST("/chats/:chatId/messages", func(c *gin.Context) {
		sendMessage(c, engine)
	})
	g.POST("/chats/:chatId/messages/:messageId/status", func(c *gin.Context) {
		advanceStatus(c, engine)
	})
	g.PUT("/chats/:chatId/messages/:messageId/reaction", func(c *gin.Context) {
		setReaction(c, engine)
	})
	g.PATCH("/chats/:chatId/messages/:messageId/text", func(c *gin.Context) {
		editText(c, engine)
	})
	g.DELETE("/chats/:chatId/messages/:messageId", func(c *gin.Context) {
		softDelete(c, engine)
	})
}

func listMessages(c *gin.Context, store registrystore.ChatStore, cfg *config.Config) {
	chatID, ok := pathUUID(c, "chatId")
	if !ok {
		return
	}
	limit := cfg.MessagePageSize
	if v := queryInt(c, "limit", 0); v > 0 {
		limit = v
	}
	page, err := store.ListMessages(c.Request.Context(), chatID, queryPtr(c, "afterCursor"), limit)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func sendMessage(c *gin.Context, engine *lifecycle.Engine) {
	userID := security.GetUserID(c)
	chatID, ok := pathUUID(c, "chatId")
	if !ok {
		return
	}
	var req struct {
		Text  string  `json:"text"`
		Media *string `json:"media"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := engine.SendMessage(c.Request.Context(), chatID, userID, req.Text, req.Media)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func advanceStatus(c *gin.Context, engine *lifecycle.Engine) {
	userID := security.GetUserID(c)
	chatID, messageID, ok := pathMessage(c)
	if !ok {
		return
	}
	var req struct {
		Status model.Status `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := engine.AdvanceStatus(c.Request.Context(), chatID, messageID, req.Status, &userID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func setReaction(c *gin.Context, engine *lifecycle.Engine) {
	chatID, messageID, ok := pathMessage(c)
	if !ok {
		return
	}
	var req struct {
		Reaction string `json:"reaction"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := engine.SetReaction(c.Request.Context(), chatID, messageID, req.Reaction)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func editText(c *gin.Context, engine *lifecycle.Engine) {
	chatID, messageID, ok := pathMessage(c)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := engine.EditText(c.Request.Context(), chatID, messageID, req.Text)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func softDelete(c *gin.Context, engine *lifecycle.Engine) {
	chatID, messageID, ok := pathMessage(c)
	if !ok {
		return
	}
	msg, err := engine.SoftDelete(c.Request.Context(), chatID, messageID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func pathMessage(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	chatID, ok := pathUUID(c, "chatId")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	messageID, ok := pathUUID(c, "messageId")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return chatID, messageID, true
}

func pathUUID(c *gin.Context, key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(key))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": "invalid " + key})
		return uuid.Nil, false
	}
	return id, true
}

func handleError(c *gin.Context, err error) {
	var notFound *registrystore.NotFoundError
	var validation *registrystore.ValidationError
	var invalidState *registrystore.InvalidStateError
	var conflict *registrystore.ConcurrentModificationError
	var notReady *registrystore.NotReadyError

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "error": err.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error(), "field": validation.Field})
	case errors.As(err, &invalidState):
		c.JSON(http.StatusConflict, gin.H{"code": "invalid_state", "error": err.Error()})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"code": "concurrent_modification", "error": err.Error()})
	case errors.As(err, &notReady):
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": "not_ready", "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func queryPtr(c *gin.Context, key string) *string {
	v := c.Query(key)
	if v == "" {
		return nil
	}
	return &v
}

func queryInt(c *gin.Context, key string, def int) int {
	i, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return i
}
