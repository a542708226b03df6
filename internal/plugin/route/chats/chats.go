package chats

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/peerchat/chat-store/internal/chat"
	registrystore "github.com/peerchat/chat-store/internal/registry/store"
	"github.com/peerchat/chat-store/internal/security"
)

// MountRoutes mounts chat aggregate routes on the given engine. Called after
// store initialization so the assembler is available.
func MountRoutes(r *gin.Engine, assembler *chat.Assembler, auth gin.HandlerFunc) {
	g := r.Group("/v1", auth)

	g.GET("/chats", func(c *gin.Context) {
		listChats(c, assembler)
	})
	g.POST("/chats", func(c *gin.Context) {
		createChat(c, assembler)
	})
}

func listChats(c *gin.Context, assembler *chat.Assembler) {
	userID := security.GetUserID(c)
	chats, err := assembler.LoadChatsForUser(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": chats})
}

func createChat(c *gin.Context, assembler *chat.Assembler) {
	userID := security.GetUserID(c)
	var req struct {
		ParticipantIDs []string `json:"participantIds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	agg, err := assembler.CreateChat(c.Request.Context(), req.ParticipantIDs, userID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, agg)
}

func handleError(c *gin.Context, err error) {
	var notFound *registrystore.NotFoundError
	var validation *registrystore.ValidationError
	var invalidParticipants *registrystore.InvalidParticipantsError
	var duplicate *registrystore.DuplicateParticipantError
	var notReady *registrystore.NotReadyError

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "error": err.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "error": err.Error(), "field": validation.Field})
	case errors.As(err, &invalidParticipants):
		c.JSON(http.StatusBadRequest, gin.H{"code": "invalid_participants", "error": err.Error()})
	case errors.As(err, &duplicate):
		c.JSON(http.StatusConflict, gin.H{"code": "duplicate_participant", "error": err.Error()})
	case errors.As(err, &notReady):
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": "not_ready", "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
