package chats_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerchat/chat-store/internal/chat"
	"github.com/peerchat/chat-store/internal/config"
	"github.com/peerchat/chat-store/internal/plugin/route/chats"
	storesqlite "github.com/peerchat/chat-store/internal/plugin/store/sqlite"
	registrymigrate "github.com/peerchat/chat-store/internal/registry/migrate"
	registrystore "github.com/peerchat/chat-store/internal/registry/store"
	"github.com/peerchat/chat-store/internal/security"
	"github.com/peerchat/chat-store/internal/testutil/testdb"
)

func setupChatsRouter(t *testing.T) *gin.Engine {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DBPath = testdb.Path(t)
	ctx := config.WithContext(context.Background(), &cfg)

	_ = storesqlite.ForceImport
	require.NoError(t, registrymigrate.RunAll(ctx))

	loader, err := registrystore.Select("sqlite")
	require.NoError(t, err)
	store, err := loader(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	gin.SetMode(gin.TestMode)
	router := gin.New()
	assembler := chat.NewAssembler(store, nil, 0)
	chats.MountRoutes(router, assembler, security.IdentityMiddleware())
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAndListChats(t *testing.T) {
	router := setupChatsRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/chats", "alice", gin.H{
		"participantIds": []string{"alice", "bob"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		ID             string   `json:"id"`
		ParticipantIDs []string `json:"participantIds"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, []string{"alice", "bob"}, created.ParticipantIDs)

	for _, userID := range []string{"alice", "bob"} {
		w = doJSON(t, router, http.MethodGet, "/v1/chats", userID, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var listed struct {
			Data []struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
		require.Len(t, listed.Data, 1)
		assert.Equal(t, created.ID, listed.Data[0].ID)
	}
}

func TestCreateChatRequiresRequester(t *testing.T) {
	router := setupChatsRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/chats", "alice", gin.H{
		"participantIds": []string{"bob", "carol"},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_participants")
}

func TestCreateChatRejectsSingleParticipant(t *testing.T) {
	router := setupChatsRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/chats", "alice", gin.H{
		"participantIds": []string{"alice", "alice"},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_participants")
}

func TestChatsRequireIdentity(t *testing.T) {
	router := setupChatsRouter(t)

	w := doJSON(t, router, http.MethodGet, "/v1/chats", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
