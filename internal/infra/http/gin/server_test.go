package ginserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"rentchat/internal/app/dto"
	authsvc "rentchat/internal/app/services/auth"
	chatsvc "rentchat/internal/app/services/chat"
	"rentchat/internal/infra/config"
	"rentchat/internal/infra/obs"
	"rentchat/internal/infra/security"
	"rentchat/internal/infra/storage/memory"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := obs.NewLogger("test")

	authService := &authsvc.Service{
		Users:     memory.NewUserRepository(),
		Sessions:  memory.NewSessionStore(),
		Passwords: security.PasswordHasher{},
		Tokens:    security.TokenGenerator{},
		Logger:    logger,
	}
	chatService := &chatsvc.Service{
		Store:     memory.NewChatStore(),
		Templates: memory.NewTemplateCatalog(),
		Users:     authService.Users,
		Logger:    logger,
	}
	server := NewServer(config.Config{Env: "test", HTTPAddr: ":0"}, obs.Middleware{Logger: logger}, obs.HealthHandlers{}, Handlers{
		Auth:           AuthHandler{Service: authService, Logger: logger},
		Chat:           ChatHandler{Service: chatService, Logger: logger},
		AuthMiddleware: AuthMiddleware{Service: authService, Logger: logger}.Handle,
	})
	return server.Handler
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func registerUser(t *testing.T, router http.Handler, name string) (int64, string) {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email":    name + "@example.com",
		"name":     name,
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp dto.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.User.ID, resp.Token
}

func createConversation(t *testing.T, router http.Handler, token string, listingID, sellerID int64) dto.Conversation {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/v1/messages/conversations", token, map[string]any{
		"listing_id": listingID,
		"seller_id":  sellerID,
	})
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, rec.Code, rec.Body.String())
	var conv dto.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conv))
	return conv
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/livez", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, router, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthFlow(t *testing.T) {
	router := newTestRouter(t)
	_, token := registerUser(t, router, "alice")

	rec := doJSON(t, router, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me dto.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	require.Equal(t, "alice@example.com", me.Email)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// the session is gone, the token no longer resolves
	rec = doJSON(t, router, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConversationLifecycleOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	buyerID, buyerToken := registerUser(t, router, "alice")
	sellerID, sellerToken := registerUser(t, router, "bob")

	first := createConversation(t, router, buyerToken, 10, sellerID)
	second := createConversation(t, router, buyerToken, 10, sellerID)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, buyerID, first.BuyerID)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/messages/send", buyerToken, map[string]any{
		"conversation_id": first.ID,
		"content":         "hello",
		"message_type":    "text",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// the seller sees one unread until the thread is opened
	rec = doJSON(t, router, http.MethodGet, "/api/v1/messages/unread-count", sellerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var unread dto.UnreadCount
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &unread))
	require.Equal(t, 1, unread.Count)

	path := fmt.Sprintf("/api/v1/messages/%d/messages", first.ID)
	rec = doJSON(t, router, http.MethodGet, path, sellerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []dto.ChatMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 1)
	require.Equal(t, "hello", msgs[0].Content)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/messages/unread-count", sellerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &unread))
	require.Equal(t, 0, unread.Count)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/messages", sellerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var convs []dto.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &convs))
	require.Len(t, convs, 1)
	require.Equal(t, "hello", convs[0].LastMessage)
	require.Equal(t, "alice", convs[0].OtherUserName)

	rec = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/v1/messages/%d", first.ID), buyerToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = doJSON(t, router, http.MethodGet, path, buyerToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConversationErrorMapping(t *testing.T) {
	router := newTestRouter(t)
	buyerID, buyerToken := registerUser(t, router, "alice")
	sellerID, _ := registerUser(t, router, "bob")
	_, outsiderToken := registerUser(t, router, "mallory")

	// no credential at all
	rec := doJSON(t, router, http.MethodGet, "/api/v1/messages", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// talking to yourself is a 400 with the domain's own message
	rec = doJSON(t, router, http.MethodPost, "/api/v1/messages/conversations", buyerToken, map[string]any{
		"listing_id": 10,
		"seller_id":  buyerID,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var errBody struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	require.Equal(t, "chat: cannot start a conversation with yourself", errBody.Error)

	// unknown counterpart
	rec = doJSON(t, router, http.MethodPost, "/api/v1/messages/conversations", buyerToken, map[string]any{
		"listing_id": 10,
		"seller_id":  99999,
	})
	require.Equal(t, http.StatusNotFound, rec.Code)

	conv := createConversation(t, router, buyerToken, 10, sellerID)

	// unknown kind is rejected before it reaches the store
	rec = doJSON(t, router, http.MethodPost, "/api/v1/messages/send", buyerToken, map[string]any{
		"conversation_id": conv.ID,
		"content":         "x",
		"message_type":    "voice",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// empty content
	rec = doJSON(t, router, http.MethodPost, "/api/v1/messages/send", buyerToken, map[string]any{
		"conversation_id": conv.ID,
		"content":         "   ",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// an outsider can neither read nor delete the thread
	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/v1/messages/%d/messages", conv.ID), outsiderToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	rec = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/v1/messages/%d", conv.ID), outsiderToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// missing conversations are 404
	rec = doJSON(t, router, http.MethodGet, "/api/v1/messages/9999/messages", buyerToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTemplatesEndpoint(t *testing.T) {
	router := newTestRouter(t)
	_, token := registerUser(t, router, "alice")

	rec := doJSON(t, router, http.MethodGet, "/api/v1/messages/templates", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var templates []dto.MessageTemplate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &templates))
	require.NotEmpty(t, templates)
	require.NotEmpty(t, templates[0].Text)
}

func TestSendImageWithoutUploader(t *testing.T) {
	router := newTestRouter(t)
	_, buyerToken := registerUser(t, router, "alice")
	sellerID, _ := registerUser(t, router, "bob")
	conv := createConversation(t, router, buyerToken, 10, sellerID)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("conversation_id", fmt.Sprintf("%d", conv.ID)))
	part, err := writer.CreateFormFile("images", "photo.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages/send-image", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+buyerToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// no object storage wired in this setup
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
