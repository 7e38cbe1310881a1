package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mattkerbyy/Bubbly-sub001/internal/models"
	"github.com/mattkerbyy/Bubbly-sub001/internal/services"
	chatws "github.com/mattkerbyy/Bubbly-sub001/internal/websocket"
)

type stubChatService struct {
	resolveResult       *models.ConversationView
	resolveErr          error
	conversationsResult []models.ConversationSummary
	conversationsErr    error
	messagesResult      []models.ChatMessage
	messagesTotal       int
	messagesErr         error
	sendResult          *services.ChatDelivery
	sendErr             error
	markedResult        int64
	markedErr           error
	deleteErr           error
	unreadResult        int
	unreadErr           error

	lastCallerID       string
	lastPeerID         string
	lastConversationID int64
	lastPage           int
	lastLimit          int
	lastContent        string
}

func (s *stubChatService) ResolveConversation(_ context.Context, callerID string, otherUserID string) (*models.ConversationView, error) {
	s.lastCallerID = callerID
	s.lastPeerID = otherUserID
	return s.resolveResult, s.resolveErr
}

func (s *stubChatService) ListConversations(_ context.Context, callerID string) ([]models.ConversationSummary, error) {
	s.lastCallerID = callerID
	return s.conversationsResult, s.conversationsErr
}

func (s *stubChatService) ListMessages(_ context.Context, callerID string, conversationID int64, page int, limit int) ([]models.ChatMessage, int, error) {
	s.lastCallerID = callerID
	s.lastConversationID = conversationID
	s.lastPage = page
	s.lastLimit = limit
	return s.messagesResult, s.messagesTotal, s.messagesErr
}

func (s *stubChatService) SendMessage(_ context.Context, senderID string, conversationID int64, content string) (*services.ChatDelivery, error) {
	s.lastCallerID = senderID
	s.lastConversationID = conversationID
	s.lastContent = content
	return s.sendResult, s.sendErr
}

func (s *stubChatService) MarkMessagesRead(_ context.Context, readerID string, conversationID int64) (int64, error) {
	s.lastCallerID = readerID
	s.lastConversationID = conversationID
	return s.markedResult, s.markedErr
}

func (s *stubChatService) DeleteConversation(_ context.Context, requesterID string, conversationID int64) error {
	s.lastCallerID = requesterID
	s.lastConversationID = conversationID
	return s.deleteErr
}

func (s *stubChatService) UnreadSummary(_ context.Context, callerID string) (int, error) {
	s.lastCallerID = callerID
	return s.unreadResult, s.unreadErr
}

func newChatTestApp(service chatApplicationService, userID string) *fiber.App {
	handler := NewChatHandler(service, chatws.NewHub(nil), "secret")

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if userID != "" {
			c.Locals("user_id", userID)
		}
		return c.Next()
	})

	app.Get("/api/v1/conversations", handler.ListConversations)
	app.Post("/api/v1/conversations", handler.ResolveConversation)
	app.Get("/api/v1/conversations/unread-count", handler.UnreadSummary)
	app.Get("/api/v1/conversations/:id/messages", handler.GetMessages)
	app.Post("/api/v1/conversations/:id/messages", handler.SendMessage)
	app.Post("/api/v1/conversations/:id/read", handler.MarkRead)
	app.Delete("/api/v1/conversations/:id", handler.DeleteConversation)

	return app
}

func TestListConversationsReturnsConversationSummaries(t *testing.T) {
	preview := "See you tomorrow"
	lastAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	service := &stubChatService{
		conversationsResult: []models.ConversationSummary{
			{
				Conversation: models.Conversation{
					ID:                 17,
					UserAID:            "u1",
					UserBID:            "u2",
					LastMessageAt:      &lastAt,
					LastMessagePreview: &preview,
				},
				OtherUserID: "u2",
				UnreadCount: 2,
			},
		},
	}
	app := newChatTestApp(service, "u1")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastCallerID != "u1" {
		t.Fatalf("unexpected caller: %q", service.lastCallerID)
	}

	var body struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(body.Conversations) != 1 || body.Conversations[0].UnreadCount != 2 {
		t.Fatalf("unexpected response: %+v", body.Conversations)
	}
	if body.Conversations[0].OtherUserID != "u2" {
		t.Fatalf("expected other user u2, got %q", body.Conversations[0].OtherUserID)
	}
}

func TestResolveConversationReturnsView(t *testing.T) {
	displayName := "Ben"
	service := &stubChatService{
		resolveResult: &models.ConversationView{
			Conversation: models.Conversation{ID: 9, UserAID: "u1", UserBID: "u2"},
			OtherUser:    &models.UserSummary{ID: "u2", DisplayName: &displayName},
			OtherOnline:  true,
			UnreadCount:  0,
		},
	}
	app := newChatTestApp(service, "u1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations", strings.NewReader(`{"peer_id":"u2"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastPeerID != "u2" {
		t.Fatalf("expected peer u2, got %q", service.lastPeerID)
	}

	var body struct {
		Conversation models.ConversationView `json:"conversation"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !body.Conversation.OtherOnline {
		t.Fatalf("expected other_online true: %+v", body.Conversation)
	}
}

func TestGetMessagesReturnsPaginationWithHasMore(t *testing.T) {
	service := &stubChatService{
		messagesResult: []models.ChatMessage{
			{ID: 5, ConversationID: 11, SenderID: "u2", RecipientID: "u1", Content: "Hi", CreatedAt: time.Now().UTC()},
			{ID: 6, ConversationID: 11, SenderID: "u1", RecipientID: "u2", Content: "Hey", CreatedAt: time.Now().UTC()},
		},
		messagesTotal: 12,
	}
	app := newChatTestApp(service, "u1")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/11/messages?page=2&limit=5", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastConversationID != 11 || service.lastPage != 2 || service.lastLimit != 5 {
		t.Fatalf("unexpected paging args: %d %d %d",
			service.lastConversationID, service.lastPage, service.lastLimit)
	}

	var body struct {
		Messages   []models.ChatMessage  `json:"messages"`
		Pagination models.PaginationMeta `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Pagination.Total != 12 || body.Pagination.TotalPages != 3 {
		t.Fatalf("unexpected pagination: %+v", body.Pagination)
	}
	// Page 2 of 5 returned 2 of 12: rows 6..7 seen, more remain.
	if !body.Pagination.HasMore {
		t.Fatalf("expected has_more true: %+v", body.Pagination)
	}
}

func TestSendMessageReturnsCreatedMessage(t *testing.T) {
	service := &stubChatService{
		sendResult: &services.ChatDelivery{
			Conversation: &models.Conversation{ID: 11, UserAID: "u1", UserBID: "u2"},
			Message: &models.ChatMessage{
				ID:             21,
				ConversationID: 11,
				SenderID:       "u1",
				RecipientID:    "u2",
				Content:        "hi",
				CreatedAt:      time.Now().UTC(),
			},
			RecipientID: "u2",
		},
	}
	app := newChatTestApp(service, "u1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/11/messages", strings.NewReader(`{"content":"hi"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastContent != "hi" || service.lastConversationID != 11 {
		t.Fatalf("unexpected send args: %q %d", service.lastContent, service.lastConversationID)
	}
}

func TestMarkReadReportsMarkedCount(t *testing.T) {
	service := &stubChatService{markedResult: 3}
	app := newChatTestApp(service, "u1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/11/read", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		MarkedRead int64 `json:"marked_read"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.MarkedRead != 3 {
		t.Fatalf("expected 3 marked, got %d", body.MarkedRead)
	}
}

func TestDeleteConversationReturnsNoContent(t *testing.T) {
	service := &stubChatService{}
	app := newChatTestApp(service, "u1")

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/conversations/11", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if service.lastConversationID != 11 {
		t.Fatalf("expected conversation 11, got %d", service.lastConversationID)
	}
}

func TestUnreadSummaryReturnsTotal(t *testing.T) {
	service := &stubChatService{unreadResult: 7}
	app := newChatTestApp(service, "u1")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/unread-count", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Unread int `json:"unread"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Unread != 7 {
		t.Fatalf("expected 7 unread, got %d", body.Unread)
	}
}

func TestChatErrorsMapToStatusCodes(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", services.ErrInvalidInput, http.StatusBadRequest},
		{"not found", services.ErrNotFound, http.StatusNotFound},
		{"user not found", services.ErrUserNotFound, http.StatusNotFound},
		{"conflict", services.ErrConflict, http.StatusConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubChatService{sendErr: tc.err}
			app := newChatTestApp(service, "u1")

			req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/11/messages", strings.NewReader(`{"content":"hi"}`))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.StatusCode)
			}
		})
	}
}

func TestMissingIdentityIsUnauthorized(t *testing.T) {
	service := &stubChatService{}
	app := newChatTestApp(service, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestInvalidConversationIDIsBadRequest(t *testing.T) {
	service := &stubChatService{}
	app := newChatTestApp(service, "u1")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/abc/messages", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
