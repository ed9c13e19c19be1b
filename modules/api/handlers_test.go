package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/example/dm-chat-server/domain/chat"
	domain "github.com/example/dm-chat-server/domain/user"
	"github.com/example/dm-chat-server/modules/auth"
	"github.com/example/dm-chat-server/modules/broadcast"
	"github.com/example/dm-chat-server/modules/presence"
	"github.com/example/dm-chat-server/modules/session"
	"github.com/gofiber/fiber/v2"
)

type memMessages struct {
	mu   sync.Mutex
	msgs map[string]chat.Message
}

func (s *memMessages) Insert(_ context.Context, msg *chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs[msg.ID] = *msg
	return nil
}

func (s *memMessages) FindByID(_ context.Context, id string) (*chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.msgs[id]
	if !ok {
		return nil, chat.ErrMessageNotFound
	}
	return &msg, nil
}

func (s *memMessages) FindByParticipants(_ context.Context, a, b string) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []chat.Message{}
	for _, msg := range s.msgs {
		if (msg.SenderID == a && msg.ReceiverID == b) || (msg.SenderID == b && msg.ReceiverID == a) {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *memMessages) Save(ctx context.Context, msg *chat.Message) error {
	return s.Insert(ctx, msg)
}

func (s *memMessages) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.msgs[id]; !ok {
		return chat.ErrMessageNotFound
	}
	delete(s.msgs, id)
	return nil
}

type testServer struct {
	app     *fiber.App
	auth    *mockAuthPort
	hub     *broadcast.Hub
	tracker *presence.Tracker
	store   *memMessages
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := &mockLogger{}
	ts := &testServer{
		auth:  newMockAuthPort(),
		hub:   broadcast.NewHub(logger),
		store: &memMessages{msgs: make(map[string]chat.Message)},
	}
	ts.tracker = presence.NewTracker(ts.auth, logger)

	manager := session.NewManager(session.Dependencies{
		Verifier: ts.auth,
		Users:    ts.auth,
		Presence: ts.tracker,
		Messages: ts.store,
		Router:   ts.hub,
	}, logger)

	ts.app = fiber.New(fiber.Config{ErrorHandler: customErrorHandler})
	handlers := NewHandlers(ts.auth, ts.tracker, ts.hub, logger)
	setupRoutes(ts.app, handlers, &wsHandler{sessions: manager, logger: logger}, ts.auth)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token, body string) (int, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(data)
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)
	status, body := ts.do(t, "GET", "/health", "", "")
	if status != http.StatusOK || !strings.Contains(body, `"healthy"`) {
		t.Errorf("GET /health = %d %s", status, body)
	}
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		registerFn func(ctx context.Context, req auth.RegisterRequest) (*domain.Profile, error)
		wantStatus int
		wantBody   string
	}{
		{
			name:       "missing fields",
			body:       `{"email":"a@example.com"}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "display_name are required",
		},
		{
			name: "duplicate",
			body: `{"email":"a@example.com","password":"password123","display_name":"A"}`,
			registerFn: func(_ context.Context, _ auth.RegisterRequest) (*domain.Profile, error) {
				return nil, auth.ErrUserExists
			},
			wantStatus: http.StatusConflict,
			wantBody:   "already exists",
		},
		{
			name: "weak password",
			body: `{"email":"a@example.com","password":"short","display_name":"A"}`,
			registerFn: func(_ context.Context, _ auth.RegisterRequest) (*domain.Profile, error) {
				return nil, auth.ErrWeakPassword
			},
			wantStatus: http.StatusBadRequest,
			wantBody:   "at least 8",
		},
		{
			name: "created",
			body: `{"email":"a@example.com","password":"password123","display_name":"A"}`,
			registerFn: func(_ context.Context, req auth.RegisterRequest) (*domain.Profile, error) {
				return &domain.Profile{ID: "new-id", Email: req.Email, DisplayName: req.DisplayName}, nil
			},
			wantStatus: http.StatusCreated,
			wantBody:   `"new-id"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.auth.registerFunc = tt.registerFn

			status, body := ts.do(t, "POST", "/api/v1/auth/register", "", tt.body)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", status, tt.wantStatus, body)
			}
			if !strings.Contains(body, tt.wantBody) {
				t.Errorf("body = %s, want to contain %s", body, tt.wantBody)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)
	ts.auth.loginFunc = func(_ context.Context, email, password string) (*domain.TokenPair, error) {
		if email == "alice@example.com" && password == "password123" {
			return &domain.TokenPair{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 900, TokenType: "Bearer"}, nil
		}
		return nil, auth.ErrInvalidCredentials
	}

	status, body := ts.do(t, "POST", "/api/v1/auth/login", "", `{"email":"alice@example.com","password":"password123"}`)
	if status != http.StatusOK || !strings.Contains(body, `"access_token":"access"`) {
		t.Errorf("login = %d %s", status, body)
	}

	status, body = ts.do(t, "POST", "/api/v1/auth/login", "", `{"email":"alice@example.com","password":"wrong-password"}`)
	if status != http.StatusUnauthorized || !strings.Contains(body, "Invalid email or password") {
		t.Errorf("bad login = %d %s", status, body)
	}

	status, _ = ts.do(t, "POST", "/api/v1/auth/refresh", "", `{"refresh_token":"x"}`)
	if status != http.StatusUnauthorized {
		t.Errorf("refresh status = %d, want 401", status)
	}
}

func TestListUsers_ExcludesCallerAndHidesPushToken(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, "GET", "/api/v1/users", "token-b", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d (%s)", status, body)
	}

	var resp UserListResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Users) != 1 || resp.Users[0].ID != "user-a" {
		t.Errorf("users = %+v, want only user-a", resp.Users)
	}
	if strings.Contains(body, "secret-a") {
		t.Error("response leaks push token")
	}

	if status, _ := ts.do(t, "GET", "/api/v1/users", "", ""); status != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", status)
	}
}

func TestGetUser(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, "GET", "/api/v1/users/user-b", "token-a", "")
	if status != http.StatusOK || !strings.Contains(body, `"display_name":"Bob"`) {
		t.Errorf("GET user-b = %d %s", status, body)
	}

	status, _ = ts.do(t, "GET", "/api/v1/users/nobody", "token-a", "")
	if status != http.StatusNotFound {
		t.Errorf("GET nobody status = %d, want 404", status)
	}
}

func TestUpdatePushToken(t *testing.T) {
	ts := newTestServer(t)

	status, _ := ts.do(t, "PUT", "/api/v1/users/me/push-token", "token-a", `{"push_token":"device-1"}`)
	if status != http.StatusNoContent {
		t.Errorf("status = %d, want 204", status)
	}
	if ts.auth.pushTokens["user-a"] != "device-1" {
		t.Errorf("push token = %q", ts.auth.pushTokens["user-a"])
	}

	status, _ = ts.do(t, "PUT", "/api/v1/users/me/push-token", "token-a", `{"push_token":"  "}`)
	if status != http.StatusBadRequest {
		t.Errorf("blank token status = %d, want 400", status)
	}
}

func TestGetPresence(t *testing.T) {
	ts := newTestServer(t)

	// Not seen by the tracker: falls back to the stored record.
	status, body := ts.do(t, "GET", "/api/v1/users/user-b/presence", "token-a", "")
	if status != http.StatusOK || !strings.Contains(body, `"online":false`) {
		t.Errorf("presence before connect = %d %s", status, body)
	}

	if _, err := ts.tracker.MarkOnline(context.Background(), "user-b"); err != nil {
		t.Fatalf("MarkOnline() error = %v", err)
	}
	status, body = ts.do(t, "GET", "/api/v1/users/user-b/presence", "token-a", "")
	if status != http.StatusOK || !strings.Contains(body, `"online":true`) {
		t.Errorf("presence after connect = %d %s", status, body)
	}
	if ts.auth.presenceUpdateCount() != 1 {
		t.Errorf("presence updates = %d, want 1", ts.auth.presenceUpdateCount())
	}
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	ts := newTestServer(t)
	status, _ := ts.do(t, "GET", "/ws", "token-a", "")
	if status != http.StatusUpgradeRequired {
		t.Errorf("plain GET /ws status = %d, want 426", status)
	}
}
