package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/irc.v4"

	"github.com/ircgate/ircgate/internal/auth"
	"github.com/ircgate/ircgate/internal/gateway"
	"github.com/ircgate/ircgate/internal/history"
	"github.com/ircgate/ircgate/internal/remote"
)

type stubClient struct {
	me     remote.Entity
	chans  []remote.Entity
	events chan remote.Event
}

func (f *stubClient) Whoami(context.Context) (remote.Entity, error)       { return f.me, nil }
func (f *stubClient) DialogList(context.Context) ([]remote.Entity, error) { return nil, nil }
func (f *stubClient) ChannelList(context.Context) ([]remote.Entity, error) {
	return f.chans, nil
}
func (f *stubClient) ContactList(context.Context) ([]remote.Entity, error) { return nil, nil }
func (f *stubClient) ChannelMembers(context.Context, string) ([]remote.Entity, error) {
	return nil, nil
}
func (f *stubClient) ChatMembers(context.Context, string) ([]remote.Entity, error) {
	return nil, nil
}
func (f *stubClient) SendMessage(context.Context, string, string) error { return nil }
func (f *stubClient) Events() <-chan remote.Event                       { return f.events }
func (f *stubClient) Close() error                                      { return nil }

type nopSender struct{}

func (nopSender) SendMessage(*irc.Message) {}

func newTestServer(t *testing.T) (http.Handler, *gateway.Registry, *auth.JWTConfig, *history.Store) {
	t.Helper()

	logger := zerolog.Nop()
	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "ircgate",
		Audience: "admin",
		TTL:      time.Hour,
	}

	hist, err := history.Open(":memory:")
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { _ = hist.Close() })

	registry := gateway.NewRegistry()
	srv := NewServer(ServerConfig{
		Addr:              "127.0.0.1:0",
		ReadHeaderTimeout: time.Second,
		JWT:               jwtConfig,
	}, registry, hist, &logger)

	return srv.Handler, registry, jwtConfig, hist
}

func addSession(t *testing.T, registry *gateway.Registry, account string) *gateway.Session {
	t.Helper()
	client := &stubClient{
		me:     remote.Entity{Kind: remote.KindUser, Username: account},
		chans:  []remote.Entity{{ID: "1", Kind: remote.KindChannel, DisplayName: "news"}},
		events: make(chan remote.Event),
	}
	s, err := gateway.NewSession(context.Background(), client, nopSender{}, gateway.SessionConfig{
		Account:        account,
		ServerName:     "gateway.local",
		ControlChannel: "#control",
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	registry.Add(s)
	return s
}

func TestHealth(t *testing.T) {
	handler, _, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestSessionsRequiresToken(t *testing.T) {
	handler, _, jwtConfig, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status with bad token = %d, want 401", rec.Code)
	}

	token, err := auth.GenerateToken(jwtConfig, "operator")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status with token = %d, want 200", rec.Code)
	}
}

func TestSessionsListsAccounts(t *testing.T) {
	handler, registry, jwtConfig, _ := newTestServer(t)
	addSession(t, registry, "alice")

	token, _ := auth.GenerateToken(jwtConfig, "operator")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)

	var body struct {
		Sessions []SessionInfo `json:"sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Sessions) != 1 || body.Sessions[0].Account != "alice" {
		t.Fatalf("sessions = %+v", body.Sessions)
	}
}

func TestRefreshUnknownSession(t *testing.T) {
	handler, _, jwtConfig, _ := newTestServer(t)

	token, _ := auth.GenerateToken(jwtConfig, "operator")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/ghost/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestSessionHistory(t *testing.T) {
	handler, _, jwtConfig, hist := newTestServer(t)
	if err := hist.Record(context.Background(), history.Entry{
		Account: "alice", Channel: "#news", Sender: "bob", Body: "hi", Direction: history.DirectionIn,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	token, _ := auth.GenerateToken(jwtConfig, "operator")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/sessions/alice/history", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)

	var body struct {
		History []HistoryEntry `json:"history"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.History) != 1 || body.History[0].Body != "hi" {
		t.Fatalf("history = %+v", body.History)
	}
}
