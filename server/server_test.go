package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Devcavi19/adal-4naga-app/ai/mock"
	"github.com/Devcavi19/adal-4naga-app/chat"
	"github.com/Devcavi19/adal-4naga-app/core"
	"github.com/Devcavi19/adal-4naga-app/generation"
	"github.com/Devcavi19/adal-4naga-app/retrieval"
	"github.com/Devcavi19/adal-4naga-app/storage/badger"
	"github.com/Devcavi19/adal-4naga-app/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRetriever struct {
	docs []core.ScoredDocument
}

func (s *stubRetriever) Retrieve(_ context.Context, _ string, k int) ([]core.ScoredDocument, error) {
	if len(s.docs) > k {
		return s.docs[:k], nil
	}
	return s.docs, nil
}

type fixture struct {
	server     *Server
	controller *retrieval.Controller
	repos      *badger.MemoryRepositories
}

func newFixture(t *testing.T, generator *mock.MockGenerator) *fixture {
	t.Helper()

	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	controller, err := retrieval.NewController()
	require.NoError(t, err)
	driver, err := generation.NewDriver(generator)
	require.NoError(t, err)
	service, err := chat.NewService(controller, driver, repos.Conversations,
		chat.WithAnalytics(repos.Analytics),
		chat.WithFallback("", 0))
	require.NoError(t, err)

	srv, err := NewServer(service, WithAddr("127.0.0.1:0"))
	require.NoError(t, err)
	return &fixture{server: srv, controller: controller, repos: repos}
}

func (f *fixture) install(t *testing.T) {
	t.Helper()
	docs := []core.ScoredDocument{{
		Document: core.Document{
			ID:       "ord-1",
			Text:     "Ordinance 2019-045 regulates tricycle franchises.",
			Metadata: core.DocumentMetadata{Source: "ordinances.pdf", Page: "3"},
		},
		RawScore: 0.9,
	}}
	fusion, err := retrieval.NewFusion(&stubRetriever{docs: docs}, &stubRetriever{docs: docs})
	require.NoError(t, err)
	f.controller.Install(fusion)
}

func (f *fixture) do(method, path, user, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func decodeRecords(t *testing.T, body string) []map[string]any {
	t.Helper()
	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSuffix(body, "\n"), "\n") {
		var record map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &record), line)
		records = append(records, record)
	}
	return records
}

func TestNewServer(t *testing.T) {
	_, err := NewServer(nil)
	assert.ErrorIs(t, err, ErrServiceRequired)

	f := newFixture(t, mock.NewMockGenerator())
	_, err = NewServer(f.server.service, WithAddr(""))
	assert.Error(t, err)
	_, err = NewServer(f.server.service, WithTimeouts(0, time.Second))
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, mock.NewMockGenerator())

	rec := f.do(http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "not_initialized", decodeJSON(t, rec)["retrieval"])

	f.install(t)
	rec = f.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, "ready", decodeJSON(t, rec)["retrieval"])
}

func TestChat_Streams(t *testing.T) {
	f := newFixture(t, mock.NewMockGenerator("Tricycle ", "franchises ", "are regulated."))
	f.install(t)

	rec := f.do(http.MethodPost, "/api/chat", "user-1", `{"message":"Who regulates tricycles?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, wire.ContentType, rec.Header().Get("Content-Type"))
	assert.True(t, rec.Flushed)

	records := decodeRecords(t, rec.Body.String())
	require.GreaterOrEqual(t, len(records), 3)
	chatID, ok := records[0]["chat_id"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, chatID)

	var answer strings.Builder
	for _, r := range records[1 : len(records)-1] {
		answer.WriteString(r["token"].(string))
	}
	assert.Equal(t, "Tricycle franchises are regulated.", answer.String())

	last := records[len(records)-1]
	assert.Equal(t, true, last["done"])
	assert.EqualValues(t, 3, last["chunks"])

	session, err := f.repos.Conversations.GetSession(context.Background(), chatID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.UserID)
	assert.Equal(t, "Who regulates tricycles?", session.Title)
}

func TestChat_NotInitialized(t *testing.T) {
	f := newFixture(t, mock.NewMockGenerator("unused"))

	rec := f.do(http.MethodPost, "/api/chat", "user-1", `{"message":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	records := decodeRecords(t, rec.Body.String())
	last := records[len(records)-1]
	assert.Equal(t, true, last["done"])
	assert.Equal(t, wire.ErrorSystemUnavailable, last["error"])
}

func TestChat_Rejected(t *testing.T) {
	f := newFixture(t, mock.NewMockGenerator())
	f.install(t)

	tests := []struct {
		name   string
		user   string
		body   string
		status int
		error  string
	}{
		{"missing user", "", `{"message":"hi"}`, http.StatusUnauthorized, "User not authenticated"},
		{"malformed body", "user-1", `{`, http.StatusBadRequest, "invalid request body"},
		{"empty message", "user-1", `{"message":"   "}`, http.StatusBadRequest, "Message cannot be empty"},
		{"blocked", "user-1", `{"message":"how to make a bomb"}`, http.StatusBadRequest, chat.BlockedMessage},
		{"unknown session", "user-1", `{"message":"hi","chat_id":"nope"}`, http.StatusNotFound, "Chat session not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/api/chat", tt.user, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.error, decodeJSON(t, rec)["error"])
		})
	}
}

func TestChat_OtherUsersSession(t *testing.T) {
	f := newFixture(t, mock.NewMockGenerator("ok"))
	f.install(t)

	session, err := f.repos.Conversations.CreateSession(context.Background(), &core.Session{UserID: "owner", Title: "t"})
	require.NoError(t, err)

	rec := f.do(http.MethodPost, "/api/chat", "intruder", `{"message":"hi","chat_id":"`+session.ID+`"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearch(t *testing.T) {
	f := newFixture(t, mock.NewMockGenerator())

	rec := f.do(http.MethodPost, "/api/search", "", `{"query":"tricycle"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	f.install(t)
	rec = f.do(http.MethodPost, "/api/search", "", `{"query":"tricycle","k":3}`)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decodeJSON(t, rec)
	assert.EqualValues(t, 1, out["count"])
	results := out["results"].([]any)
	first := results[0].(map[string]any)
	assert.Equal(t, "ord-1", first["id"])
	assert.Equal(t, "ordinances.pdf", first["metadata"].(map[string]any)["source"])
	assert.Contains(t, first, "hybrid_score")

	rec = f.do(http.MethodPost, "/api/search", "", `{"query":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryAndSession(t *testing.T) {
	f := newFixture(t, mock.NewMockGenerator())
	ctx := context.Background()

	session, err := f.repos.Conversations.CreateSession(ctx, &core.Session{UserID: "user-1", Title: "Budget"})
	require.NoError(t, err)
	_, err = f.repos.Conversations.AddTurns(ctx,
		&core.ConversationTurn{SessionID: session.ID, Role: core.RoleUser, Text: "What is the budget?"},
		&core.ConversationTurn{SessionID: session.ID, Role: core.RoleAssistant, Text: "It is published yearly."},
	)
	require.NoError(t, err)

	rec := f.do(http.MethodGet, "/api/chat/history", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sessions := decodeJSON(t, rec)["sessions"].([]any)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Budget", sessions[0].(map[string]any)["title"])

	rec = f.do(http.MethodGet, "/api/chat/history", "user-2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeJSON(t, rec)["sessions"])

	rec = f.do(http.MethodGet, "/api/chat/history?limit=x", "user-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/chat/"+session.ID, "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	messages := decodeJSON(t, rec)["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].(map[string]any)["role"])

	rec = f.do(http.MethodGet, "/api/chat/"+session.ID, "user-2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsAndNoRoute(t *testing.T) {
	f := newFixture(t, mock.NewMockGenerator())

	rec := f.do(http.MethodGet, "/nowhere", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "route not found", decodeJSON(t, rec)["error"])

	f.do(http.MethodGet, "/healthz", "", "")
	rec = f.do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "adal_http_requests_total")
}

func TestServe_ShutsDownWithContext(t *testing.T) {
	f := newFixture(t, mock.NewMockGenerator())

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.Serve(ctx, listener) }()

	url := "http://" + listener.Addr().String() + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRenameAndDeleteSession(t *testing.T) {
	f := newFixture(t, mock.NewMockGenerator())
	ctx := context.Background()
	session, err := f.repos.Conversations.CreateSession(ctx, &core.Session{UserID: "resident", Title: "New Chat"})
	require.NoError(t, err)
	path := "/api/chat/" + session.ID

	rec := f.do(http.MethodPut, path+"/title", "resident", `{"title":"Curfew hours"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Curfew hours", decodeJSON(t, rec)["title"])

	rec = f.do(http.MethodPut, path+"/title", "resident", `{"title":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Title is required", decodeJSON(t, rec)["error"])

	rec = f.do(http.MethodPut, path+"/title", "intruder", `{"title":"mine"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodDelete, path, "intruder", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodDelete, path, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodDelete, path, "resident", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodGet, path, "resident", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFeedback(t *testing.T) {
	f := newFixture(t, mock.NewMockGenerator())
	ctx := context.Background()
	session, err := f.repos.Conversations.CreateSession(ctx, &core.Session{UserID: "resident", Title: "Fees"})
	require.NoError(t, err)
	_, err = f.repos.Conversations.AddTurns(ctx,
		&core.ConversationTurn{SessionID: session.ID, Role: core.RoleUser, Text: "How much is the permit fee?"},
	)
	require.NoError(t, err)

	body := `{"chat_id":"` + session.ID + `","rating":5}`

	rec := f.do(http.MethodPost, "/api/feedback", "resident", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No bot message found in this session", decodeJSON(t, rec)["error"])

	_, err = f.repos.Conversations.AddTurns(ctx,
		&core.ConversationTurn{SessionID: session.ID, Role: core.RoleAssistant, Text: "It is 500 pesos."},
	)
	require.NoError(t, err)

	rec = f.do(http.MethodPost, "/api/feedback", "resident", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Feedback submitted successfully", decodeJSON(t, rec)["message"])

	stored, err := f.repos.Analytics.GetFeedbackSince(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 5, stored[0].Rating)

	for name, bad := range map[string]string{
		"missing rating":  `{"chat_id":"` + session.ID + `"}`,
		"rating too high": `{"chat_id":"` + session.ID + `","rating":6}`,
		"fractional":      `{"chat_id":"` + session.ID + `","rating":4.5}`,
		"missing chat":    `{"rating":3}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/api/feedback", "resident", bad)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	rec = f.do(http.MethodPost, "/api/feedback", "intruder", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
