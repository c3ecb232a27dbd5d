package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ph4tZ4/social-main/internal/config"
	"github.com/Ph4tZ4/social-main/internal/dispatch"
	"github.com/Ph4tZ4/social-main/internal/domain"
	"github.com/Ph4tZ4/social-main/internal/gateway"
	"github.com/Ph4tZ4/social-main/internal/redis"
	"github.com/Ph4tZ4/social-main/internal/registry"
)

// recordingBroadcaster captures dispatched events for assertion.
type recordingBroadcaster struct {
	mu     sync.Mutex
	rooms  []string
	events []domain.Event
}

func (b *recordingBroadcaster) Broadcast(room string, event domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rooms = append(b.rooms, room)
	b.events = append(b.events, event)
}

type staticFollowers map[string][]string

func (f staticFollowers) ListFollowers(_ context.Context, userID string) ([]string, error) {
	return f[userID], nil
}

type staticPosts map[string]string

func (p staticPosts) FindPostAuthor(_ context.Context, postID string) (string, error) {
	author, ok := p[postID]
	if !ok {
		return "", domain.ErrLookupFailed
	}
	return author, nil
}

type stubVerifier struct{}

func (stubVerifier) VerifyToken(string) (string, error) { return "", domain.ErrInvalidToken }

func testServer(t *testing.T, broadcaster domain.Broadcaster) *Server {
	t.Helper()
	return testServerWithCache(t, broadcaster, nil)
}

func testServerWithCache(t *testing.T, broadcaster domain.Broadcaster, cache *redis.FollowerCache) *Server {
	t.Helper()

	cfg := &config.Config{
		AppEnv:              "test",
		Port:                "0",
		MaxConnections:      100,
		MaxConnectionsPerIP: 10,
		ConnectionRate:      100,
		ConnectionBurst:     100,
	}

	reg := registry.NewRegistry(clockwork.NewRealClock())
	t.Cleanup(func() { reg.Stop() })
	gw := gateway.New(reg, stubVerifier{}, clockwork.NewRealClock())

	dispatcher := dispatch.New(broadcaster, staticPosts{"p1": "author1"}, staticFollowers{"u1": {"f1"}})
	return NewServer(cfg, gw, dispatcher, nil, nil, cache)
}

func TestHandleLiveness(t *testing.T) {
	srv := testServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "registry_connected_clients")
}

func TestHandleMessageEvent(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	srv := testServer(t, broadcaster)

	body := `{"sender_id":"u1","receiver_id":"u2","message":{"content":"hi"}}`
	req := httptest.NewRequest(http.MethodPost, "/internal/events/message", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	require.Len(t, broadcaster.events, 2)
	assert.Equal(t, "chat_u1_u2", broadcaster.rooms[0])
	assert.Equal(t, domain.EventNewMessage, broadcaster.events[0].Name)
	assert.Equal(t, "user_u2", broadcaster.rooms[1])
	assert.Equal(t, domain.EventNewMessageNotification, broadcaster.events[1].Name)
}

func TestHandleCommentEvent(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	srv := testServer(t, broadcaster)

	body := `{"post_id":"p1","comment":{"text":"nice"}}`
	req := httptest.NewRequest(http.MethodPost, "/internal/events/comment", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	require.Len(t, broadcaster.events, 1)
	assert.Equal(t, "user_author1", broadcaster.rooms[0])
}

func TestHandleCommentEvent_UnresolvedPostStillAccepted(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	srv := testServer(t, broadcaster)

	// Delivery is best-effort: a failed lookup never fails the request
	body := `{"post_id":"missing","comment":{"text":"nice"}}`
	req := httptest.NewRequest(http.MethodPost, "/internal/events/comment", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	assert.Empty(t, broadcaster.events)
}

func TestHandleFollowEvent_BadBody(t *testing.T) {
	srv := testServer(t, &recordingBroadcaster{})

	req := httptest.NewRequest(http.MethodPost, "/internal/events/follow", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvalidateFollowerCache(t *testing.T) {
	// Invalidation is best-effort, so an unreachable Redis still answers 204
	dead := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = dead.Close() })
	cache := redis.NewFollowerCache(dead, staticFollowers{})

	srv := testServerWithCache(t, nil, cache)

	req := httptest.NewRequest(http.MethodDelete, "/internal/cache/followers/u1", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestInvalidateFollowerCache_AbsentWithoutRedis(t *testing.T) {
	srv := testServer(t, nil)

	req := httptest.NewRequest(http.MethodDelete, "/internal/cache/followers/u1", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleWebSocket_RejectsWhenAtCapacity(t *testing.T) {
	srv := testServer(t, nil)
	srv.limits = NewConnectionLimits(0, 10, 100, 100)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
