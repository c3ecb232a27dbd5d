package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ph4tZ4/social-main/internal/domain"
)

// recordingBroadcaster captures every (room, event) pair handed to it.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []broadcastRecord
}

type broadcastRecord struct {
	room  string
	event domain.Event
}

func (b *recordingBroadcaster) Broadcast(room string, event domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastRecord{room: room, event: event})
}

func (b *recordingBroadcaster) records() []broadcastRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]broadcastRecord(nil), b.events...)
}

type stubPosts struct {
	authors map[string]string
}

func (s *stubPosts) FindPostAuthor(_ context.Context, postID string) (string, error) {
	author, ok := s.authors[postID]
	if !ok {
		return "", fmt.Errorf("post %s not found: %w", postID, domain.ErrLookupFailed)
	}
	return author, nil
}

type stubFollowers struct {
	followers map[string][]string
	err       error
}

func (s *stubFollowers) ListFollowers(_ context.Context, userID string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.followers[userID], nil
}

func testDispatcher(posts *stubPosts, followers *stubFollowers) (*Dispatcher, *recordingBroadcaster) {
	if posts == nil {
		posts = &stubPosts{authors: map[string]string{}}
	}
	if followers == nil {
		followers = &stubFollowers{followers: map[string][]string{}}
	}
	broadcaster := &recordingBroadcaster{}
	return New(broadcaster, posts, followers), broadcaster
}

func TestEmitNewMessage(t *testing.T) {
	d, broadcaster := testDispatcher(nil, nil)

	d.EmitNewMessage("u1", "u2", map[string]any{"content": "hi"})

	records := broadcaster.records()
	require.Len(t, records, 2)

	chat := records[0]
	assert.Equal(t, "chat_u1_u2", chat.room)
	assert.Equal(t, domain.EventNewMessage, chat.event.Name)
	assert.Equal(t, "hi", chat.event.Data["content"])
	assert.Equal(t, "u1", chat.event.Data["sender_id"])
	assert.Equal(t, "u2", chat.event.Data["receiver_id"])

	notification := records[1]
	assert.Equal(t, "user_u2", notification.room)
	assert.Equal(t, domain.EventNewMessageNotification, notification.event.Name)
	assert.Equal(t, "u1", notification.event.Data["sender_id"])

	message, ok := notification.event.Data["message"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hi", message["content"])
	assert.Equal(t, false, message["is_from_me"])
	assert.Equal(t, "u1", message["partner_id"])
}

func TestEmitNewMessage_DoesNotMutateCallerData(t *testing.T) {
	d, _ := testDispatcher(nil, nil)

	messageData := map[string]any{"content": "hi"}
	d.EmitNewMessage("u1", "u2", messageData)

	assert.Equal(t, map[string]any{"content": "hi"}, messageData)
}

func TestEmitNewMessage_SelfMessageDropped(t *testing.T) {
	d, broadcaster := testDispatcher(nil, nil)

	d.EmitNewMessage("u1", "u1", map[string]any{"content": "hi"})

	assert.Empty(t, broadcaster.records())
}

func TestEmitNewComment(t *testing.T) {
	posts := &stubPosts{authors: map[string]string{"p1": "author1"}}
	d, broadcaster := testDispatcher(posts, nil)

	d.EmitNewComment(context.Background(), "p1", map[string]any{"text": "nice"})

	records := broadcaster.records()
	require.Len(t, records, 1)
	assert.Equal(t, "user_author1", records[0].room)
	assert.Equal(t, domain.EventNewComment, records[0].event.Name)
	assert.Equal(t, "p1", records[0].event.Data["post_id"])
	assert.Equal(t, map[string]any{"text": "nice"}, records[0].event.Data["comment"])
}

func TestEmitNewComment_UnresolvedPostDroppedSilently(t *testing.T) {
	d, broadcaster := testDispatcher(nil, nil)

	// Must not panic or propagate: notification delivery is best-effort
	d.EmitNewComment(context.Background(), "missing", map[string]any{"text": "nice"})

	assert.Empty(t, broadcaster.records())
}

func TestEmitNewLike(t *testing.T) {
	d, broadcaster := testDispatcher(nil, nil)

	d.EmitNewLike("p1", "liker1", "author1")

	records := broadcaster.records()
	require.Len(t, records, 1)
	assert.Equal(t, "user_author1", records[0].room)
	assert.Equal(t, domain.EventNewLike, records[0].event.Name)
	assert.Equal(t, map[string]any{"post_id": "p1", "liker_id": "liker1"}, records[0].event.Data)
}

func TestEmitNewFollow(t *testing.T) {
	d, broadcaster := testDispatcher(nil, nil)

	d.EmitNewFollow("f1", "u1")

	records := broadcaster.records()
	require.Len(t, records, 1)
	assert.Equal(t, "user_u1", records[0].room)
	assert.Equal(t, domain.EventNewFollow, records[0].event.Name)
	assert.Equal(t, map[string]any{"follower_id": "f1"}, records[0].event.Data)
}

func TestEmitProfileUpdate_FanOutPerFollower(t *testing.T) {
	followers := &stubFollowers{followers: map[string][]string{"u1": {"f1", "f2"}}}
	d, broadcaster := testDispatcher(nil, followers)

	d.EmitProfileUpdate(context.Background(), "u1", map[string]any{"username": "bob"})

	records := broadcaster.records()
	require.Len(t, records, 2)

	targetRooms := []string{records[0].room, records[1].room}
	assert.ElementsMatch(t, []string{"user_f1", "user_f2"}, targetRooms)
	for _, record := range records {
		assert.Equal(t, domain.EventProfileUpdate, record.event.Name)
		assert.Equal(t, "u1", record.event.Data["user_id"])
		assert.Equal(t, map[string]any{"username": "bob"}, record.event.Data["profile_data"])
	}
}

func TestEmitProfileUpdate_DedupesByRecipientRoom(t *testing.T) {
	// A malformed follower list with duplicates must not double-deliver
	followers := &stubFollowers{followers: map[string][]string{"u1": {"f1", "f2", "f1"}}}
	d, broadcaster := testDispatcher(nil, followers)

	d.EmitProfileUpdate(context.Background(), "u1", map[string]any{"username": "bob"})

	records := broadcaster.records()
	require.Len(t, records, 2)
	assert.ElementsMatch(t, []string{"user_f1", "user_f2"}, []string{records[0].room, records[1].room})
}

func TestEmitProfileUpdate_LookupFailureDropped(t *testing.T) {
	followers := &stubFollowers{err: domain.ErrLookupFailed}
	d, broadcaster := testDispatcher(nil, followers)

	d.EmitProfileUpdate(context.Background(), "u1", map[string]any{"username": "bob"})

	assert.Empty(t, broadcaster.records())
}

func TestEmitPostUpdate(t *testing.T) {
	posts := &stubPosts{authors: map[string]string{"p1": "u1"}}
	followers := &stubFollowers{followers: map[string][]string{"u1": {"f1", "f2"}}}
	d, broadcaster := testDispatcher(posts, followers)

	d.EmitPostUpdate(context.Background(), "p1", map[string]any{"caption": "updated"})

	records := broadcaster.records()
	require.Len(t, records, 2)
	assert.ElementsMatch(t, []string{"user_f1", "user_f2"}, []string{records[0].room, records[1].room})
	for _, record := range records {
		assert.Equal(t, domain.EventPostUpdate, record.event.Name)
		assert.Equal(t, "p1", record.event.Data["post_id"])
	}
}

func TestNilBroadcasterFallsBackToNop(t *testing.T) {
	d := New(nil, &stubPosts{authors: map[string]string{}}, &stubFollowers{})

	// Must be a silent no-op, never a panic
	d.EmitNewMessage("u1", "u2", map[string]any{"content": "hi"})
	d.EmitNewLike("p1", "liker1", "author1")
	d.EmitNewFollow("f1", "u1")
}
