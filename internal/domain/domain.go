package domain

import (
	"context"
	"log/slog"
)

// --- Event names ---

const (
	EventNewMessage             = "new_message"
	EventNewMessageNotification = "new_message_notification"
	EventNewComment             = "new_comment"
	EventNewLike                = "new_like"
	EventNewFollow              = "new_follow"
	EventProfileUpdate          = "profile_update"
	EventPostUpdate             = "post_update"
)

// Event is an immutable outbound message bound for a single room.
// The gateway serializes it as {"event": <name>, "data": <data>} before
// writing it to each member of the target room.
type Event struct {
	Name string
	Data map[string]any
}

// --- Interfaces ---

// TokenVerifier authenticates socket control operations.
// It maps an opaque credential to the subject user id.
type TokenVerifier interface {
	VerifyToken(credential string) (string, error)
}

// PostDirectory resolves the author of a post.
type PostDirectory interface {
	FindPostAuthor(ctx context.Context, postID string) (string, error)
}

// FollowerDirectory lists the followers of a user at a point in time.
// The returned slice may contain duplicates; callers that fan out must
// de-duplicate by recipient.
type FollowerDirectory interface {
	ListFollowers(ctx context.Context, userID string) ([]string, error)
}

// Broadcaster pushes an event to every connection currently joined to a room.
// Delivery is fire-and-forget: a room with no members drops the event.
type Broadcaster interface {
	Broadcast(room string, event Event)
}

// NopBroadcaster drops every event. It is the default Broadcaster so that
// domain writes never fail because realtime delivery is not wired up yet.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(room string, event Event) {
	slog.Debug("No broadcaster attached, dropping event", "event", event.Name, "room", room)
}
