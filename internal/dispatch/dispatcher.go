// Package dispatch translates completed domain actions into realtime events.
//
// Every emit is fire-and-forget: lookup and addressing failures are logged
// and the event dropped, never surfaced to the write path that triggered it.
package dispatch

import (
	"context"

	"github.com/Ph4tZ4/social-main/internal/domain"
	"github.com/Ph4tZ4/social-main/internal/logging"
	"github.com/Ph4tZ4/social-main/internal/metrics"
	"github.com/Ph4tZ4/social-main/internal/rooms"
)

// Dispatcher shapes and broadcasts the five activity event kinds plus post
// updates. The Broadcaster, post lookup and follower lookup are injected;
// a nil Broadcaster falls back to the no-op default so callers can wire the
// dispatcher before the gateway exists.
type Dispatcher struct {
	broadcaster domain.Broadcaster
	posts       domain.PostDirectory
	followers   domain.FollowerDirectory
}

// New creates a dispatcher. broadcaster may be nil (events are dropped until
// a real gateway is attached at construction time of the caller).
func New(broadcaster domain.Broadcaster, posts domain.PostDirectory, followers domain.FollowerDirectory) *Dispatcher {
	if broadcaster == nil {
		broadcaster = domain.NopBroadcaster{}
	}
	return &Dispatcher{broadcaster: broadcaster, posts: posts, followers: followers}
}

// EmitNewMessage broadcasts a new_message event to the conversation room of
// sender and receiver, and a new_message_notification to the receiver's
// personal room only. The second event drives badge/toast notifications for
// receivers who are connected but do not have the conversation open.
func (d *Dispatcher) EmitNewMessage(senderID, receiverID string, messageData map[string]any) {
	chatRoom, err := rooms.Conversation(senderID, receiverID)
	if err != nil {
		d.drop(domain.EventNewMessage, "invalid_room", err, "sender_id", senderID, "receiver_id", receiverID)
		return
	}

	payload := cloneData(messageData)
	payload["sender_id"] = senderID
	payload["receiver_id"] = receiverID
	d.broadcast(chatRoom, domain.Event{Name: domain.EventNewMessage, Data: payload})

	personalRoom, err := rooms.Personal(receiverID)
	if err != nil {
		d.drop(domain.EventNewMessageNotification, "invalid_room", err, "receiver_id", receiverID)
		return
	}

	notification := cloneData(messageData)
	notification["is_from_me"] = false
	notification["partner_id"] = senderID
	d.broadcast(personalRoom, domain.Event{
		Name: domain.EventNewMessageNotification,
		Data: map[string]any{"sender_id": senderID, "message": notification},
	})
}

// EmitNewComment resolves the post's author and broadcasts new_comment to the
// author's personal room. If the post cannot be resolved the event is dropped.
func (d *Dispatcher) EmitNewComment(ctx context.Context, postID string, commentData map[string]any) {
	authorID, err := d.posts.FindPostAuthor(ctx, postID)
	if err != nil {
		d.drop(domain.EventNewComment, "author_lookup", err, "post_id", postID)
		return
	}

	room, err := rooms.Personal(authorID)
	if err != nil {
		d.drop(domain.EventNewComment, "invalid_room", err, "post_id", postID, "author_id", authorID)
		return
	}

	d.broadcast(room, domain.Event{
		Name: domain.EventNewComment,
		Data: map[string]any{"post_id": postID, "comment": commentData},
	})
}

// EmitNewLike broadcasts new_like to the post author's personal room. The
// author id is passed in because the caller already resolved it.
func (d *Dispatcher) EmitNewLike(postID, likerID, postAuthorID string) {
	room, err := rooms.Personal(postAuthorID)
	if err != nil {
		d.drop(domain.EventNewLike, "invalid_room", err, "post_id", postID, "author_id", postAuthorID)
		return
	}

	d.broadcast(room, domain.Event{
		Name: domain.EventNewLike,
		Data: map[string]any{"post_id": postID, "liker_id": likerID},
	})
}

// EmitNewFollow broadcasts new_follow to the followed user's personal room.
func (d *Dispatcher) EmitNewFollow(followerID, followedID string) {
	room, err := rooms.Personal(followedID)
	if err != nil {
		d.drop(domain.EventNewFollow, "invalid_room", err, "followed_id", followedID)
		return
	}

	d.broadcast(room, domain.Event{
		Name: domain.EventNewFollow,
		Data: map[string]any{"follower_id": followerID},
	})
}

// EmitProfileUpdate broadcasts one profile_update per follower to each
// follower's personal room. The follower list is read once per call and may
// contain duplicates; fan-out de-duplicates by recipient room so no follower
// receives the same event twice.
func (d *Dispatcher) EmitProfileUpdate(ctx context.Context, userID string, profileData map[string]any) {
	d.fanOutToFollowers(ctx, domain.EventProfileUpdate, userID, map[string]any{
		"user_id":      userID,
		"profile_data": profileData,
	})
}

// EmitPostUpdate resolves the post's author and broadcasts post_update to
// each of the author's followers' personal rooms, de-duplicated by room.
func (d *Dispatcher) EmitPostUpdate(ctx context.Context, postID string, postData map[string]any) {
	authorID, err := d.posts.FindPostAuthor(ctx, postID)
	if err != nil {
		d.drop(domain.EventPostUpdate, "author_lookup", err, "post_id", postID)
		return
	}

	d.fanOutToFollowers(ctx, domain.EventPostUpdate, authorID, map[string]any{
		"post_id":   postID,
		"post_data": postData,
	})
}

func (d *Dispatcher) fanOutToFollowers(ctx context.Context, event, userID string, data map[string]any) {
	followerIDs, err := d.followers.ListFollowers(ctx, userID)
	if err != nil {
		d.drop(event, "follower_lookup", err, "user_id", userID)
		return
	}

	seen := make(map[string]struct{}, len(followerIDs))
	for _, followerID := range followerIDs {
		room, err := rooms.Personal(followerID)
		if err != nil {
			d.drop(event, "invalid_room", err, "follower_id", followerID)
			continue
		}
		if _, sent := seen[room]; sent {
			continue
		}
		seen[room] = struct{}{}
		d.broadcast(room, domain.Event{Name: event, Data: data})
	}
}

func (d *Dispatcher) broadcast(room string, event domain.Event) {
	metrics.EventsEmittedTotal.WithLabelValues(event.Name).Inc()
	d.broadcaster.Broadcast(room, event)
}

func (d *Dispatcher) drop(event, reason string, err error, args ...any) {
	metrics.EventsDroppedTotal.WithLabelValues(event, reason).Inc()
	logging.WithError(err).Warn("Dropping realtime event", append([]any{"event", event, "reason", reason}, args...)...)
}

// cloneData copies the caller's payload so later broadcasts cannot observe
// mutations and tagged fields never leak back into the caller's map.
func cloneData(data map[string]any) map[string]any {
	cloned := make(map[string]any, len(data)+2)
	for k, v := range data {
		cloned[k] = v
	}
	return cloned
}
