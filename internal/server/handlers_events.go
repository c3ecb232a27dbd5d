package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// The API layer runs in a separate process; these endpoints are its narrow
// interface to the dispatcher. Emits are fire-and-forget, so every accepted
// request answers 202 regardless of delivery outcome.

type messageEventRequest struct {
	SenderID   string         `json:"sender_id"`
	ReceiverID string         `json:"receiver_id"`
	Message    map[string]any `json:"message"`
}

type commentEventRequest struct {
	PostID  string         `json:"post_id"`
	Comment map[string]any `json:"comment"`
}

type likeEventRequest struct {
	PostID       string `json:"post_id"`
	LikerID      string `json:"liker_id"`
	PostAuthorID string `json:"post_author_id"`
}

type followEventRequest struct {
	FollowerID string `json:"follower_id"`
	FollowedID string `json:"followed_id"`
}

type profileUpdateEventRequest struct {
	UserID      string         `json:"user_id"`
	ProfileData map[string]any `json:"profile_data"`
}

type postUpdateEventRequest struct {
	PostID   string         `json:"post_id"`
	PostData map[string]any `json:"post_data"`
}

func (s *Server) handleMessageEvent(c echo.Context) error {
	var req messageEventRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	s.dispatcher.EmitNewMessage(req.SenderID, req.ReceiverID, req.Message)
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleCommentEvent(c echo.Context) error {
	var req commentEventRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	s.dispatcher.EmitNewComment(c.Request().Context(), req.PostID, req.Comment)
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleLikeEvent(c echo.Context) error {
	var req likeEventRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	s.dispatcher.EmitNewLike(req.PostID, req.LikerID, req.PostAuthorID)
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleFollowEvent(c echo.Context) error {
	var req followEventRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	s.dispatcher.EmitNewFollow(req.FollowerID, req.FollowedID)
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleProfileUpdateEvent(c echo.Context) error {
	var req profileUpdateEventRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	s.dispatcher.EmitProfileUpdate(c.Request().Context(), req.UserID, req.ProfileData)
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handlePostUpdateEvent(c echo.Context) error {
	var req postUpdateEventRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	s.dispatcher.EmitPostUpdate(c.Request().Context(), req.PostID, req.PostData)
	return c.NoContent(http.StatusAccepted)
}

// handleInvalidateFollowerCache drops the cached follower list for a user.
// The API layer calls this after a follow or unfollow.
func (s *Server) handleInvalidateFollowerCache(c echo.Context) error {
	s.followerCache.Invalidate(c.Request().Context(), c.Param("user_id"))
	return c.NoContent(http.StatusNoContent)
}
