package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Realtime channel (auth happens in-channel per control operation)
	s.echo.GET("/ws", s.handleWebSocket)

	// Dispatcher interface for the API layer (deployed behind the internal network)
	events := s.echo.Group("/internal/events")
	events.POST("/message", s.handleMessageEvent)
	events.POST("/comment", s.handleCommentEvent)
	events.POST("/like", s.handleLikeEvent)
	events.POST("/follow", s.handleFollowEvent)
	events.POST("/profile-update", s.handleProfileUpdateEvent)
	events.POST("/post-update", s.handlePostUpdateEvent)

	// Cache invalidation for the API layer, present only when Redis is wired
	if s.followerCache != nil {
		s.echo.DELETE("/internal/cache/followers/:user_id", s.handleInvalidateFollowerCache)
	}
}
