// Package server hosts the HTTP surface of the realtime core: health and
// metrics endpoints plus the websocket route that feeds the gateway.
package server

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Ph4tZ4/social-main/internal/config"
	"github.com/Ph4tZ4/social-main/internal/dispatch"
	"github.com/Ph4tZ4/social-main/internal/gateway"
	"github.com/Ph4tZ4/social-main/internal/redis"
)

type Server struct {
	echo          *echo.Echo
	config        *config.Config
	gateway       *gateway.Gateway
	dispatcher    *dispatch.Dispatcher
	pool          *pgxpool.Pool
	redis         *redis.Client
	followerCache *redis.FollowerCache
	limits        *ConnectionLimits
}

// NewServer wires the echo instance, middleware and routes. redisClient and
// followerCache may be nil when no Redis is configured.
func NewServer(cfg *config.Config, gw *gateway.Gateway, dispatcher *dispatch.Dispatcher, pool *pgxpool.Pool, redisClient *redis.Client, followerCache *redis.FollowerCache) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	srv := &Server{
		echo:          e,
		config:        cfg,
		gateway:       gw,
		dispatcher:    dispatcher,
		pool:          pool,
		redis:         redisClient,
		followerCache: followerCache,
		limits:        NewConnectionLimits(cfg.MaxConnections, cfg.MaxConnectionsPerIP, cfg.ConnectionRate, cfg.ConnectionBurst),
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
