// Package gateway is the connection-level front door of the realtime core.
//
// It registers each accepted WebSocket with the connection registry, routes
// inbound control operations (join_user_room, join_chat_room, leave_chat_room)
// through the token verifier and room directory, and implements the
// Broadcaster contract the event dispatcher writes to.
package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/Ph4tZ4/social-main/internal/domain"
	"github.com/Ph4tZ4/social-main/internal/logging"
	"github.com/Ph4tZ4/social-main/internal/metrics"
	"github.com/Ph4tZ4/social-main/internal/registry"
	"github.com/Ph4tZ4/social-main/internal/rooms"
)

// Inbound control actions.
const (
	actionJoinUserRoom  = "join_user_room"
	actionJoinChatRoom  = "join_chat_room"
	actionLeaveChatRoom = "leave_chat_room"
)

// controlFrame is the JSON payload of an inbound control operation.
type controlFrame struct {
	Action    string `json:"action"`
	Token     string `json:"token"`
	PartnerID string `json:"partner_id"`
}

// eventFrame is the wire shape of an outbound event.
type eventFrame struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

// Gateway multiplexes live WebSocket connections into rooms.
type Gateway struct {
	registry *registry.Registry
	verifier domain.TokenVerifier
	clock    clockwork.Clock
}

// New creates a gateway on top of the given registry and token verifier.
func New(reg *registry.Registry, verifier domain.TokenVerifier, clock clockwork.Clock) *Gateway {
	return &Gateway{registry: reg, verifier: verifier, clock: clock}
}

// Broadcast implements domain.Broadcaster: it serializes the event and hands
// it to the registry for room fan-out.
func (g *Gateway) Broadcast(room string, event domain.Event) {
	frame, err := json.Marshal(eventFrame{Event: event.Name, Data: event.Data})
	if err != nil {
		logging.WithRoom(room).Error("Failed to marshal event", "event", event.Name, "error", err)
		return
	}
	g.registry.Broadcast(room, frame)
}

// HandleConnection runs the lifecycle of one accepted WebSocket: register,
// pump inbound control frames, unregister exactly once on disconnect.
// Blocks until the connection is gone.
func (g *Gateway) HandleConnection(conn *websocket.Conn) {
	cw := newClientWriter(conn, g.clock)
	connectionID, err := g.registry.Register(cw)
	if err != nil {
		slog.Error("Failed to register connection", "error", err)
		cw.Close("registry unavailable")
		return
	}
	logger := logging.WithConnection(connectionID.String())
	logger.Debug("Client connected", "remote", conn.RemoteAddr().String())

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn("Unexpected close", "error", err)
			}
			break
		}
		cw.updateReadDeadline()
		g.handleControl(connectionID, data)
	}

	g.registry.Unregister(connectionID)
	cw.Close("connection closed")
	logger.Debug("Client disconnected")
}

// handleControl dispatches one inbound control operation. Authentication and
// addressing failures are logged and ignored: the connection stays open but
// unauthenticated, per the silent-drop contract.
func (g *Gateway) handleControl(connectionID uuid.UUID, data []byte) {
	var frame controlFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		slog.Debug("Ignoring malformed control frame", "connection_id", connectionID.String(), "error", err)
		return
	}

	switch frame.Action {
	case actionJoinUserRoom:
		g.joinUserRoom(connectionID, frame)
	case actionJoinChatRoom:
		g.chatRoomOp(connectionID, frame, g.registry.Join)
	case actionLeaveChatRoom:
		g.chatRoomOp(connectionID, frame, g.registry.Leave)
	default:
		slog.Debug("Ignoring unknown control action", "connection_id", connectionID.String(), "action", frame.Action)
	}
}

func (g *Gateway) joinUserRoom(connectionID uuid.UUID, frame controlFrame) {
	if frame.Token == "" {
		g.reject(frame.Action, "missing_token", connectionID, nil)
		return
	}

	userID, err := g.verifier.VerifyToken(frame.Token)
	if err != nil {
		g.reject(frame.Action, "invalid_token", connectionID, err)
		return
	}

	room, err := rooms.Personal(userID)
	if err != nil {
		g.reject(frame.Action, "invalid_room", connectionID, err)
		return
	}

	g.applyRoomOp(frame.Action, connectionID, userID, room, g.registry.Join)
}

func (g *Gateway) chatRoomOp(connectionID uuid.UUID, frame controlFrame, op func(uuid.UUID, string) error) {
	if frame.Token == "" || frame.PartnerID == "" {
		g.reject(frame.Action, "missing_fields", connectionID, nil)
		return
	}

	userID, err := g.verifier.VerifyToken(frame.Token)
	if err != nil {
		g.reject(frame.Action, "invalid_token", connectionID, err)
		return
	}

	room, err := rooms.Conversation(userID, frame.PartnerID)
	if err != nil {
		g.reject(frame.Action, "invalid_room", connectionID, err)
		return
	}

	g.applyRoomOp(frame.Action, connectionID, userID, room, op)
}

func (g *Gateway) applyRoomOp(action string, connectionID uuid.UUID, userID, room string, op func(uuid.UUID, string) error) {
	if err := op(connectionID, room); err != nil {
		// UnknownConnection only arises from a disconnect racing a late
		// control frame; absorb it.
		if errors.Is(err, domain.ErrUnknownConnection) {
			g.reject(action, "unknown_connection", connectionID, err)
		} else {
			g.reject(action, "registry_error", connectionID, err)
		}
		return
	}
	metrics.GatewayControlOpsTotal.WithLabelValues(action, "ok").Inc()
	logging.WithUser(userID).Info("Control operation applied", "action", action, "connection_id", connectionID.String(), "room", room)
}

func (g *Gateway) reject(action, reason string, connectionID uuid.UUID, err error) {
	metrics.GatewayControlOpsTotal.WithLabelValues(action, reason).Inc()
	slog.Debug("Ignoring control operation", "action", action, "reason", reason, "connection_id", connectionID.String(), "error", err)
}
