// Package registry implements the connection registry using the actor pattern.
//
// A single goroutine owns the membership table; all mutation flows through a
// command channel, so join/leave/unregister never interleave destructively.
// Broadcast reads take a snapshot inside the actor before any delivery happens,
// so fan-out never observes a connection mid-removal.
package registry

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/Ph4tZ4/social-main/internal/domain"
	"github.com/Ph4tZ4/social-main/internal/metrics"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
	commandBuffer  = 256
)

// Sink is the outbound half of a registered connection. TrySend must not
// block: it reports false when the connection cannot keep up, which marks
// it for eviction. Close tears the connection down with a reason.
type Sink interface {
	TrySend(data []byte) bool
	Close(reason string)
}

type connection struct {
	sink  Sink
	rooms map[string]struct{}
}

// --- Command types ---

type registryCmd interface{ isRegistryCmd() }

type baseRegistryCmd struct{}

func (baseRegistryCmd) isRegistryCmd() {}

type registerCmd struct {
	baseRegistryCmd
	sink         Sink
	replyChannel chan uuid.UUID
}

type joinCmd struct {
	baseRegistryCmd
	connectionID uuid.UUID
	room         string
	errorChannel chan error
}

type leaveCmd struct {
	baseRegistryCmd
	connectionID uuid.UUID
	room         string
	errorChannel chan error
}

type unregisterCmd struct {
	baseRegistryCmd
	connectionID uuid.UUID
}

type membersOfCmd struct {
	baseRegistryCmd
	room         string
	replyChannel chan []uuid.UUID
}

type broadcastCmd struct {
	baseRegistryCmd
	room string
	data []byte
}

type stopCmd struct {
	baseRegistryCmd
}

// Registry is the authoritative live-membership table.
type Registry struct {
	cmdCh       chan registryCmd
	clock       clockwork.Clock
	connections map[uuid.UUID]*connection
	rooms       map[string]map[uuid.UUID]struct{}
	done        chan struct{}
}

// NewRegistry creates a registry and starts its actor goroutine.
func NewRegistry(clock clockwork.Clock) *Registry {
	r := &Registry{
		cmdCh:       make(chan registryCmd, commandBuffer),
		clock:       clock,
		connections: make(map[uuid.UUID]*connection),
		rooms:       make(map[string]map[uuid.UUID]struct{}),
		done:        make(chan struct{}),
	}
	go r.run()
	return r
}

// Register creates a connection record with an empty room set and returns
// its id. The id is unique among currently live connections.
func (r *Registry) Register(sink Sink) (uuid.UUID, error) {
	replyCh := make(chan uuid.UUID, 1)
	r.cmdCh <- registerCmd{sink: sink, replyChannel: replyCh}

	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case id := <-replyCh:
		return id, nil
	case <-timer.Chan():
		return uuid.Nil, fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Join adds the connection to a room. Joining a room already joined is a
// no-op. Returns ErrUnknownConnection if the id is not currently registered.
func (r *Registry) Join(connectionID uuid.UUID, room string) error {
	errCh := make(chan error, 1)
	r.cmdCh <- joinCmd{connectionID: connectionID, room: room, errorChannel: errCh}
	return r.awaitError(errCh, "join")
}

// Leave removes the connection from a room. Leaving a room not currently
// joined is a no-op. Returns ErrUnknownConnection if the id is not registered.
func (r *Registry) Leave(connectionID uuid.UUID, room string) error {
	errCh := make(chan error, 1)
	r.cmdCh <- leaveCmd{connectionID: connectionID, room: room, errorChannel: errCh}
	return r.awaitError(errCh, "leave")
}

// Unregister removes the connection and all its room memberships in a single
// actor step. Calling it again for the same id is a no-op.
func (r *Registry) Unregister(connectionID uuid.UUID) {
	r.cmdCh <- unregisterCmd{connectionID: connectionID}
}

// MembersOf returns a snapshot of the connections in a room at call time.
// The snapshot may be immediately stale; callers must tolerate that.
func (r *Registry) MembersOf(room string) []uuid.UUID {
	replyCh := make(chan []uuid.UUID, 1)
	r.cmdCh <- membersOfCmd{room: room, replyChannel: replyCh}

	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case members := <-replyCh:
		return members
	case <-timer.Chan():
		slog.Warn("MembersOf timed out", "room", room, "timeout", commandTimeout)
		return nil
	}
}

// Broadcast delivers data to every connection currently in the room.
// Fire-and-forget: a room with no members has no effect. Broadcasts enqueued
// from a single flow are delivered in enqueue order.
func (r *Registry) Broadcast(room string, data []byte) {
	r.cmdCh <- broadcastCmd{room: room, data: data}
}

// Stop shuts the registry down, closing all registered connections.
// Blocks until the actor goroutine has exited or the stop timeout passes.
func (r *Registry) Stop() {
	r.cmdCh <- stopCmd{}

	timer := r.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-r.done:
		slog.Info("Registry stopped gracefully")
	case <-timer.Chan():
		slog.Warn("Registry stop timeout exceeded", "timeout", stopTimeout)
	}
}

func (r *Registry) awaitError(errCh chan error, op string) error {
	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("%s command timed out after %v", op, commandTimeout)
	}
}

func (r *Registry) run() {
	defer close(r.done)

	for cmd := range r.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			r.handleRegister(c)
		case joinCmd:
			c.errorChannel <- r.handleJoin(c.connectionID, c.room)
		case leaveCmd:
			c.errorChannel <- r.handleLeave(c.connectionID, c.room)
		case unregisterCmd:
			r.handleUnregister(c.connectionID)
		case membersOfCmd:
			c.replyChannel <- r.snapshotMembers(c.room)
		case broadcastCmd:
			r.handleBroadcast(c)
		case stopCmd:
			r.handleStop()
			return
		default:
			slog.Warn("Registry received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (r *Registry) handleRegister(c registerCmd) {
	id := uuid.New()
	for {
		if _, taken := r.connections[id]; !taken {
			break
		}
		id = uuid.New()
	}

	r.connections[id] = &connection{sink: c.sink, rooms: make(map[string]struct{})}
	metrics.RegistryConnectedClients.Set(float64(len(r.connections)))
	slog.Debug("Connection registered", "connection_id", id.String(), "total_connections", len(r.connections))
	c.replyChannel <- id
}

func (r *Registry) handleJoin(connectionID uuid.UUID, room string) error {
	conn, exists := r.connections[connectionID]
	if !exists {
		return fmt.Errorf("join %s: %w", connectionID, domain.ErrUnknownConnection)
	}

	if _, joined := conn.rooms[room]; joined {
		return nil
	}

	conn.rooms[room] = struct{}{}
	members, exists := r.rooms[room]
	if !exists {
		members = make(map[uuid.UUID]struct{})
		r.rooms[room] = members
	}
	members[connectionID] = struct{}{}
	metrics.RegistryActiveRooms.Set(float64(len(r.rooms)))
	slog.Debug("Connection joined room", "connection_id", connectionID.String(), "room", room, "room_size", len(members))
	return nil
}

func (r *Registry) handleLeave(connectionID uuid.UUID, room string) error {
	conn, exists := r.connections[connectionID]
	if !exists {
		return fmt.Errorf("leave %s: %w", connectionID, domain.ErrUnknownConnection)
	}

	if _, joined := conn.rooms[room]; !joined {
		return nil
	}

	delete(conn.rooms, room)
	r.removeFromRoom(connectionID, room)
	slog.Debug("Connection left room", "connection_id", connectionID.String(), "room", room)
	return nil
}

func (r *Registry) handleUnregister(connectionID uuid.UUID) {
	conn, exists := r.connections[connectionID]
	if !exists {
		return
	}

	// Membership removal and id invalidation are one actor step: no command
	// can observe the connection in some rooms but not others.
	for room := range conn.rooms {
		r.removeFromRoom(connectionID, room)
	}
	delete(r.connections, connectionID)
	metrics.RegistryConnectedClients.Set(float64(len(r.connections)))
	slog.Debug("Connection unregistered", "connection_id", connectionID.String(), "total_connections", len(r.connections))
}

func (r *Registry) removeFromRoom(connectionID uuid.UUID, room string) {
	members, exists := r.rooms[room]
	if !exists {
		return
	}
	delete(members, connectionID)
	if len(members) == 0 {
		delete(r.rooms, room)
		metrics.RegistryActiveRooms.Set(float64(len(r.rooms)))
	}
}

func (r *Registry) snapshotMembers(room string) []uuid.UUID {
	members := make([]uuid.UUID, 0, len(r.rooms[room]))
	for id := range r.rooms[room] {
		members = append(members, id)
	}
	return members
}

func (r *Registry) handleBroadcast(c broadcastCmd) {
	members, exists := r.rooms[c.room]
	if !exists {
		return
	}

	var slow []uuid.UUID
	delivered := 0
	for id := range members {
		conn := r.connections[id]
		if conn.sink.TrySend(c.data) {
			delivered++
		} else {
			slow = append(slow, id)
		}
	}
	metrics.RegistryBroadcastFanout.Observe(float64(delivered))

	for _, id := range slow {
		slog.Warn("Evicting slow connection", "connection_id", id.String(), "room", c.room)
		metrics.RegistrySlowSinksEvicted.Inc()
		sink := r.connections[id].sink
		r.handleUnregister(id)
		sink.Close("send buffer full")
	}
}

func (r *Registry) handleStop() {
	slog.Info("Registry shutting down", "connections", len(r.connections), "rooms", len(r.rooms))
	for id, conn := range r.connections {
		conn.sink.Close("server shutting down")
		delete(r.connections, id)
	}
	for room := range r.rooms {
		delete(r.rooms, room)
	}
	metrics.RegistryConnectedClients.Set(0)
	metrics.RegistryActiveRooms.Set(0)
}
