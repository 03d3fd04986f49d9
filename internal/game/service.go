// internal/game/service.go
package game

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/hungrygod/internal/models"
	"github.com/jason-s-yu/hungrygod/internal/registry"
	"github.com/jason-s-yu/hungrygod/internal/room"
	"github.com/sirupsen/logrus"
)

// TokenIssuer signs and verifies the tokens players use to reclaim their seat.
type TokenIssuer interface {
	Issue(roomID, playerID uuid.UUID) (string, error)
	Verify(token string) (roomID, playerID uuid.UUID, err error)
}

// Service turns transport level actions into engine calls. It keeps the connection
// indices and broadcast groups in step with room membership and answers failed
// actions with an Error event to the caller.
type Service struct {
	engine    *Engine
	lifecycle *room.Lifecycle
	registry  *registry.Registry
	transport Transport
	tokens    TokenIssuer
	logger    *logrus.Logger
}

// NewService wires the action surface. tokens may be nil, in which case no rejoin
// tokens are issued and RejoinRoom always fails.
func NewService(engine *Engine, lc *room.Lifecycle, transport Transport, tokens TokenIssuer, logger *logrus.Logger) *Service {
	return &Service{
		engine:    engine,
		lifecycle: lc,
		registry:  lc.Registry(),
		transport: transport,
		tokens:    tokens,
		logger:    logger,
	}
}

// Engine returns the engine actions are applied to.
func (s *Service) Engine() *Engine { return s.engine }

func (s *Service) fail(connID string, err error) error {
	s.transport.Send(connID, errorEvent(err))
	return err
}

// CreateRoom opens a new room and subscribes the creating connection, the shared
// display, to its broadcasts.
func (s *Service) CreateRoom(connID string) (*models.Room, error) {
	r, err := s.lifecycle.CreateRoom()
	if err != nil {
		s.logger.WithError(err).Error("failed to create room")
		return nil, s.fail(connID, err)
	}
	s.detach(connID, uuid.Nil, uuid.Nil)
	s.registry.MapConnectionToRoom(connID, r.ID)
	s.transport.AddToGroup(r.ID, connID)
	s.transport.Send(connID, Event{Type: EventRoomCreated, Payload: RoomCreatedPayload{RoomID: r.ID, JoinCode: r.JoinCode}})
	return r, nil
}

// JoinRoom adds a new player to the room holding code.
func (s *Service) JoinRoom(connID, code, name string) (models.Player, error) {
	r := s.registry.GetByJoinCode(strings.ToUpper(strings.TrimSpace(code)))
	if r == nil {
		return models.Player{}, s.fail(connID, ErrRoomNotFound)
	}

	s.detach(connID, r.ID, uuid.Nil)
	s.transport.AddToGroup(r.ID, connID)
	p, err := s.engine.Join(r.ID, name, connID)
	if err != nil {
		s.transport.RemoveFromGroup(r.ID, connID)
		return models.Player{}, s.fail(connID, err)
	}
	s.registry.MapConnectionToRoom(connID, r.ID)
	s.registry.MapConnectionToPlayer(connID, p.ID)

	s.transport.Send(connID, Event{Type: EventRoomJoined, Payload: RoomJoinedPayload{
		RoomID:      r.ID,
		PlayerID:    p.ID,
		RejoinToken: s.issueToken(r.ID, p.ID),
	}})
	s.logger.WithFields(logrus.Fields{"room": r.ID, "player": p.ID}).Info("player joined")
	return p, nil
}

// detach runs the disconnect path for whatever connID is bound to, unless that is
// already playerID in roomID. A connection speaks for at most one seat.
func (s *Service) detach(connID string, roomID, playerID uuid.UUID) {
	bound, ok := s.registry.RoomForConnection(connID)
	if !ok {
		return
	}
	if bound == roomID && playerID != uuid.Nil {
		if current, _ := s.registry.PlayerForConnection(connID); current == playerID {
			return
		}
	}
	s.Disconnect(connID)
}

func (s *Service) issueToken(roomID, playerID uuid.UUID) string {
	if s.tokens == nil {
		return ""
	}
	token, err := s.tokens.Issue(roomID, playerID)
	if err != nil {
		s.logger.WithError(err).Warn("failed to issue rejoin token")
		return ""
	}
	return token
}

// RejoinRoom binds connID to the player named by a rejoin token.
func (s *Service) RejoinRoom(connID, token string) (models.Player, error) {
	if s.tokens == nil {
		return models.Player{}, s.fail(connID, ErrInvalidToken)
	}
	roomID, playerID, err := s.tokens.Verify(token)
	if err != nil {
		s.logger.WithError(err).Debug("rejected rejoin token")
		return models.Player{}, s.fail(connID, ErrInvalidToken)
	}

	s.detach(connID, roomID, playerID)
	s.transport.AddToGroup(roomID, connID)
	p, replaced, err := s.engine.Rejoin(roomID, playerID, connID)
	if err != nil {
		s.transport.RemoveFromGroup(roomID, connID)
		return models.Player{}, s.fail(connID, err)
	}
	// the replaced connection no longer speaks for the player
	if replaced != "" && replaced != connID && s.registry.UnbindPlayer(replaced, playerID) {
		s.transport.RemoveFromGroup(roomID, replaced)
	}
	s.registry.MapConnectionToRoom(connID, roomID)
	s.registry.MapConnectionToPlayer(connID, playerID)

	s.transport.Send(connID, Event{Type: EventRoomJoined, Payload: RoomJoinedPayload{
		RoomID:      roomID,
		PlayerID:    playerID,
		RejoinToken: token,
	}})
	s.logger.WithFields(logrus.Fields{"room": roomID, "player": playerID}).Info("player rejoined")
	return p, nil
}

// playerFor resolves the player bound to connID inside roomID.
func (s *Service) playerFor(connID string, roomID uuid.UUID) (uuid.UUID, error) {
	if s.registry.GetByID(roomID) == nil {
		return uuid.Nil, ErrRoomNotFound
	}
	bound, ok := s.registry.RoomForConnection(connID)
	if !ok || bound != roomID {
		return uuid.Nil, ErrPlayerNotFound
	}
	playerID, ok := s.registry.PlayerForConnection(connID)
	if !ok {
		return uuid.Nil, ErrPlayerNotFound
	}
	return playerID, nil
}

// SetReady toggles the calling player's ready flag.
func (s *Service) SetReady(connID string, roomID uuid.UUID, ready bool) error {
	playerID, err := s.playerFor(connID, roomID)
	if err != nil {
		return s.fail(connID, err)
	}
	if err := s.engine.SetReady(roomID, playerID, ready); err != nil {
		return s.fail(connID, err)
	}
	return nil
}

// ReportHit records one hit. Unknown item names are rejected before anything changes.
// Hits outside a running order are acknowledged by their result only.
func (s *Service) ReportHit(connID string, roomID, hitID uuid.UUID, itemName string) (models.HitResult, error) {
	item, ok := models.ParseItemType(itemName)
	if !ok {
		return models.HitInvalidState, s.fail(connID, ErrInvalidItemType)
	}
	if s.registry.GetByID(roomID) == nil {
		return models.HitInvalidState, s.fail(connID, ErrRoomNotFound)
	}

	// hits from connections without a player, such as the display, count toward the
	// order but are attributed to nobody
	playerID, _ := s.playerFor(connID, roomID)

	result, err := s.engine.ProcessHit(roomID, hitID, item, playerID)
	if err != nil {
		return result, s.fail(connID, err)
	}
	if result == models.HitInvalidState || result == models.HitNoActiveOrder || result == models.HitAlreadyProcessed {
		s.logger.WithFields(logrus.Fields{"room": roomID, "hit": hitID, "result": result}).Debug("hit not counted")
	}
	return result, nil
}

// Ping records a keepalive from the calling player.
func (s *Service) Ping(connID string, roomID uuid.UUID) error {
	playerID, err := s.playerFor(connID, roomID)
	if err != nil {
		return s.fail(connID, err)
	}
	if err := s.engine.Ping(roomID, playerID); err != nil {
		return s.fail(connID, err)
	}
	return nil
}

// LeaveRoom removes the calling player from the room and unsubscribes the connection.
func (s *Service) LeaveRoom(connID string, roomID uuid.UUID) error {
	playerID, err := s.playerFor(connID, roomID)
	if err == nil {
		if err := s.engine.Leave(roomID, playerID); err != nil && !errors.Is(err, ErrPlayerNotFound) {
			s.logger.WithField("room", roomID).WithError(err).Warn("leave failed")
		}
	}
	s.transport.RemoveFromGroup(roomID, connID)
	s.registry.ClearConnection(connID)
	if errors.Is(err, ErrRoomNotFound) {
		return s.fail(connID, err)
	}
	return nil
}

// Disconnect handles a closed transport connection. The player keeps its seat and
// stats so it can rejoin.
func (s *Service) Disconnect(connID string) {
	roomID, ok := s.registry.RoomForConnection(connID)
	if !ok {
		return
	}
	defer s.registry.ClearConnection(connID)
	s.transport.RemoveFromGroup(roomID, connID)

	playerID, ok := s.registry.PlayerForConnection(connID)
	if !ok {
		return
	}
	err := s.engine.Disconnect(roomID, playerID, connID)
	if err != nil && !errors.Is(err, ErrRoomNotFound) && !errors.Is(err, ErrPlayerNotFound) {
		s.logger.WithField("room", roomID).WithError(err).Warn("disconnect failed")
	}
}
