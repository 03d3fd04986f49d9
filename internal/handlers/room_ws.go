// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/hungrygod/internal/game"
	"github.com/jason-s-yu/hungrygod/internal/middleware"
	"github.com/sirupsen/logrus"
)

// Subprotocol is the websocket subprotocol clients must request.
const Subprotocol = "hungrygod"

const (
	pingInterval = 30 * time.Second
	writeTimeout = 5 * time.Second
)

// Client action types.
const (
	ActionCreateRoom = "create_room"
	ActionJoinRoom   = "join_room"
	ActionRejoinRoom = "rejoin_room"
	ActionSetReady   = "set_ready"
	ActionReportHit  = "report_hit"
	ActionPing       = "ping"
	ActionLeaveRoom  = "leave_room"
)

// clientMessage is the envelope of every inbound frame: {"type": ..., "payload": {...}}.
type clientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinRoomPayload struct {
	JoinCode string `json:"joinCode"`
	Name     string `json:"name"`
}

type rejoinRoomPayload struct {
	RejoinToken string `json:"rejoinToken"`
}

type roomPayload struct {
	RoomID string `json:"roomId"`
}

type setReadyPayload struct {
	RoomID string `json:"roomId"`
	Ready  bool   `json:"ready"`
}

type reportHitPayload struct {
	RoomID   string `json:"roomId"`
	HitID    string `json:"hitId"`
	ItemType string `json:"itemType"`
}

// RoomWSHandler serves one websocket per client. Displays and phones share the
// endpoint; what a connection is depends on the actions it sends.
func RoomWSHandler(logger *logrus.Logger, svc *game.Service, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != Subprotocol {
			c.Close(BadSubprotocolError, "client must speak the hungrygod subprotocol")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		conn := newConnection(c, r.RemoteAddr)
		hub.Register(conn)
		middleware.LogWebSocketConnect(logger, conn.ID, r.RemoteAddr)

		go writePump(ctx, c, conn, logger)
		readErr := readPump(ctx, c, conn, svc, hub, logger)

		cancel()
		svc.Disconnect(conn.ID)
		hub.Unregister(conn.ID)
		middleware.LogWebSocketDisconnect(logger, conn.ID, conn.Remote, readErr)
	}
}

// readPump decodes frames and dispatches them until the connection fails.
// A normal close returns nil.
func readPump(ctx context.Context, c *websocket.Conn, conn *Connection, svc *game.Service, hub *Hub, logger *logrus.Logger) error {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			logger.WithField("conn", conn.ID).Warnf("ignoring non-text message type %d", typ)
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			hub.Send(conn.ID, badRequest("invalid JSON format"))
			continue
		}
		if err := dispatch(svc, conn.ID, msg); err != nil {
			var bad badRequestError
			switch {
			case errors.As(err, &bad):
				hub.Send(conn.ID, badRequest(bad.msg))
			case errors.Is(err, errUnknownAction):
				hub.Send(conn.ID, game.Event{Type: game.EventError, Payload: game.ErrorPayload{
					Code:    CodeUnknownAction,
					Message: fmt.Sprintf("unknown action %q", msg.Type),
				}})
			default:
				// the service already told the client
				logger.WithFields(logrus.Fields{"conn": conn.ID, "action": msg.Type}).WithError(err).Debug("action rejected")
			}
		}
	}
}

var errUnknownAction = errors.New("unknown action")

type badRequestError struct{ msg string }

func (e badRequestError) Error() string { return e.msg }

func badRequest(msg string) game.Event {
	return game.Event{Type: game.EventError, Payload: game.ErrorPayload{Code: CodeBadRequest, Message: msg}}
}

// dispatch routes one client message to the service.
func dispatch(svc *game.Service, connID string, msg clientMessage) error {
	switch msg.Type {
	case ActionCreateRoom:
		_, err := svc.CreateRoom(connID)
		return err

	case ActionJoinRoom:
		var p joinRoomPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		_, err := svc.JoinRoom(connID, p.JoinCode, p.Name)
		return err

	case ActionRejoinRoom:
		var p rejoinRoomPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		_, err := svc.RejoinRoom(connID, p.RejoinToken)
		return err

	case ActionSetReady:
		var p setReadyPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		roomID, err := parseID("roomId", p.RoomID)
		if err != nil {
			return err
		}
		return svc.SetReady(connID, roomID, p.Ready)

	case ActionReportHit:
		var p reportHitPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		roomID, err := parseID("roomId", p.RoomID)
		if err != nil {
			return err
		}
		hitID, err := parseID("hitId", p.HitID)
		if err != nil {
			return err
		}
		_, err = svc.ReportHit(connID, roomID, hitID, p.ItemType)
		return err

	case ActionPing, ActionLeaveRoom:
		var p roomPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		roomID, err := parseID("roomId", p.RoomID)
		if err != nil {
			return err
		}
		if msg.Type == ActionPing {
			return svc.Ping(connID, roomID)
		}
		return svc.LeaveRoom(connID, roomID)
	}
	return errUnknownAction
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return badRequestError{"missing payload"}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return badRequestError{fmt.Sprintf("invalid payload: %v", err)}
	}
	return nil
}

func parseID(field, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, badRequestError{fmt.Sprintf("invalid %s %q", field, s)}
	}
	return id, nil
}

// writePump serialises events from OutChan onto the socket and keeps it alive with pings.
func writePump(ctx context.Context, c *websocket.Conn, conn *Connection, logger *logrus.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.Close(websocket.StatusGoingAway, "write pump stopping")

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-conn.OutChan:
			data, err := json.Marshal(ev)
			if err != nil {
				logger.WithField("conn", conn.ID).Warnf("failed to marshal outgoing %s: %v", ev.Type, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.WithField("conn", conn.ID).Warnf("failed to write to websocket: %v", err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.WithField("conn", conn.ID).Warnf("ping failed, assuming disconnect: %v", err)
				return
			}
		}
	}
}
