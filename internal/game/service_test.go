package game

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/hungrygod/internal/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// plainTokens encodes room and player ids as "room:player".
type plainTokens struct{}

func (plainTokens) Issue(roomID, playerID uuid.UUID) (string, error) {
	return roomID.String() + ":" + playerID.String(), nil
}

func (plainTokens) Verify(token string) (uuid.UUID, uuid.UUID, error) {
	parts := strings.Split(token, ":")
	if len(parts) != 2 {
		return uuid.Nil, uuid.Nil, errors.New("bad token")
	}
	roomID, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	playerID, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return roomID, playerID, nil
}

func newTestService(t *testing.T, orders ...map[models.ItemType]int) (*Service, *testEnv) {
	t.Helper()
	env := newTestEnv(t, orders...)
	logger, _ := test.NewNullLogger()
	return NewService(env.engine, env.lc, env.notifier, plainTokens{}, logger), env
}

func errorCodeOf(t *testing.T, ev *Event) string {
	t.Helper()
	require.NotNil(t, ev)
	require.Equal(t, EventError, ev.Type)
	return ev.Payload.(ErrorPayload).Code
}

func TestServiceCreateRoomSubscribesDisplay(t *testing.T) {
	svc, env := newTestService(t)

	r, err := svc.CreateRoom("display")
	require.NoError(t, err)
	assert.True(t, env.notifier.inGroup(r.ID, "display"))

	ev := env.notifier.lastDirect("display")
	require.NotNil(t, ev)
	assert.Equal(t, EventRoomCreated, ev.Type)
	assert.Equal(t, r.JoinCode, ev.Payload.(RoomCreatedPayload).JoinCode)

	// the display sees a player joining
	_, err = svc.JoinRoom("phone", r.JoinCode, "alice")
	require.NoError(t, err)
	assert.NotNil(t, env.notifier.lastOfType(r.ID, EventRoomStateUpdated))
}

func TestServiceJoinRoomNormalisesCode(t *testing.T) {
	svc, env := newTestService(t)
	r, _ := svc.CreateRoom("display")

	p, err := svc.JoinRoom("phone", " "+strings.ToLower(r.JoinCode)+" ", "alice")
	require.NoError(t, err)
	assert.True(t, env.notifier.inGroup(r.ID, "phone"))

	joined := env.notifier.directOfType("phone", EventRoomJoined)
	require.NotNil(t, joined)
	payload := joined.Payload.(RoomJoinedPayload)
	assert.Equal(t, r.ID, payload.RoomID)
	assert.Equal(t, p.ID, payload.PlayerID)
	assert.NotEmpty(t, payload.RejoinToken)
	assert.NotNil(t, env.notifier.directOfType("phone", EventStateSnapshot))
}

func TestServiceJoinRoomUnknownCode(t *testing.T) {
	svc, env := newTestService(t)

	_, err := svc.JoinRoom("phone", "ZZZZZZ", "alice")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.Equal(t, CodeRoomNotFound, errorCodeOf(t, env.notifier.lastDirect("phone")))
}

func TestServiceReportHitRejectsUnknownItem(t *testing.T) {
	svc, env := newTestService(t, map[models.ItemType]int{models.ItemApple: 2})
	r, _ := svc.CreateRoom("display")
	p, err := svc.JoinRoom("phone", r.JoinCode, "alice")
	require.NoError(t, err)
	env.startGame(t, r, []models.Player{p})

	_, err = svc.ReportHit("phone", r.ID, uuid.New(), "durian")
	assert.ErrorIs(t, err, ErrInvalidItemType)
	assert.Equal(t, CodeInvalidItemType, errorCodeOf(t, env.notifier.lastDirect("phone")))

	r.Mu.Lock()
	assert.Zero(t, r.CurrentOrder.Submitted[models.ItemApple])
	r.Mu.Unlock()

	res, err := svc.ReportHit("phone", r.ID, uuid.New(), "Apple")
	require.NoError(t, err)
	assert.Equal(t, models.HitCounted, res)
	r.Mu.Lock()
	assert.Equal(t, 1, r.Players[p.ID].HitCount, "hit attributed through the connection")
	r.Mu.Unlock()
}

func TestServiceReportHitUnknownRoom(t *testing.T) {
	svc, env := newTestService(t)
	_, err := svc.ReportHit("phone", uuid.New(), uuid.New(), "apple")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.Equal(t, CodeRoomNotFound, errorCodeOf(t, env.notifier.lastDirect("phone")))
}

func TestServiceDisconnectAndRejoin(t *testing.T) {
	svc, env := newTestService(t)
	r, _ := svc.CreateRoom("display")
	p, err := svc.JoinRoom("phone", r.JoinCode, "alice")
	require.NoError(t, err)
	require.NoError(t, svc.SetReady("phone", r.ID, true))

	token := env.notifier.directOfType("phone", EventRoomJoined).Payload.(RoomJoinedPayload).RejoinToken

	svc.Disconnect("phone")
	assert.False(t, env.notifier.inGroup(r.ID, "phone"))
	r.Mu.Lock()
	assert.False(t, r.Players[p.ID].IsConnected)
	assert.False(t, r.Players[p.ID].IsReady)
	r.Mu.Unlock()
	assert.Equal(t, models.StateLobby, roomState(r), "the countdown went with the only ready player")

	back, err := svc.RejoinRoom("phone-2", token)
	require.NoError(t, err)
	assert.Equal(t, p.ID, back.ID)
	assert.True(t, back.IsConnected)
	assert.True(t, env.notifier.inGroup(r.ID, "phone-2"))
	assert.NotNil(t, env.notifier.directOfType("phone-2", EventStateSnapshot))

	// actions from the new connection resolve to the same player
	require.NoError(t, svc.SetReady("phone-2", r.ID, true))
	r.Mu.Lock()
	assert.True(t, r.Players[p.ID].IsReady)
	r.Mu.Unlock()
}

func TestServiceRejoinWithBadToken(t *testing.T) {
	svc, env := newTestService(t)
	_, err := svc.RejoinRoom("phone", "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, CodeInvalidToken, errorCodeOf(t, env.notifier.lastDirect("phone")))

	// well formed but the player does not exist
	token, _ := plainTokens{}.Issue(uuid.New(), uuid.New())
	_, err = svc.RejoinRoom("phone", token)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestServiceSetReadyRequiresMembership(t *testing.T) {
	svc, env := newTestService(t)
	r, _ := svc.CreateRoom("display")

	err := svc.SetReady("stranger", r.ID, true)
	assert.ErrorIs(t, err, ErrPlayerNotFound)
	assert.Equal(t, CodePlayerNotFound, errorCodeOf(t, env.notifier.lastDirect("stranger")))
}

func TestServiceLeaveRoom(t *testing.T) {
	svc, env := newTestService(t)
	r, _ := svc.CreateRoom("display")
	_, err := svc.JoinRoom("phone", r.JoinCode, "alice")
	require.NoError(t, err)

	require.NoError(t, svc.LeaveRoom("phone", r.ID))
	assert.False(t, env.notifier.inGroup(r.ID, "phone"))
	r.Mu.Lock()
	assert.Empty(t, r.Players)
	r.Mu.Unlock()

	// the connection is forgotten, so a later disconnect is a no-op
	svc.Disconnect("phone")
}

func TestServicePing(t *testing.T) {
	svc, env := newTestService(t)
	r, _ := svc.CreateRoom("display")
	p, err := svc.JoinRoom("phone", r.JoinCode, "alice")
	require.NoError(t, err)

	env.clock.Advance(3 * time.Second)
	require.NoError(t, svc.Ping("phone", r.ID))
	r.Mu.Lock()
	require.NotNil(t, r.Players[p.ID].LastPingAt)
	assert.Equal(t, env.clock.Now(), *r.Players[p.ID].LastPingAt)
	r.Mu.Unlock()
}

func TestServiceJoiningAnotherRoomReleasesFirstSeat(t *testing.T) {
	svc, env := newTestService(t)
	roomA, _ := svc.CreateRoom("display-a")
	roomB, _ := svc.CreateRoom("display-b")

	first, err := svc.JoinRoom("phone", roomA.JoinCode, "alice")
	require.NoError(t, err)
	second, err := svc.JoinRoom("phone", roomB.JoinCode, "alice")
	require.NoError(t, err)

	roomA.Mu.Lock()
	assert.False(t, roomA.Players[first.ID].IsConnected)
	assert.False(t, roomA.Players[first.ID].IsReady)
	roomA.Mu.Unlock()
	assert.False(t, env.notifier.inGroup(roomA.ID, "phone"))
	assert.True(t, env.notifier.inGroup(roomB.ID, "phone"))

	svc.Disconnect("phone")
	roomB.Mu.Lock()
	assert.False(t, roomB.Players[second.ID].IsConnected)
	roomB.Mu.Unlock()

	env.clock.Advance(6 * time.Minute)
	assert.ElementsMatch(t, []uuid.UUID{roomA.ID, roomB.ID}, env.lc.EvictStaleRooms())
}

func TestServiceCreateRoomReleasesPreviousSeat(t *testing.T) {
	svc, env := newTestService(t)
	r, _ := svc.CreateRoom("display")
	p, err := svc.JoinRoom("phone", r.JoinCode, "alice")
	require.NoError(t, err)

	created, err := svc.CreateRoom("phone")
	require.NoError(t, err)

	r.Mu.Lock()
	assert.False(t, r.Players[p.ID].IsConnected)
	r.Mu.Unlock()
	assert.False(t, env.notifier.inGroup(r.ID, "phone"))
	assert.True(t, env.notifier.inGroup(created.ID, "phone"))
}

func TestServiceRejoinUnbindsReplacedConnection(t *testing.T) {
	svc, env := newTestService(t)
	r, _ := svc.CreateRoom("display")
	p, err := svc.JoinRoom("phone", r.JoinCode, "alice")
	require.NoError(t, err)
	token := env.notifier.directOfType("phone", EventRoomJoined).Payload.(RoomJoinedPayload).RejoinToken

	// the old socket is still open when the player comes back on a new one
	_, err = svc.RejoinRoom("phone-2", token)
	require.NoError(t, err)
	assert.False(t, env.notifier.inGroup(r.ID, "phone"))

	assert.ErrorIs(t, svc.SetReady("phone", r.ID, true), ErrPlayerNotFound)
	assert.ErrorIs(t, svc.Ping("phone", r.ID), ErrPlayerNotFound)

	svc.Disconnect("phone")
	r.Mu.Lock()
	assert.True(t, r.Players[p.ID].IsConnected)
	assert.Equal(t, "phone-2", r.Players[p.ID].ConnectionID)
	r.Mu.Unlock()
	require.NoError(t, svc.SetReady("phone-2", r.ID, true))
}

func TestServiceRejoinOnSameConnectionKeepsSeat(t *testing.T) {
	svc, env := newTestService(t)
	r, _ := svc.CreateRoom("display")
	p, err := svc.JoinRoom("phone", r.JoinCode, "alice")
	require.NoError(t, err)
	token := env.notifier.directOfType("phone", EventRoomJoined).Payload.(RoomJoinedPayload).RejoinToken

	back, err := svc.RejoinRoom("phone", token)
	require.NoError(t, err)
	assert.Equal(t, p.ID, back.ID)
	assert.True(t, env.notifier.inGroup(r.ID, "phone"))
	require.NoError(t, svc.SetReady("phone", r.ID, true))
}
