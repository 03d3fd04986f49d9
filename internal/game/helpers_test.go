package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/hungrygod/internal/models"
	"github.com/jason-s-yu/hungrygod/internal/registry"
	"github.com/jason-s-yu/hungrygod/internal/room"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockNotifier collects events instead of sending them over a websocket.
type mockNotifier struct {
	mu         sync.Mutex
	broadcasts map[uuid.UUID][]Event
	direct     map[string][]Event
	groups     map[uuid.UUID]map[string]bool
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{
		broadcasts: make(map[uuid.UUID][]Event),
		direct:     make(map[string][]Event),
		groups:     make(map[uuid.UUID]map[string]bool),
	}
}

func (m *mockNotifier) Send(connID string, ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.direct[connID] = append(m.direct[connID], ev)
}

func (m *mockNotifier) Broadcast(roomID uuid.UUID, ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcasts[roomID] = append(m.broadcasts[roomID], ev)
}

func (m *mockNotifier) AddToGroup(roomID uuid.UUID, connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.groups[roomID] == nil {
		m.groups[roomID] = make(map[string]bool)
	}
	m.groups[roomID][connID] = true
}

func (m *mockNotifier) RemoveFromGroup(roomID uuid.UUID, connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.groups[roomID], connID)
}

func (m *mockNotifier) inGroup(roomID uuid.UUID, connID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.groups[roomID][connID]
}

func (m *mockNotifier) roomTypes(roomID uuid.UUID) []EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EventType, 0, len(m.broadcasts[roomID]))
	for _, ev := range m.broadcasts[roomID] {
		out = append(out, ev.Type)
	}
	return out
}

func (m *mockNotifier) lastOfType(roomID uuid.UUID, typ EventType) *Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	evs := m.broadcasts[roomID]
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i].Type == typ {
			return &evs[i]
		}
	}
	return nil
}

func (m *mockNotifier) countOfType(roomID uuid.UUID, typ EventType) int {
	n := 0
	for _, t := range m.roomTypes(roomID) {
		if t == typ {
			n++
		}
	}
	return n
}

func (m *mockNotifier) lastDirect(connID string) *Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	evs := m.direct[connID]
	if len(evs) == 0 {
		return nil
	}
	return &evs[len(evs)-1]
}

func (m *mockNotifier) directOfType(connID string, typ EventType) *Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, ev := range m.direct[connID] {
		if ev.Type == typ {
			return &m.direct[connID][i]
		}
	}
	return nil
}

func (m *mockNotifier) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcasts = make(map[uuid.UUID][]Event)
	m.direct = make(map[string][]Event)
}

// fixedOrders replays a list of requirements, cycling when it runs out.
type fixedOrders struct {
	mu     sync.Mutex
	orders []map[models.ItemType]int
	next   int
}

func (g *fixedOrders) Generate(startsAt time.Time, duration time.Duration) (*models.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	req := g.orders[g.next%len(g.orders)]
	g.next++
	return models.NewOrder(req, startsAt, duration)
}

// recordingRecorder captures archived results.
type recordingRecorder struct {
	results chan models.GameResult
}

func (r *recordingRecorder) RecordGameResult(_ context.Context, result models.GameResult) error {
	r.results <- result
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	clock    *fakeClock
	lc       *room.Lifecycle
	engine   *Engine
	notifier *mockNotifier
	recorder *recordingRecorder

	mu      sync.Mutex
	pending []func()
}

// newTestEnv builds an engine on a fake clock. Pacing callbacks are queued instead of
// run; call runPending to fire them. With no orders the default generator is used.
func newTestEnv(t *testing.T, orders ...map[models.ItemType]int) *testEnv {
	t.Helper()
	logger, _ := test.NewNullLogger()
	env := &testEnv{
		clock:    &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)},
		notifier: newMockNotifier(),
		recorder: &recordingRecorder{results: make(chan models.GameResult, 4)},
	}
	env.lc = room.NewLifecycle(registry.New(), room.DefaultSettings(), logger)
	env.lc.Now = env.clock.Now

	opts := []Option{WithResultRecorder(env.recorder)}
	if len(orders) > 0 {
		opts = append(opts, WithOrderGenerator(&fixedOrders{orders: orders}))
	}
	env.engine = NewEngine(env.lc, env.notifier, logger, opts...)
	env.engine.AfterFunc = func(_ time.Duration, f func()) {
		env.mu.Lock()
		defer env.mu.Unlock()
		env.pending = append(env.pending, f)
	}
	return env
}

func (env *testEnv) runPending() int {
	env.mu.Lock()
	fns := env.pending
	env.pending = nil
	env.mu.Unlock()
	for _, f := range fns {
		f()
	}
	return len(fns)
}

// roomWithPlayers creates a room and joins n connected players on conn-0..conn-n-1.
func (env *testEnv) roomWithPlayers(t *testing.T, n int) (*models.Room, []models.Player) {
	t.Helper()
	r, err := env.lc.CreateRoom()
	require.NoError(t, err)
	players := make([]models.Player, 0, n)
	for i := 0; i < n; i++ {
		p, err := env.engine.Join(r.ID, "player", connName(i))
		require.NoError(t, err)
		players = append(players, p)
	}
	return r, players
}

// startGame readies every player and lets the countdown run out.
func (env *testEnv) startGame(t *testing.T, r *models.Room, players []models.Player) {
	t.Helper()
	for _, p := range players {
		require.NoError(t, env.engine.SetReady(r.ID, p.ID, true))
	}
	env.clock.Advance(env.lc.Settings().Countdown)
	require.NoError(t, env.engine.StartGameIfDue(r.ID))
	require.Equal(t, models.StateInGame, roomState(r))
}

func connName(i int) string { return "conn-" + string(rune('a'+i)) }

func roomState(r *models.Room) models.RoomState {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.State
}

// assertInvariants checks the structural rules every room must satisfy between
// transitions.
func assertInvariants(t *testing.T, r *models.Room) {
	t.Helper()
	r.Mu.Lock()
	defer r.Mu.Unlock()
	assert.Equal(t, r.State == models.StateInGame, r.CurrentOrder != nil,
		"current order must exist exactly while in game (state %s)", r.State)
	assert.Equal(t, r.State == models.StateCountdown, r.CountdownStartedAt != nil,
		"countdown start must exist exactly while counting down (state %s)", r.State)
}

func hit(t *testing.T, env *testEnv, r *models.Room, item models.ItemType, playerID uuid.UUID) models.HitResult {
	t.Helper()
	res, err := env.engine.ProcessHit(r.ID, uuid.New(), item, playerID)
	require.NoError(t, err)
	return res
}
