package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/garyjia/erp-workflow/internal/application/port"
	"github.com/garyjia/erp-workflow/internal/domain/entity"
	"github.com/garyjia/erp-workflow/internal/domain/event"
	"github.com/garyjia/erp-workflow/internal/domain/form"
	"github.com/garyjia/erp-workflow/internal/infrastructure/persistence/memory"
)

// mockLogger records messages for assertions
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

// mockPublisher records dispatched events synchronously
type mockPublisher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockPublisher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockPublisher) types() []event.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]event.Type, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

func (m *mockPublisher) last() *event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1]
}

// mockSender records messages per recipient
type mockSender struct {
	mu   sync.Mutex
	sent map[string][]string
	err  error
}

func (m *mockSender) SendText(ctx context.Context, to *entity.User, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.sent == nil {
		m.sent = make(map[string][]string)
	}
	m.sent[to.ID] = append(m.sent[to.ID], text)
	return nil
}

// failingUpdateRepo fails every conditional update with err
type failingUpdateRepo struct {
	port.ApplicationRepository
	err error
}

func (r *failingUpdateRepo) UpdateIfCurrent(ctx context.Context, next *entity.Application, expected port.ExpectedState) (bool, error) {
	return false, r.err
}

// stepClock returns a strictly increasing time on every call
type stepClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newStepClock() *stepClock {
	return &stepClock{cur: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Minute)
	return c.cur
}

// fixture wires the services over the in-memory backend
type fixture struct {
	store     *memory.Store
	apps      port.ApplicationRepository
	routeRepo port.RouteRepository
	users     port.UserRepository
	history   port.HistoryRepository
	forms     *form.Registry
	logger    *mockLogger
	publisher *mockPublisher
	clock     *stepClock

	routes   RouteService
	catalog  CatalogService
	decision DecisionService
	query    QueryService
}

const (
	codeExpense = "appcode-exp"
	codeRingi   = "appcode-apl"
	codeDaily   = "appcode-dly"
)

const validExpense = `{"title":"出張費","items":[{"date":"2026-03-30","description":"新幹線","amount":14000}]}`

func newFixture(t *testing.T, snapshot bool) *fixture {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore()
	require.NoError(t, memory.SeedApplicationCodes(ctx, store))

	f := &fixture{
		store:     store,
		apps:      memory.NewApplicationRepository(store),
		routeRepo: memory.NewRouteRepository(store),
		users:     memory.NewUserRepository(store),
		history:   memory.NewHistoryRepository(store),
		forms:     form.DefaultRegistry(),
		logger:    &mockLogger{},
		publisher: &mockPublisher{},
		clock:     newStepClock(),
	}

	for _, u := range []*entity.User{
		{ID: "U1", Name: "田中 部長"},
		{ID: "U2", Name: "山本 社長"},
		{ID: "U9", Name: "佐藤 花子"},
		{ID: "U8", Name: "Bob Smith"},
	} {
		require.NoError(t, f.users.Upsert(ctx, u))
	}

	routes := NewRouteService(f.routeRepo, f.logger)
	routes.(*routeServiceImpl).now = f.clock.Now
	f.routes = routes
	f.catalog = NewCatalogService(memory.NewApplicationCodeRepository(store), f.forms, f.logger)
	decision := NewDecisionService(f.apps, f.history, f.routes, f.catalog, memory.NewTxManager(store),
		f.publisher, DecisionConfig{SnapshotRoutes: snapshot}, f.logger)
	decision.(*decisionServiceImpl).now = f.clock.Now
	f.decision = decision
	f.query = NewQueryService(f.apps, f.users, memory.NewApplicationCodeRepository(store), f.routeRepo, f.history, f.logger)
	return f
}

func (f *fixture) addRoute(t *testing.T, name string, approvers ...string) *entity.ApprovalRoute {
	t.Helper()
	route, err := f.routes.CreateRoute(context.Background(), name, approvers)
	require.NoError(t, err)
	return route
}

func (f *fixture) submit(t *testing.T, routeID, applicant string) *entity.Application {
	t.Helper()
	app, err := f.decision.Submit(context.Background(), SubmitRequest{
		ApplicationCodeID: codeExpense,
		FormData:          json.RawMessage(validExpense),
		ApprovalRouteID:   routeID,
		ApplicantID:       applicant,
	})
	require.NoError(t, err)
	return app
}

func (f *fixture) stored(t *testing.T, id string) *entity.Application {
	t.Helper()
	app, err := f.apps.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, app)
	return app
}
