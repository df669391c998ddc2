// Package memory is a process-local backend for the repository ports. It is
// used for tests and for running the server without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/erp-workflow/internal/application/port"
	"github.com/garyjia/erp-workflow/internal/domain/entity"
)

// Store holds every table. Repositories return copies so callers can never
// alter stored rows without going through a write method.
type Store struct {
	mu           sync.RWMutex
	applications map[string]*entity.Application
	routes       map[string]*entity.ApprovalRoute
	codes        map[string]*entity.ApplicationCode
	users        map[string]*entity.User
	history      []*entity.ApprovalHistory

	// seq orders rows inserted with identical timestamps.
	seq      int64
	appSeq   map[string]int64
	routeSeq map[string]int64

	txMu sync.Mutex
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		applications: make(map[string]*entity.Application),
		routes:       make(map[string]*entity.ApprovalRoute),
		codes:        make(map[string]*entity.ApplicationCode),
		users:        make(map[string]*entity.User),
		appSeq:       make(map[string]int64),
		routeSeq:     make(map[string]int64),
	}
}

func (s *Store) next() int64 {
	s.seq++
	return s.seq
}

type txKey struct{}

// TxManager serializes transactions on a Store. Writes are applied
// immediately and are not rolled back on error; the conditional update is
// what keeps concurrent decisions consistent.
type TxManager struct {
	store *Store
}

// NewTxManager creates a transaction manager for store
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// WithTransaction runs fn while holding the store's transaction lock.
// Nested calls on the same context reuse the held lock.
func (m *TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	m.store.txMu.Lock()
	defer m.store.txMu.Unlock()
	return fn(context.WithValue(ctx, txKey{}, true))
}

// ApplicationRepository implements port.ApplicationRepository
type ApplicationRepository struct {
	store *Store
}

// NewApplicationRepository creates a new application repository
func NewApplicationRepository(store *Store) *ApplicationRepository {
	return &ApplicationRepository{store: store}
}

func (r *ApplicationRepository) Create(ctx context.Context, app *entity.Application) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.applications[app.ID]; exists {
		return errDuplicate("application", app.ID)
	}
	r.store.applications[app.ID] = app.Clone()
	r.store.appSeq[app.ID] = r.store.next()
	return nil
}

func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*entity.Application, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.store.applications[id].Clone(), nil
}

func (r *ApplicationRepository) List(ctx context.Context, filter port.ApplicationFilter) ([]*entity.Application, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*entity.Application, 0)
	for _, a := range r.store.applications {
		if filter.Matches(a) {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return r.store.appSeq[out[i].ID] < r.store.appSeq[out[j].ID]
	})
	return out, nil
}

func (r *ApplicationRepository) UpdateIfCurrent(ctx context.Context, next *entity.Application, expected port.ExpectedState) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	cur, ok := r.store.applications[next.ID]
	if !ok || port.ExpectedFrom(cur) != expected {
		return false, nil
	}
	r.store.applications[next.ID] = next.Clone()
	return true, nil
}

// RouteRepository implements port.RouteRepository
type RouteRepository struct {
	store *Store
}

// NewRouteRepository creates a new route repository
func NewRouteRepository(store *Store) *RouteRepository {
	return &RouteRepository{store: store}
}

func (r *RouteRepository) Create(ctx context.Context, route *entity.ApprovalRoute) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.routes[route.ID]; exists {
		return errDuplicate("route", route.ID)
	}
	for _, existing := range r.store.routes {
		if existing.Name == route.Name {
			return errDuplicate("route name", route.Name)
		}
	}
	r.store.routes[route.ID] = route.Clone()
	r.store.routeSeq[route.ID] = r.store.next()
	return nil
}

func (r *RouteRepository) GetByID(ctx context.Context, id string) (*entity.ApprovalRoute, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.store.routes[id].Clone(), nil
}

func (r *RouteRepository) GetByName(ctx context.Context, name string) (*entity.ApprovalRoute, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, route := range r.store.routes {
		if route.Name == name {
			return route.Clone(), nil
		}
	}
	return nil, nil
}

func (r *RouteRepository) List(ctx context.Context) ([]*entity.ApprovalRoute, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*entity.ApprovalRoute, 0, len(r.store.routes))
	for _, route := range r.store.routes {
		out = append(out, route.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return r.store.routeSeq[out[i].ID] < r.store.routeSeq[out[j].ID]
	})
	return out, nil
}

func (r *RouteRepository) UpdateSteps(ctx context.Context, id string, steps []entity.RouteStep, updatedAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	route, ok := r.store.routes[id]
	if !ok {
		return errNotFound("route", id)
	}
	updated := route.Clone()
	updated.Steps = append([]entity.RouteStep(nil), steps...)
	updated.UpdatedAt = updatedAt
	r.store.routes[id] = updated
	return nil
}

// ApplicationCodeRepository implements port.ApplicationCodeRepository
type ApplicationCodeRepository struct {
	store *Store
}

// NewApplicationCodeRepository creates a new application code repository
func NewApplicationCodeRepository(store *Store) *ApplicationCodeRepository {
	return &ApplicationCodeRepository{store: store}
}

func (r *ApplicationCodeRepository) Create(ctx context.Context, code *entity.ApplicationCode) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.codes[code.ID]; exists {
		return errDuplicate("application code", code.ID)
	}
	c := *code
	r.store.codes[code.ID] = &c
	return nil
}

func (r *ApplicationCodeRepository) GetByID(ctx context.Context, id string) (*entity.ApplicationCode, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if c, ok := r.store.codes[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r *ApplicationCodeRepository) GetByCode(ctx context.Context, code string) (*entity.ApplicationCode, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, c := range r.store.codes {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *ApplicationCodeRepository) List(ctx context.Context) ([]*entity.ApplicationCode, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*entity.ApplicationCode, 0, len(r.store.codes))
	for _, c := range r.store.codes {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// UserRepository implements port.UserRepository
type UserRepository struct {
	store *Store
}

// NewUserRepository creates a new user repository
func NewUserRepository(store *Store) *UserRepository {
	return &UserRepository{store: store}
}

func (r *UserRepository) Upsert(ctx context.Context, user *entity.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	u := *user
	r.store.users[user.ID] = &u
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if u, ok := r.store.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *UserRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*entity.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make(map[string]*entity.User, len(ids))
	for _, id := range ids {
		if u, ok := r.store.users[id]; ok {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}

func (r *UserRepository) List(ctx context.Context) ([]*entity.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*entity.User, 0, len(r.store.users))
	for _, u := range r.store.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	store *Store
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(store *Store) *HistoryRepository {
	return &HistoryRepository{store: store}
}

func (r *HistoryRepository) Create(ctx context.Context, history *entity.ApprovalHistory) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	h := *history
	r.store.history = append(r.store.history, &h)
	return nil
}

func (r *HistoryRepository) ListByApplication(ctx context.Context, applicationID string) ([]*entity.ApprovalHistory, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*entity.ApprovalHistory, 0)
	for _, h := range r.store.history {
		if h.ApplicationID == applicationID {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

var (
	_ port.TransactionManager        = (*TxManager)(nil)
	_ port.ApplicationRepository     = (*ApplicationRepository)(nil)
	_ port.RouteRepository           = (*RouteRepository)(nil)
	_ port.ApplicationCodeRepository = (*ApplicationCodeRepository)(nil)
	_ port.UserRepository            = (*UserRepository)(nil)
	_ port.HistoryRepository         = (*HistoryRepository)(nil)
)
