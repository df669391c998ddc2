package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/erp-workflow/internal/application/port"
	"github.com/garyjia/erp-workflow/internal/domain/entity"
)

func pendingApp(id string) *entity.Application {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	return &entity.Application{
		ID: id, ApplicantID: "U9", ApplicationCodeID: "appcode-exp", ApprovalRouteID: "r1",
		Status: entity.StatusPendingApproval, CurrentLevel: 1, ApproverID: "U1",
		RouteSnapshot: []string{"U1", "U2"}, SubmittedAt: &now, CreatedAt: now, UpdatedAt: now,
	}
}

func TestApplicationRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewApplicationRepository(NewStore())
	app := pendingApp("a1")
	require.NoError(t, repo.Create(ctx, app))

	app.Status = entity.StatusApproved
	got, err := repo.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPendingApproval, got.Status)

	got.RouteSnapshot[0] = "X"
	again, _ := repo.GetByID(ctx, "a1")
	assert.Equal(t, "U1", again.RouteSnapshot[0])

	assert.Error(t, repo.Create(ctx, pendingApp("a1")))

	missing, err := repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestApplicationRepository_ListKeepsInsertionOrderOnTies(t *testing.T) {
	ctx := context.Background()
	repo := NewApplicationRepository(NewStore())
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, repo.Create(ctx, pendingApp(id)))
	}

	apps, err := repo.List(ctx, port.ApplicationFilter{ApproverID: "U1"})
	require.NoError(t, err)
	require.Len(t, apps, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{apps[0].ID, apps[1].ID, apps[2].ID})
}

func TestApplicationRepository_UpdateIfCurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	repo := NewApplicationRepository(NewStore())
	app := pendingApp("a1")
	require.NoError(t, repo.Create(ctx, app))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next := app.Clone()
			next.CurrentLevel = 2
			next.ApproverID = "U2"
			ok, err := repo.UpdateIfCurrent(ctx, next, port.ExpectedFrom(app))
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}

func TestRouteRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewRouteRepository(NewStore())
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, &entity.ApprovalRoute{ID: "r2", Name: "B", Steps: entity.StepsFromIDs("U1"), CreatedAt: now}))
	require.NoError(t, repo.Create(ctx, &entity.ApprovalRoute{ID: "r1", Name: "A", Steps: entity.StepsFromIDs("U1", "U2"), CreatedAt: now}))
	assert.Error(t, repo.Create(ctx, &entity.ApprovalRoute{ID: "r3", Name: "A", Steps: entity.StepsFromIDs("U1")}))

	routes, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Equal(t, "r2", routes[0].ID)

	require.NoError(t, repo.UpdateSteps(ctx, "r1", entity.StepsFromIDs("U5"), now))
	r1, err := repo.GetByName(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"U5"}, r1.ApproverIDs())

	assert.Error(t, repo.UpdateSteps(ctx, "missing", nil, now))
}

func TestTxManager_SerializesAndNests(t *testing.T) {
	store := NewStore()
	tm := NewTxManager(store)

	var inside int32
	var maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tm.WithTransaction(context.Background(), func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				if n > atomic.LoadInt32(&maxInside) {
					atomic.StoreInt32(&maxInside, n)
				}
				// Nested call must not deadlock.
				err := tm.WithTransaction(ctx, func(context.Context) error { return nil })
				atomic.AddInt32(&inside, -1)
				return err
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestSeedApplicationCodes(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	require.NoError(t, SeedApplicationCodes(ctx, store))

	repo := NewApplicationCodeRepository(store)
	codes, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, codes, 6)

	ringi, err := repo.GetByCode(ctx, entity.CodeRingi)
	require.NoError(t, err)
	assert.Equal(t, "稟議書", ringi.Name)
}

func TestHistoryAndUsers(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	users := NewUserRepository(store)
	require.NoError(t, users.Upsert(ctx, &entity.User{ID: "U1", Name: "佐藤"}))
	byIDs, err := users.GetByIDs(ctx, []string{"U1", "U2"})
	require.NoError(t, err)
	assert.Len(t, byIDs, 1)

	history := NewHistoryRepository(store)
	require.NoError(t, history.Create(ctx, &entity.ApprovalHistory{ID: "h1", ApplicationID: "a1", Action: entity.ActionSubmit}))
	require.NoError(t, history.Create(ctx, &entity.ApprovalHistory{ID: "h2", ApplicationID: "a2", Action: entity.ActionSubmit}))
	require.NoError(t, history.Create(ctx, &entity.ApprovalHistory{ID: "h3", ApplicationID: "a1", Action: entity.ActionApprove}))

	records, err := history.ListByApplication(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "h3", records[1].ID)
}
