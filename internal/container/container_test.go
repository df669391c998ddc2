package container

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/erp-workflow/internal/application/service"
	"github.com/garyjia/erp-workflow/internal/config"
	"github.com/garyjia/erp-workflow/internal/domain/entity"
	"github.com/garyjia/erp-workflow/internal/domain/event"
	apperrors "github.com/garyjia/erp-workflow/internal/pkg/errors"
	"github.com/garyjia/erp-workflow/pkg/database"
)

func testConfig(driver, path string) *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Port: 8080},
		Database: config.DatabaseConfig{Driver: driver, Path: path},
		Logger:   config.LoggerConfig{Format: "json"},
		Workflow: config.WorkflowConfig{
			SnapshotRoutes: true,
			PinnedRoutes:   map[string]string{"apl": "社長決裁ルート"},
		},
		Export: config.ExportConfig{Enabled: true},
	}
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(testConfig(config.DriverMemory, ""), nil)
	assert.Error(t, err)

	_, err = NewContainer(testConfig("oracle", ""), zap.NewNop())
	assert.Error(t, err)
}

func TestContainer_Lifecycle(t *testing.T) {
	backends := []struct {
		name   string
		driver string
		path   string
	}{
		{"memory", config.DriverMemory, ""},
		{"sqlite", config.DriverSQLite, database.MemoryPath},
	}

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			c, err := NewContainer(testConfig(b.driver, b.path), zap.NewNop())
			require.NoError(t, err)
			require.NoError(t, c.Start(ctx))
			assert.True(t, c.Ready())
			assert.Error(t, c.Start(ctx))

			health := c.Health(ctx)
			assert.True(t, health.Overall, "%+v", health.Components)
			assert.NoError(t, c.HealthCheck(ctx))

			// pinned route applied with the upper-cased code
			def, ok := c.Forms().Lookup(entity.CodeRingi)
			require.True(t, ok)
			assert.Equal(t, "社長決裁ルート", def.RequiredRouteName)

			// notifier subscribed for every event type
			for _, typ := range event.All() {
				assert.NotEmpty(t, c.Dispatcher().ListHandlers(typ), typ)
			}
			assert.NotNil(t, c.Exporter())

			svc := c.Services()
			require.NoError(t, c.Repositories().User.Upsert(ctx, &entity.User{ID: "U1", Name: "田中 部長"}))
			_, err = svc.Routes.CreateRoute(ctx, "部長承認", []string{"U1"})
			require.NoError(t, err)

			app, err := svc.Decision.Submit(ctx, service.SubmitRequest{
				ApplicationCodeID: "appcode-exp",
				FormData:          json.RawMessage(`{"title":"出張費","items":[{"date":"2026-03-30","description":"新幹線","amount":14000}]}`),
				ApplicantID:       "U9",
			})
			require.NoError(t, err)

			pending, err := svc.Query.PendingForApprover(ctx, "U1")
			require.NoError(t, err)
			require.Len(t, pending, 1)
			assert.Equal(t, app.ID, pending[0].ID)

			_, err = svc.Decision.Approve(ctx, app.ID, "U1")
			require.NoError(t, err)

			require.NoError(t, c.Close())
			assert.False(t, c.Ready())
			assert.Error(t, c.Close())
		})
	}
}

func TestContainer_StartAfterClose(t *testing.T) {
	c, err := NewContainer(testConfig(config.DriverMemory, ""), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Close())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, c.Start(ctx))
}

func TestContainer_ConcurrentApproveOnSQLiteFile(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(config.DriverSQLite, filepath.Join(t.TempDir(), "workflow.db"))
	cfg.Database.MaxOpenConns = 25

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(ctx))
	defer c.Close()

	svc := c.Services()
	route, err := svc.Routes.CreateRoute(ctx, "部長→社長", []string{"U1", "U2"})
	require.NoError(t, err)

	const (
		rounds   = 5
		attempts = 30
	)
	for round := 0; round < rounds; round++ {
		app, err := svc.Decision.Submit(ctx, service.SubmitRequest{
			ApplicationCodeID: "appcode-exp",
			ApprovalRouteID:   route.ID,
			FormData:          json.RawMessage(`{"title":"出張費","items":[{"date":"2026-03-30","description":"新幹線","amount":14000}]}`),
			ApplicantID:       "U9",
		})
		require.NoError(t, err)

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
			errs []error
		)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.Decision.Approve(ctx, app.ID, "U1")
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					wins++
					return
				}
				errs = append(errs, err)
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, wins, "round %d", round)
		for _, err := range errs {
			assert.True(t,
				errors.Is(err, apperrors.ErrInvalidState) || errors.Is(err, apperrors.ErrUnauthorized),
				"round %d: %v", round, err)
		}

		stored, err := c.Repositories().Application.GetByID(ctx, app.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, stored.CurrentLevel)
		assert.Equal(t, "U2", stored.ApproverID)

		history, err := svc.Query.History(ctx, app.ID)
		require.NoError(t, err)
		assert.Len(t, history, 2)
	}
}
