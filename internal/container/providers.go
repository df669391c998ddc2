// Package container provides dependency injection and lifecycle management
// for the approval workflow service.
package container

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/erp-workflow/internal/application/dispatcher"
	"github.com/garyjia/erp-workflow/internal/application/port"
	"github.com/garyjia/erp-workflow/internal/application/service"
	"github.com/garyjia/erp-workflow/internal/config"
	"github.com/garyjia/erp-workflow/internal/domain/form"
	"github.com/garyjia/erp-workflow/internal/infrastructure/export"
	infraLark "github.com/garyjia/erp-workflow/internal/infrastructure/external/lark"
	"github.com/garyjia/erp-workflow/internal/infrastructure/persistence/memory"
	"github.com/garyjia/erp-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/erp-workflow/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/erp-workflow/pkg/database"
	"github.com/garyjia/erp-workflow/pkg/utils"
)

// DatabaseBundle holds database-related components. Exactly one of SqlDB
// and Store is set.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	DB             *sqldb.DB
	Store          *memory.Store
	TransactionMgr port.TransactionManager
}

// LarkBundle holds Lark-related components. Client is nil when Lark is disabled.
type LarkBundle struct {
	Client    *infraLark.SDKClient
	Messenger port.MessageSender
}

// ProvideDatabase opens the configured backend and brings its schema up to date.
// The memory driver gets the default application codes seeded directly.
func ProvideDatabase(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if cfg.Driver == config.DriverMemory {
		store := memory.NewStore()
		if err := memory.SeedApplicationCodes(ctx, store); err != nil {
			return nil, fmt.Errorf("failed to seed application codes: %w", err)
		}
		logger.Info("Using in-memory store")
		return &DatabaseBundle{Store: store, TransactionMgr: memory.NewTxManager(store)}, nil
	}

	sqlDB, err := database.Open(ctx, database.Config{
		Driver:          cfg.Driver,
		Path:            cfg.Path,
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.Migrate(ctx, sqlDB, cfg.Driver); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	dialect, err := sqldb.ParseDialect(cfg.Driver)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	db := sqldb.NewDB(sqlDB, dialect, logger)

	return &DatabaseBundle{
		SqlDB:          sqlDB,
		DB:             db,
		TransactionMgr: db,
	}, nil
}

// ProvideRepositories creates all repositories over the opened backend.
func ProvideRepositories(bundle *DatabaseBundle, logger *zap.Logger) (*RepositoryBundle, error) {
	if bundle == nil {
		return nil, fmt.Errorf("database bundle is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if bundle.Store != nil {
		return &RepositoryBundle{
			Application:     memory.NewApplicationRepository(bundle.Store),
			Route:           memory.NewRouteRepository(bundle.Store),
			ApplicationCode: memory.NewApplicationCodeRepository(bundle.Store),
			User:            memory.NewUserRepository(bundle.Store),
			History:         memory.NewHistoryRepository(bundle.Store),
		}, nil
	}

	if bundle.DB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &RepositoryBundle{
		Application:     repository.NewApplicationRepository(bundle.DB, logger),
		Route:           repository.NewRouteRepository(bundle.DB, logger),
		ApplicationCode: repository.NewApplicationCodeRepository(bundle.DB, logger),
		User:            repository.NewUserRepository(bundle.DB, logger),
		History:         repository.NewHistoryRepository(bundle.DB, logger),
	}, nil
}

// ProvideLarkClients creates the Lark client and message sender. When Lark is
// disabled, notifications are written to the log instead.
func ProvideLarkClients(cfg *config.LarkConfig, logger *zap.Logger) (*LarkBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lark config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if !cfg.Enabled {
		logger.Info("Lark disabled, notifications will be logged only")
		return &LarkBundle{Messenger: infraLark.NewLogMessenger(logger)}, nil
	}

	client := infraLark.NewSDKClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		BaseURL:   cfg.BaseURL,
	}, logger)

	return &LarkBundle{
		Client:    client,
		Messenger: infraLark.NewMessenger(client, logger),
	}, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(dispatcher.WithLogger(utils.NewKVLogger(logger))), nil
}

// ProvideForms builds the form registry and applies configured route pins.
// Viper lowercases map keys, so codes are upper-cased before lookup.
func ProvideForms(cfg *config.WorkflowConfig) (*form.Registry, error) {
	forms := form.DefaultRegistry()
	if cfg == nil {
		return forms, nil
	}
	for code, routeName := range cfg.PinnedRoutes {
		if err := forms.PinRoute(strings.ToUpper(code), routeName); err != nil {
			return nil, fmt.Errorf("workflow.pinned_routes: %w", err)
		}
	}
	return forms, nil
}

// ProvideExporter creates the spreadsheet exporter, or nil when export is disabled.
func ProvideExporter(cfg *config.ExportConfig, logger *zap.Logger) port.ViewExporter {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	return export.NewXLSXExporter(cfg.SheetName, logger)
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Forms      *form.Registry
	Dispatcher dispatcher.Dispatcher
	Messenger  port.MessageSender
	Workflow   *config.WorkflowConfig
	Logger     *zap.Logger
}

// ProvideServices creates all application services and subscribes the
// notifier to the dispatcher.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	forms := deps.Forms
	if forms == nil {
		forms = form.DefaultRegistry()
	}
	wfCfg := deps.Workflow
	if wfCfg == nil {
		wfCfg = &config.WorkflowConfig{SnapshotRoutes: true}
	}

	log := utils.NewKVLogger(deps.Logger)
	repos := deps.Repos

	routes := service.NewRouteService(repos.Route, log)
	catalog := service.NewCatalogService(repos.ApplicationCode, forms, log)
	decision := service.NewDecisionService(
		repos.Application,
		repos.History,
		routes,
		catalog,
		deps.TxManager,
		deps.Dispatcher,
		service.DecisionConfig{
			SnapshotRoutes:   wfCfg.SnapshotRoutes,
			DefaultRouteName: wfCfg.DefaultRouteName,
		},
		log,
	)
	query := service.NewQueryService(repos.Application, repos.User, repos.ApplicationCode, repos.Route, repos.History, log)

	bundle := &ServiceBundle{
		Routes:   routes,
		Catalog:  catalog,
		Decision: decision,
		Query:    query,
	}

	if deps.Messenger != nil {
		bundle.Notification = service.NewNotificationService(repos.User, repos.ApplicationCode, deps.Messenger, log)
		bundle.Notification.Register(deps.Dispatcher)
	}

	return bundle, nil
}
