package container

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/erp-workflow/internal/application/dispatcher"
	"github.com/garyjia/erp-workflow/internal/application/port"
	"github.com/garyjia/erp-workflow/internal/application/service"
	"github.com/garyjia/erp-workflow/internal/config"
	"github.com/garyjia/erp-workflow/internal/domain/form"
	infraLark "github.com/garyjia/erp-workflow/internal/infrastructure/external/lark"
)

// Container manages all application dependencies and lifecycle.
// Components start in dependency order and close in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure - Data
	sqlDB        *sql.DB
	txManager    port.TransactionManager
	repositories *RepositoryBundle

	// Infrastructure - External
	larkClient *infraLark.SDKClient
	messenger  port.MessageSender
	exporter   port.ViewExporter

	// Application
	forms      *form.Registry
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle

	// Lifecycle
	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Application     port.ApplicationRepository
	Route           port.RouteRepository
	ApplicationCode port.ApplicationCodeRepository
	User            port.UserRepository
	History         port.HistoryRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Routes       service.RouteService
	Catalog      service.CatalogService
	Decision     service.DecisionService
	Query        service.QueryService
	Notification service.NotificationService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components in dependency order:
// 1. Database and repositories
// 2. External clients (Lark, exporter)
// 3. Event dispatcher
// 4. Application services and the notification observer
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized", zap.String("driver", c.config.Database.Driver))

	if err := c.initExternalClients(); err != nil {
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}
	c.logger.Info("External clients initialized")

	if err := c.initDispatcher(); err != nil {
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}
	c.logger.Info("Dispatcher initialized")

	if err := c.initServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close shuts down components in reverse order. The dispatcher is closed
// before the database so in-flight notifications can still read users.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	if c.sqlDB != nil {
		if err := c.sqlDB.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	mark := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	switch {
	case c.sqlDB != nil:
		if err := c.sqlDB.PingContext(ctx); err != nil {
			mark("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			mark("database", true, "")
		}
	case c.repositories != nil:
		mark("database", true, "in-memory")
	default:
		mark("database", false, "not initialized")
	}

	if c.dispatcher != nil {
		mark("dispatcher", true, "")
	} else {
		mark("dispatcher", false, "not initialized")
	}

	if c.services != nil {
		mark("services", true, "")
	} else {
		mark("services", false, "not initialized")
	}

	return status
}

// HealthCheck reports the first unhealthy component as an error.
func (c *Container) HealthCheck(ctx context.Context) error {
	status := c.Health(ctx)
	if status.Overall {
		return nil
	}
	for name, h := range status.Components {
		if !h.Healthy {
			return fmt.Errorf("%s: %s", name, h.Message)
		}
	}
	return fmt.Errorf("unhealthy")
}

func (c *Container) initDatabase(ctx context.Context) error {
	dbBundle, err := ProvideDatabase(ctx, &c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.sqlDB = dbBundle.SqlDB
	c.txManager = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(dbBundle, c.logger)
	if err != nil {
		if c.sqlDB != nil {
			c.sqlDB.Close()
		}
		return err
	}

	c.repositories = repos
	return nil
}

func (c *Container) initExternalClients() error {
	larkBundle, err := ProvideLarkClients(&c.config.Lark, c.logger)
	if err != nil {
		return err
	}
	c.larkClient = larkBundle.Client
	c.messenger = larkBundle.Messenger

	c.exporter = ProvideExporter(&c.config.Export, c.logger)
	return nil
}

func (c *Container) initDispatcher() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp
	return nil
}

func (c *Container) initServices() error {
	forms, err := ProvideForms(&c.config.Workflow)
	if err != nil {
		return err
	}
	c.forms = forms

	services, err := ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		TxManager:  c.txManager,
		Forms:      forms,
		Dispatcher: c.dispatcher,
		Messenger:  c.messenger,
		Workflow:   &c.config.Workflow,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}

	c.services = services
	return nil
}

// Getters for accessing container components

// TxManager returns the transaction manager.
func (c *Container) TxManager() port.TransactionManager {
	return c.txManager
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Messenger returns the notification sender.
func (c *Container) Messenger() port.MessageSender {
	return c.messenger
}

// Exporter returns the view exporter, nil when export is disabled.
func (c *Container) Exporter() port.ViewExporter {
	return c.exporter
}

// LarkClient returns the Lark client, nil when Lark is disabled.
func (c *Container) LarkClient() *infraLark.SDKClient {
	return c.larkClient
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Forms returns the form registry.
func (c *Container) Forms() *form.Registry {
	return c.forms
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config {
	return c.config
}
