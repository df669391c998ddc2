// Command seed loads users and approval routes from a YAML file into the
// configured database. Existing users are updated; routes that already exist
// by name get their steps replaced.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/garyjia/erp-workflow/internal/config"
	"github.com/garyjia/erp-workflow/internal/container"
	"github.com/garyjia/erp-workflow/internal/domain/entity"
	apperrors "github.com/garyjia/erp-workflow/internal/pkg/errors"
	"github.com/garyjia/erp-workflow/pkg/utils"
)

// SeedFile is the layout of the seed YAML
type SeedFile struct {
	Users  []entity.User `yaml:"users"`
	Routes []SeedRoute   `yaml:"routes"`
}

// SeedRoute is one approval route in the seed YAML
type SeedRoute struct {
	Name      string   `yaml:"name"`
	Approvers []string `yaml:"approvers"`
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	seedPath := flag.String("file", "configs/seed.yaml", "path to the seed file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     "console",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.Database.Driver == config.DriverMemory {
		logger.Fatal("Seeding the memory driver has no effect; configure sqlite3 or pgx")
	}

	seed, err := LoadSeedFile(*seedPath)
	if err != nil {
		logger.Fatal("Failed to read seed file", zap.Error(err), zap.String("path", *seedPath))
	}

	ctx := context.Background()
	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create container", zap.Error(err))
	}
	if err := c.Start(ctx); err != nil {
		logger.Fatal("Failed to start container", zap.Error(err))
	}
	defer c.Close()

	if err := Apply(ctx, c, seed, logger); err != nil {
		logger.Fatal("Seeding failed", zap.Error(err))
	}
	logger.Info("Seed applied",
		zap.Int("users", len(seed.Users)),
		zap.Int("routes", len(seed.Routes)))
}

// LoadSeedFile parses and checks a seed file
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	for i, u := range seed.Users {
		if u.ID == "" {
			return nil, fmt.Errorf("users[%d]: id is required", i)
		}
	}
	for i, r := range seed.Routes {
		if r.Name == "" || len(r.Approvers) == 0 {
			return nil, fmt.Errorf("routes[%d]: name and approvers are required", i)
		}
	}
	return &seed, nil
}

// Apply upserts users and creates or updates routes
func Apply(ctx context.Context, c *container.Container, seed *SeedFile, logger *zap.Logger) error {
	users := c.Repositories().User
	for i := range seed.Users {
		if err := users.Upsert(ctx, &seed.Users[i]); err != nil {
			return fmt.Errorf("upsert user %s: %w", seed.Users[i].ID, err)
		}
	}

	routes := c.Services().Routes
	for _, r := range seed.Routes {
		existing, err := routes.GetRouteByName(ctx, r.Name)
		switch {
		case err == nil:
			if _, err := routes.UpdateRouteSteps(ctx, existing.ID, r.Approvers); err != nil {
				return fmt.Errorf("update route %q: %w", r.Name, err)
			}
			logger.Info("Route updated", zap.String("route_name", r.Name), zap.Strings("approvers", r.Approvers))
		case errors.Is(err, apperrors.ErrRouteNotFound):
			if _, err := routes.CreateRoute(ctx, r.Name, r.Approvers); err != nil {
				return fmt.Errorf("create route %q: %w", r.Name, err)
			}
			logger.Info("Route created", zap.String("route_name", r.Name), zap.Strings("approvers", r.Approvers))
		default:
			return fmt.Errorf("look up route %q: %w", r.Name, err)
		}
	}
	return nil
}
