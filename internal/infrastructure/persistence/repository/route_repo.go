package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/erp-workflow/internal/application/port"
	"github.com/garyjia/erp-workflow/internal/domain/entity"
	"github.com/garyjia/erp-workflow/internal/infrastructure/persistence/sqldb"
	"go.uber.org/zap"
)

// RouteRepository implements port.RouteRepository
type RouteRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewRouteRepository creates a new route repository
func NewRouteRepository(db *sqldb.DB, logger *zap.Logger) port.RouteRepository {
	return &RouteRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new approval route. Steps are stored as a JSON array.
func (r *RouteRepository) Create(ctx context.Context, route *entity.ApprovalRoute) error {
	steps, err := marshalJSON(route.Steps)
	if err != nil {
		return err
	}

	query := r.db.Rebind(`
		INSERT INTO approval_routes (id, name, steps, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`)

	_, err = r.db.Executor(ctx).ExecContext(ctx, query,
		route.ID,
		route.Name,
		steps,
		route.CreatedAt,
		route.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create route", zap.String("name", route.Name), zap.Error(err))
		return fmt.Errorf("failed to create route: %w", err)
	}

	return nil
}

// GetByID retrieves a route by ID
func (r *RouteRepository) GetByID(ctx context.Context, id string) (*entity.ApprovalRoute, error) {
	return r.getOne(ctx, "id", id)
}

// GetByName retrieves a route by its unique name
func (r *RouteRepository) GetByName(ctx context.Context, name string) (*entity.ApprovalRoute, error) {
	return r.getOne(ctx, "name", name)
}

func (r *RouteRepository) getOne(ctx context.Context, column, value string) (*entity.ApprovalRoute, error) {
	query := r.db.Rebind(`
		SELECT id, name, steps, created_at, updated_at
		FROM approval_routes
		WHERE ` + column + ` = ?
	`)

	route, err := scanRoute(r.db.Executor(ctx).QueryRowContext(ctx, query, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get route", zap.String(column, value), zap.Error(err))
		return nil, fmt.Errorf("failed to get route: %w", err)
	}

	return route, nil
}

// List retrieves all routes ordered by creation time, then id
func (r *RouteRepository) List(ctx context.Context) ([]*entity.ApprovalRoute, error) {
	query := `
		SELECT id, name, steps, created_at, updated_at
		FROM approval_routes
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list routes", zap.Error(err))
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	defer rows.Close()

	routes := make([]*entity.ApprovalRoute, 0)
	for rows.Next() {
		route, err := scanRoute(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan route: %w", err)
		}
		routes = append(routes, route)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating routes: %w", err)
	}

	return routes, nil
}

// UpdateSteps replaces the steps of a route
func (r *RouteRepository) UpdateSteps(ctx context.Context, id string, steps []entity.RouteStep, updatedAt time.Time) error {
	encoded, err := marshalJSON(steps)
	if err != nil {
		return err
	}

	query := r.db.Rebind(`UPDATE approval_routes SET steps = ?, updated_at = ? WHERE id = ?`)

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, encoded, updatedAt, id)
	if err != nil {
		r.logger.Error("Failed to update route steps", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to update route steps: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("route not found: %s", id)
	}

	return nil
}

func scanRoute(row rowScanner) (*entity.ApprovalRoute, error) {
	var (
		route entity.ApprovalRoute
		steps string
	)
	if err := row.Scan(&route.ID, &route.Name, &steps, &route.CreatedAt, &route.UpdatedAt); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(steps, &route.Steps); err != nil {
		return nil, err
	}
	return &route, nil
}

var _ port.RouteRepository = (*RouteRepository)(nil)
