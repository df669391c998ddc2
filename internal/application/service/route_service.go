package service

import (
	"context"
	"fmt"

	"github.com/garyjia/erp-workflow/internal/application/port"
	"github.com/garyjia/erp-workflow/internal/domain/entity"
	apperrors "github.com/garyjia/erp-workflow/internal/pkg/errors"
)

// RouteService reads and administers approval routes
type RouteService interface {
	ListRoutes(ctx context.Context) ([]*entity.ApprovalRoute, error)
	GetRoute(ctx context.Context, id string) (*entity.ApprovalRoute, error)
	GetRouteByName(ctx context.Context, name string) (*entity.ApprovalRoute, error)
	// ResolveRoute picks the route for a submission: routeID when given,
	// otherwise requiredName when given, otherwise the first route.
	ResolveRoute(ctx context.Context, routeID, requiredName string) (*entity.ApprovalRoute, error)
	CreateRoute(ctx context.Context, name string, approverIDs []string) (*entity.ApprovalRoute, error)
	UpdateRouteSteps(ctx context.Context, id string, approverIDs []string) (*entity.ApprovalRoute, error)
}

type routeServiceImpl struct {
	routeRepo port.RouteRepository
	logger    Logger
	now       Clock
}

// NewRouteService creates a new RouteService
func NewRouteService(routeRepo port.RouteRepository, logger Logger) RouteService {
	return &routeServiceImpl{
		routeRepo: routeRepo,
		logger:    logger,
		now:       systemClock,
	}
}

func (s *routeServiceImpl) ListRoutes(ctx context.Context) ([]*entity.ApprovalRoute, error) {
	routes, err := s.routeRepo.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list routes", "error", err)
		return nil, err
	}
	return routes, nil
}

func (s *routeServiceImpl) GetRoute(ctx context.Context, id string) (*entity.ApprovalRoute, error) {
	route, err := s.routeRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get route", "error", err, "route_id", id)
		return nil, err
	}
	if route == nil {
		return nil, apperrors.RouteNotFound(id)
	}
	return route, nil
}

func (s *routeServiceImpl) GetRouteByName(ctx context.Context, name string) (*entity.ApprovalRoute, error) {
	route, err := s.routeRepo.GetByName(ctx, name)
	if err != nil {
		s.logger.Error("Failed to get route by name", "error", err, "route_name", name)
		return nil, err
	}
	if route == nil {
		return nil, apperrors.RouteNotFound(name)
	}
	return route, nil
}

func (s *routeServiceImpl) ResolveRoute(ctx context.Context, routeID, requiredName string) (*entity.ApprovalRoute, error) {
	if routeID != "" {
		return s.GetRoute(ctx, routeID)
	}

	routes, err := s.ListRoutes(ctx)
	if err != nil {
		return nil, err
	}
	// An empty catalog is a bootstrap problem and is reported as such even
	// when a specific name was requested.
	if len(routes) == 0 {
		return nil, apperrors.NoRoutesConfigured()
	}

	if requiredName == "" {
		return routes[0], nil
	}
	for _, r := range routes {
		if r.Name == requiredName {
			return r, nil
		}
	}
	s.logger.Error("Required route is not configured", "route_name", requiredName)
	return nil, apperrors.RouteNotFound(requiredName)
}

func (s *routeServiceImpl) CreateRoute(ctx context.Context, name string, approverIDs []string) (*entity.ApprovalRoute, error) {
	now := s.now()
	route := &entity.ApprovalRoute{
		ID:        newID(),
		Name:      name,
		Steps:     entity.StepsFromIDs(approverIDs...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := route.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	existing, err := s.routeRepo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.Validation(fmt.Sprintf("route %q already exists", name))
	}

	if err := s.routeRepo.Create(ctx, route); err != nil {
		s.logger.Error("Failed to create route", "error", err, "route_name", name)
		return nil, err
	}

	s.logger.Info("Route created", "route_id", route.ID, "route_name", name, "steps", len(route.Steps))
	return route, nil
}

// UpdateRouteSteps replaces the approver list. Applications submitted with a
// route snapshot keep progressing against their snapshot.
func (s *routeServiceImpl) UpdateRouteSteps(ctx context.Context, id string, approverIDs []string) (*entity.ApprovalRoute, error) {
	route, err := s.GetRoute(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := route.Clone()
	updated.Steps = entity.StepsFromIDs(approverIDs...)
	updated.UpdatedAt = s.now()
	if err := updated.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	if err := s.routeRepo.UpdateSteps(ctx, id, updated.Steps, updated.UpdatedAt); err != nil {
		s.logger.Error("Failed to update route steps", "error", err, "route_id", id)
		return nil, err
	}

	s.logger.Info("Route steps updated", "route_id", id, "steps", len(updated.Steps))
	return updated, nil
}
