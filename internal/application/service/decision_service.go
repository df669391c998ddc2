package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/erp-workflow/internal/application/port"
	wf "github.com/garyjia/erp-workflow/internal/application/workflow"
	"github.com/garyjia/erp-workflow/internal/domain/entity"
	"github.com/garyjia/erp-workflow/internal/domain/event"
	domainwf "github.com/garyjia/erp-workflow/internal/domain/workflow"
	apperrors "github.com/garyjia/erp-workflow/internal/pkg/errors"
	"github.com/garyjia/erp-workflow/pkg/utils"
)

// SubmitRequest carries the input of DecisionService.Submit
type SubmitRequest struct {
	ApplicationCodeID string          `json:"application_code_id"`
	FormData          json.RawMessage `json:"form_data"`
	ApprovalRouteID   string          `json:"approval_route_id"`
	// RequiredRouteName overrides the route pinned by the form definition.
	RequiredRouteName string `json:"required_route_name"`
	ApplicantID       string `json:"applicant_id"`
	// Status is "" (pending_approval) or "draft".
	Status string `json:"status"`
}

// DecisionConfig holds decision processor settings
type DecisionConfig struct {
	// SnapshotRoutes copies the route's approver ids onto the application
	// when it enters pending_approval.
	SnapshotRoutes bool
	// DefaultRouteName is resolved when a submit names neither a route id
	// nor a required route. Empty means the first configured route.
	DefaultRouteName string
}

// DecisionService applies submit, approve and reject to applications
type DecisionService interface {
	Submit(ctx context.Context, req SubmitRequest) (*entity.Application, error)
	// SubmitDraft moves an existing draft into pending_approval.
	SubmitDraft(ctx context.Context, applicationID, applicantID string) (*entity.Application, error)
	Approve(ctx context.Context, applicationID, actorID string) (*entity.Application, error)
	Reject(ctx context.Context, applicationID, actorID, reason string) (*entity.Application, error)
}

type decisionServiceImpl struct {
	appRepo     port.ApplicationRepository
	historyRepo port.HistoryRepository
	routes      RouteService
	catalog     CatalogService
	txManager   port.TransactionManager
	publisher   port.EventPublisher
	config      DecisionConfig
	logger      Logger
	now         Clock
}

// NewDecisionService creates a new DecisionService. publisher may be nil.
func NewDecisionService(
	appRepo port.ApplicationRepository,
	historyRepo port.HistoryRepository,
	routes RouteService,
	catalog CatalogService,
	txManager port.TransactionManager,
	publisher port.EventPublisher,
	config DecisionConfig,
	logger Logger,
) DecisionService {
	return &decisionServiceImpl{
		appRepo:     appRepo,
		historyRepo: historyRepo,
		routes:      routes,
		catalog:     catalog,
		txManager:   txManager,
		publisher:   publisher,
		config:      config,
		logger:      logger,
		now:         systemClock,
	}
}

func (s *decisionServiceImpl) Submit(ctx context.Context, req SubmitRequest) (*entity.Application, error) {
	if strings.TrimSpace(req.ApplicantID) == "" {
		return nil, apperrors.InvalidSubmission("applicant_id is required")
	}
	if strings.TrimSpace(req.ApplicationCodeID) == "" {
		return nil, apperrors.InvalidSubmission("application_code_id is required")
	}

	draft := false
	switch req.Status {
	case "", entity.StatusPendingApproval:
	case entity.StatusDraft:
		draft = true
	default:
		return nil, apperrors.InvalidSubmission(fmt.Sprintf("status %q cannot be requested on submit", req.Status))
	}

	// The route is resolved before the payload is checked.
	_, def, err := s.catalog.FormDefinition(ctx, req.ApplicationCodeID)
	if err != nil {
		return nil, err
	}

	requiredName := req.RequiredRouteName
	if requiredName == "" {
		requiredName = def.RequiredRouteName
	}
	if requiredName == "" && req.ApprovalRouteID == "" {
		requiredName = s.config.DefaultRouteName
	}
	route, err := s.routes.ResolveRoute(ctx, req.ApprovalRouteID, requiredName)
	if err != nil {
		return nil, err
	}

	if _, _, err := s.catalog.ValidateForm(ctx, req.ApplicationCodeID, req.FormData, draft); err != nil {
		return nil, err
	}

	now := s.now()
	app := &entity.Application{
		ID:                newID(),
		ApplicantID:       req.ApplicantID,
		ApplicationCodeID: req.ApplicationCodeID,
		ApprovalRouteID:   route.ID,
		FormData:          req.FormData,
		Status:            entity.StatusDraft,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if len(app.FormData) == 0 {
		app.FormData = json.RawMessage("{}")
	}

	var evtType event.Type
	if !draft {
		transition, err := wf.Submit(ctx, app, route.ApproverIDs(), now)
		if err != nil {
			return nil, err
		}
		app = transition.Next
		s.applySnapshot(app, route)
		evtType = transition.Event
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.appRepo.Create(txCtx, app); err != nil {
			return fmt.Errorf("failed to create application: %w", err)
		}
		if draft {
			return nil
		}
		return s.recordHistory(txCtx, app, req.ApplicantID, entity.ActionSubmit, entity.StatusDraft, 0, "", now)
	})
	if err != nil {
		s.logger.Error("Failed to submit application", "error", err, "applicant_id", req.ApplicantID)
		return nil, err
	}

	s.logger.Info("Application created",
		"application_id", app.ID,
		"status", app.Status,
		"route_id", route.ID,
		"approver_id", app.ApproverID,
	)

	if !draft {
		s.publish(ctx, evtType, app, req.ApplicantID, "")
	}
	return app, nil
}

func (s *decisionServiceImpl) SubmitDraft(ctx context.Context, applicationID, applicantID string) (*entity.Application, error) {
	var (
		result    *entity.Application
		eventType event.Type
	)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		app, err := s.load(txCtx, applicationID)
		if err != nil {
			return err
		}
		if app.Status != entity.StatusDraft {
			return apperrors.InvalidState(app.ID, app.Status)
		}
		if app.ApplicantID != applicantID {
			return apperrors.Unauthorized(app.ID, applicantID)
		}

		if _, _, err := s.catalog.ValidateForm(txCtx, app.ApplicationCodeID, app.FormData, false); err != nil {
			return err
		}
		route, err := s.routes.GetRoute(txCtx, app.ApprovalRouteID)
		if err != nil {
			return err
		}

		now := s.now()
		transition, err := wf.Submit(txCtx, app, route.ApproverIDs(), now)
		if err != nil {
			return err
		}
		next := transition.Next
		s.applySnapshot(next, route)

		if err := s.commit(txCtx, app, next); err != nil {
			return err
		}
		if err := s.recordHistory(txCtx, next, applicantID, entity.ActionSubmit, app.Status, 0, "", now); err != nil {
			return err
		}

		result = next
		eventType = transition.Event
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to submit draft", "error", err, "application_id", applicationID)
		return nil, err
	}

	s.logger.Info("Draft submitted", "application_id", result.ID, "approver_id", result.ApproverID)
	s.publish(ctx, eventType, result, applicantID, "")
	return result, nil
}

func (s *decisionServiceImpl) Approve(ctx context.Context, applicationID, actorID string) (*entity.Application, error) {
	var transition *wf.Transition

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		app, err := s.load(txCtx, applicationID)
		if err != nil {
			return err
		}
		// Preconditions are checked before the route is read.
		if err := wf.Authorize(app, domainwf.TriggerApprove, actorID); err != nil {
			return err
		}

		steps, err := s.stepsFor(txCtx, app)
		if err != nil {
			return err
		}

		now := s.now()
		transition, err = wf.Approve(txCtx, app, actorID, steps, now)
		if err != nil {
			return err
		}
		if err := s.commit(txCtx, app, transition.Next); err != nil {
			return err
		}
		return s.recordHistory(txCtx, transition.Next, actorID, entity.ActionApprove, app.Status, app.CurrentLevel, "", now)
	})
	if err != nil {
		s.logger.Error("Failed to approve application", "error", err, "application_id", applicationID, "actor_id", actorID)
		return nil, err
	}

	next := transition.Next
	s.logger.Info("Application approved",
		"application_id", next.ID,
		"actor_id", actorID,
		"status", next.Status,
		"level", next.CurrentLevel,
	)
	s.publish(ctx, transition.Event, next, actorID, "")
	return next, nil
}

func (s *decisionServiceImpl) Reject(ctx context.Context, applicationID, actorID, reason string) (*entity.Application, error) {
	reason = utils.SanitizeText(reason)
	if reason == "" {
		return nil, apperrors.Validation("rejection reason is required")
	}

	var transition *wf.Transition
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		app, err := s.load(txCtx, applicationID)
		if err != nil {
			return err
		}

		now := s.now()
		transition, err = wf.Reject(txCtx, app, actorID, reason, now)
		if err != nil {
			return err
		}
		if err := s.commit(txCtx, app, transition.Next); err != nil {
			return err
		}
		return s.recordHistory(txCtx, transition.Next, actorID, entity.ActionReject, app.Status, app.CurrentLevel, reason, now)
	})
	if err != nil {
		s.logger.Error("Failed to reject application", "error", err, "application_id", applicationID, "actor_id", actorID)
		return nil, err
	}

	next := transition.Next
	s.logger.Info("Application rejected", "application_id", next.ID, "actor_id", actorID, "level", next.CurrentLevel)
	s.publish(ctx, transition.Event, next, actorID, reason)
	return next, nil
}

func (s *decisionServiceImpl) load(ctx context.Context, id string) (*entity.Application, error) {
	app, err := s.appRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load application: %w", err)
	}
	if app == nil {
		return nil, apperrors.ApplicationNotFound(id)
	}
	return app, nil
}

// stepsFor returns the approver ids the application progresses through:
// its snapshot when one was taken, otherwise the live route.
func (s *decisionServiceImpl) stepsFor(ctx context.Context, app *entity.Application) ([]string, error) {
	if len(app.RouteSnapshot) > 0 {
		return app.RouteSnapshot, nil
	}
	route, err := s.routes.GetRoute(ctx, app.ApprovalRouteID)
	if err != nil {
		return nil, err
	}
	return route.ApproverIDs(), nil
}

func (s *decisionServiceImpl) applySnapshot(app *entity.Application, route *entity.ApprovalRoute) {
	if s.config.SnapshotRoutes {
		app.RouteSnapshot = route.ApproverIDs()
	}
}

// commit writes next only if the stored row still matches prev.
func (s *decisionServiceImpl) commit(ctx context.Context, prev, next *entity.Application) error {
	ok, err := s.appRepo.UpdateIfCurrent(ctx, next, port.ExpectedFrom(prev))
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Info("Concurrent decision detected", "application_id", prev.ID, "status", prev.Status)
		return apperrors.InvalidState(prev.ID, prev.Status)
	}
	return nil
}

func (s *decisionServiceImpl) recordHistory(ctx context.Context, app *entity.Application, actorID, action, fromStatus string, level int, comment string, at time.Time) error {
	h := &entity.ApprovalHistory{
		ID:            newID(),
		ApplicationID: app.ID,
		ActorID:       actorID,
		Action:        action,
		FromStatus:    fromStatus,
		ToStatus:      app.Status,
		Level:         level,
		Comment:       comment,
		CreatedAt:     at,
	}
	if err := s.historyRepo.Create(ctx, h); err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	return nil
}

func (s *decisionServiceImpl) publish(ctx context.Context, evtType event.Type, app *entity.Application, actorID, reason string) {
	if s.publisher == nil || evtType == "" {
		return
	}
	payload := map[string]interface{}{
		event.KeyApplicantID: app.ApplicantID,
		event.KeyApproverID:  app.ApproverID,
		event.KeyActorID:     actorID,
		event.KeyLevel:       app.CurrentLevel,
		event.KeyCodeID:      app.ApplicationCodeID,
	}
	if reason != "" {
		payload[event.KeyReason] = reason
	}
	// Observers run after the request has returned.
	s.publisher.DispatchAsync(context.WithoutCancel(ctx), event.NewEvent(evtType, app.ID, payload))
}
