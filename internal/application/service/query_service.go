package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/garyjia/erp-workflow/internal/application/port"
	"github.com/garyjia/erp-workflow/internal/domain/entity"
	apperrors "github.com/garyjia/erp-workflow/internal/pkg/errors"
)

// View names one of the list tabs
type View string

const (
	ViewPending   View = "pending"
	ViewSubmitted View = "submitted"
	ViewCompleted View = "completed"
)

// ParseView validates a view name
func ParseView(s string) (View, error) {
	switch v := View(s); v {
	case ViewPending, ViewSubmitted, ViewCompleted:
		return v, nil
	}
	return "", apperrors.Validation(fmt.Sprintf("unknown view %q", s))
}

// Sort keys accepted by ListOptions.SortBy
const (
	SortUpdatedAt    = "updated_at"
	SortCreatedAt    = "created_at"
	SortSubmittedAt  = "submitted_at"
	SortApplicant    = "applicant"
	SortType         = "type"
	SortStatus       = "status"
	SortCurrentLevel = "current_level"
	SortApprover     = "approver"
	SortRoute        = "route"
)

// Sort orders
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// ListOptions narrows and orders a view
type ListOptions struct {
	Query  string
	SortBy string
	Order  string
}

// QueryService answers the list views. All methods are read-only.
type QueryService interface {
	PendingForApprover(ctx context.Context, userID string) ([]*entity.ApplicationWithDetails, error)
	SubmittedBy(ctx context.Context, userID string) ([]*entity.ApplicationWithDetails, error)
	// Completed returns every approved or rejected application regardless
	// of who asks.
	Completed(ctx context.Context) ([]*entity.ApplicationWithDetails, error)
	// List returns a view filtered by opts.Query and sorted by opts.SortBy.
	List(ctx context.Context, view View, userID string, opts ListOptions) ([]*entity.ApplicationWithDetails, error)
	GetApplication(ctx context.Context, id string) (*entity.ApplicationWithDetails, error)
	History(ctx context.Context, applicationID string) ([]*entity.ApprovalHistory, error)
}

type queryServiceImpl struct {
	appRepo     port.ApplicationRepository
	userRepo    port.UserRepository
	codeRepo    port.ApplicationCodeRepository
	routeRepo   port.RouteRepository
	historyRepo port.HistoryRepository
	logger      Logger
}

// NewQueryService creates a new QueryService
func NewQueryService(
	appRepo port.ApplicationRepository,
	userRepo port.UserRepository,
	codeRepo port.ApplicationCodeRepository,
	routeRepo port.RouteRepository,
	historyRepo port.HistoryRepository,
	logger Logger,
) QueryService {
	return &queryServiceImpl{
		appRepo:     appRepo,
		userRepo:    userRepo,
		codeRepo:    codeRepo,
		routeRepo:   routeRepo,
		historyRepo: historyRepo,
		logger:      logger,
	}
}

func (s *queryServiceImpl) PendingForApprover(ctx context.Context, userID string) ([]*entity.ApplicationWithDetails, error) {
	return s.List(ctx, ViewPending, userID, ListOptions{})
}

func (s *queryServiceImpl) SubmittedBy(ctx context.Context, userID string) ([]*entity.ApplicationWithDetails, error) {
	return s.List(ctx, ViewSubmitted, userID, ListOptions{})
}

func (s *queryServiceImpl) Completed(ctx context.Context) ([]*entity.ApplicationWithDetails, error) {
	return s.List(ctx, ViewCompleted, "", ListOptions{})
}

func (s *queryServiceImpl) List(ctx context.Context, view View, userID string, opts ListOptions) ([]*entity.ApplicationWithDetails, error) {
	filter, err := viewFilter(view, userID)
	if err != nil {
		return nil, err
	}
	if err := validateSort(opts.SortBy, opts.Order); err != nil {
		return nil, err
	}

	apps, err := s.appRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list applications", "error", err, "view", string(view))
		return nil, err
	}

	items, err := s.project(ctx, apps)
	if err != nil {
		return nil, err
	}

	items = Search(items, opts.Query)
	Sort(items, opts.SortBy, opts.Order)
	return items, nil
}

func (s *queryServiceImpl) GetApplication(ctx context.Context, id string) (*entity.ApplicationWithDetails, error) {
	app, err := s.appRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, apperrors.ApplicationNotFound(id)
	}
	items, err := s.project(ctx, []*entity.Application{app})
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

func (s *queryServiceImpl) History(ctx context.Context, applicationID string) ([]*entity.ApprovalHistory, error) {
	app, err := s.appRepo.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, apperrors.ApplicationNotFound(applicationID)
	}
	return s.historyRepo.ListByApplication(ctx, applicationID)
}

func viewFilter(view View, userID string) (port.ApplicationFilter, error) {
	switch view {
	case ViewPending:
		if userID == "" {
			return port.ApplicationFilter{}, apperrors.Validation("user id is required for the pending view")
		}
		return port.ApplicationFilter{ApproverID: userID, Statuses: []string{entity.StatusPendingApproval}}, nil
	case ViewSubmitted:
		if userID == "" {
			return port.ApplicationFilter{}, apperrors.Validation("user id is required for the submitted view")
		}
		return port.ApplicationFilter{ApplicantID: userID}, nil
	case ViewCompleted:
		return port.ApplicationFilter{Statuses: []string{entity.StatusApproved, entity.StatusRejected}}, nil
	}
	return port.ApplicationFilter{}, apperrors.Validation(fmt.Sprintf("unknown view %q", view))
}

// project joins display records onto apps. Missing references are left nil.
func (s *queryServiceImpl) project(ctx context.Context, apps []*entity.Application) ([]*entity.ApplicationWithDetails, error) {
	if len(apps) == 0 {
		return []*entity.ApplicationWithDetails{}, nil
	}

	ids := make([]string, 0, len(apps))
	seen := make(map[string]bool, len(apps))
	for _, a := range apps {
		if !seen[a.ApplicantID] {
			seen[a.ApplicantID] = true
			ids = append(ids, a.ApplicantID)
		}
	}
	users, err := s.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load applicants: %w", err)
	}

	codes, err := s.codeRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load application codes: %w", err)
	}
	codeByID := make(map[string]*entity.ApplicationCode, len(codes))
	for _, c := range codes {
		codeByID[c.ID] = c
	}

	routes, err := s.routeRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load routes: %w", err)
	}
	routeByID := make(map[string]*entity.ApprovalRoute, len(routes))
	for _, r := range routes {
		routeByID[r.ID] = r
	}

	items := make([]*entity.ApplicationWithDetails, len(apps))
	for i, a := range apps {
		items[i] = &entity.ApplicationWithDetails{
			Application:     a,
			Applicant:       users[a.ApplicantID],
			ApplicationCode: codeByID[a.ApplicationCodeID],
			ApprovalRoute:   routeByID[a.ApprovalRouteID],
		}
	}
	return items, nil
}

// Search keeps items whose applicant name, type name or status contains q,
// ignoring case. An empty q keeps everything.
func Search(items []*entity.ApplicationWithDetails, q string) []*entity.ApplicationWithDetails {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return items
	}
	out := make([]*entity.ApplicationWithDetails, 0, len(items))
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.ApplicantName()), q) ||
			strings.Contains(strings.ToLower(it.TypeName()), q) ||
			strings.Contains(strings.ToLower(it.Status), q) {
			out = append(out, it)
		}
	}
	return out
}

func validateSort(key, order string) error {
	if key != "" {
		if _, ok := lessFuncs[key]; !ok {
			return apperrors.Validation(fmt.Sprintf("unknown sort key %q", key))
		}
	}
	switch order {
	case "", OrderAsc, OrderDesc:
		return nil
	}
	return apperrors.Validation(fmt.Sprintf("unknown sort order %q", order))
}

type lessFunc func(a, b *entity.ApplicationWithDetails) bool

var lessFuncs = map[string]lessFunc{
	SortUpdatedAt: func(a, b *entity.ApplicationWithDetails) bool {
		return a.LastActivity().Before(b.LastActivity())
	},
	SortCreatedAt: func(a, b *entity.ApplicationWithDetails) bool {
		return a.CreatedAt.Before(b.CreatedAt)
	},
	SortSubmittedAt: func(a, b *entity.ApplicationWithDetails) bool {
		return timeOrZero(a.SubmittedAt).Before(timeOrZero(b.SubmittedAt))
	},
	SortApplicant: func(a, b *entity.ApplicationWithDetails) bool {
		return a.ApplicantName() < b.ApplicantName()
	},
	SortType: func(a, b *entity.ApplicationWithDetails) bool {
		return a.TypeName() < b.TypeName()
	},
	SortStatus: func(a, b *entity.ApplicationWithDetails) bool {
		return a.Status < b.Status
	},
	SortCurrentLevel: func(a, b *entity.ApplicationWithDetails) bool {
		return a.CurrentLevel < b.CurrentLevel
	},
	SortApprover: func(a, b *entity.ApplicationWithDetails) bool {
		return a.ApproverID < b.ApproverID
	},
	SortRoute: func(a, b *entity.ApplicationWithDetails) bool {
		return a.RouteName() < b.RouteName()
	},
}

// Sort orders items in place by key, defaulting to last activity descending.
// Comparison is strict, so equal items keep their input order.
func Sort(items []*entity.ApplicationWithDetails, key, order string) {
	if key == "" {
		key = SortUpdatedAt
	}
	less, ok := lessFuncs[key]
	if !ok {
		return
	}
	if order == OrderAsc {
		sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
		return
	}
	sort.SliceStable(items, func(i, j int) bool { return less(items[j], items[i]) })
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
