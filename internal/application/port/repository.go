package port

import (
	"context"
	"time"

	"github.com/garyjia/erp-workflow/internal/domain/entity"
)

// ApplicationFilter narrows ApplicationRepository.List. Zero fields match everything.
type ApplicationFilter struct {
	ApplicantID string
	ApproverID  string
	Statuses    []string
}

// Matches reports whether app satisfies the filter.
func (f ApplicationFilter) Matches(app *entity.Application) bool {
	if f.ApplicantID != "" && app.ApplicantID != f.ApplicantID {
		return false
	}
	if f.ApproverID != "" && app.ApproverID != f.ApproverID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if app.Status == s {
			return true
		}
	}
	return false
}

// ExpectedState is the row state a decision was computed from. A conditional
// update only applies while the stored row still has exactly these values.
type ExpectedState struct {
	Status       string
	ApproverID   string
	CurrentLevel int
}

// ExpectedFrom captures the decision-relevant fields of app.
func ExpectedFrom(app *entity.Application) ExpectedState {
	return ExpectedState{Status: app.Status, ApproverID: app.ApproverID, CurrentLevel: app.CurrentLevel}
}

// ApplicationRepository defines persistence operations for Application
type ApplicationRepository interface {
	Create(ctx context.Context, app *entity.Application) error
	// GetByID returns nil, nil when the application does not exist
	GetByID(ctx context.Context, id string) (*entity.Application, error)
	// List returns matching applications ordered by creation time
	List(ctx context.Context, filter ApplicationFilter) ([]*entity.Application, error)
	// UpdateIfCurrent stores next only if the row identified by next.ID still
	// matches expected. It returns false when another decision won the race.
	UpdateIfCurrent(ctx context.Context, next *entity.Application, expected ExpectedState) (bool, error)
}

// RouteRepository defines persistence operations for ApprovalRoute
type RouteRepository interface {
	Create(ctx context.Context, route *entity.ApprovalRoute) error
	GetByID(ctx context.Context, id string) (*entity.ApprovalRoute, error)
	GetByName(ctx context.Context, name string) (*entity.ApprovalRoute, error)
	// List returns routes in a stable order (creation time, then id)
	List(ctx context.Context) ([]*entity.ApprovalRoute, error)
	UpdateSteps(ctx context.Context, id string, steps []entity.RouteStep, updatedAt time.Time) error
}

// ApplicationCodeRepository defines persistence operations for ApplicationCode
type ApplicationCodeRepository interface {
	Create(ctx context.Context, code *entity.ApplicationCode) error
	GetByID(ctx context.Context, id string) (*entity.ApplicationCode, error)
	GetByCode(ctx context.Context, code string) (*entity.ApplicationCode, error)
	List(ctx context.Context) ([]*entity.ApplicationCode, error)
}

// UserRepository defines persistence operations for User
type UserRepository interface {
	Upsert(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	// GetByIDs returns the users that exist, keyed by id
	GetByIDs(ctx context.Context, ids []string) (map[string]*entity.User, error)
	List(ctx context.Context) ([]*entity.User, error)
}

// HistoryRepository defines persistence operations for ApprovalHistory
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.ApprovalHistory) error
	// ListByApplication returns records oldest first
	ListByApplication(ctx context.Context, applicationID string) ([]*entity.ApprovalHistory, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
