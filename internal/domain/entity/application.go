package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// Application is one submitted document moving through an approval route.
type Application struct {
	ID                string          `json:"id"`
	ApplicantID       string          `json:"applicant_id"`
	ApplicationCodeID string          `json:"application_code_id"`
	ApprovalRouteID   string          `json:"approval_route_id"`
	FormData          json.RawMessage `json:"form_data"`
	Status            string          `json:"status"`
	CurrentLevel      int             `json:"current_level"`
	ApproverID        string          `json:"approver_id,omitempty"`
	// RouteSnapshot holds the ordered approver ids captured when the
	// application entered pending_approval. Empty for drafts and for
	// applications stored while snapshotting was disabled.
	RouteSnapshot   []string   `json:"route_snapshot,omitempty"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// IsTerminal reports whether no further transitions are permitted.
func (a *Application) IsTerminal() bool {
	return a.Status == StatusApproved || a.Status == StatusRejected
}

// LastActivity is the sort timestamp used by list views: UpdatedAt, or
// CreatedAt when UpdatedAt was never set.
func (a *Application) LastActivity() time.Time {
	if a.UpdatedAt.IsZero() {
		return a.CreatedAt
	}
	return a.UpdatedAt
}

// Clone returns a deep copy.
func (a *Application) Clone() *Application {
	if a == nil {
		return nil
	}
	c := *a
	if a.FormData != nil {
		c.FormData = append(json.RawMessage(nil), a.FormData...)
	}
	if a.RouteSnapshot != nil {
		c.RouteSnapshot = append([]string(nil), a.RouteSnapshot...)
	}
	c.SubmittedAt = cloneTime(a.SubmittedAt)
	c.ApprovedAt = cloneTime(a.ApprovedAt)
	c.RejectedAt = cloneTime(a.RejectedAt)
	return &c
}

// CheckInvariants verifies the per-status field rules against the ordered
// approver list the application is progressing through.
func (a *Application) CheckInvariants(steps []string) error {
	switch a.Status {
	case StatusDraft:
		if a.CurrentLevel != 0 || a.SubmittedAt != nil {
			return fmt.Errorf("draft %s must have level 0 and no submission time", a.ID)
		}
	case StatusPendingApproval:
		if a.CurrentLevel < 1 || a.CurrentLevel > len(steps) {
			return fmt.Errorf("pending %s has level %d outside 1..%d", a.ID, a.CurrentLevel, len(steps))
		}
		if a.ApproverID != steps[a.CurrentLevel-1] {
			return fmt.Errorf("pending %s expects approver %s, has %s", a.ID, steps[a.CurrentLevel-1], a.ApproverID)
		}
	case StatusApproved:
		if a.ApprovedAt == nil || a.RejectedAt != nil || a.RejectionReason != "" {
			return fmt.Errorf("approved %s has inconsistent decision fields", a.ID)
		}
	case StatusRejected:
		if a.RejectedAt == nil || a.ApprovedAt != nil || a.RejectionReason == "" {
			return fmt.Errorf("rejected %s has inconsistent decision fields", a.ID)
		}
	default:
		return fmt.Errorf("application %s has unknown status %q", a.ID, a.Status)
	}
	return nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
