package entity

import (
	"fmt"
	"strings"
	"time"
)

// RouteStep is one position in an approval route.
type RouteStep struct {
	ApproverID string `json:"approver_id" yaml:"approver_id"`
}

// ApprovalRoute is a named, ordered list of approvers used as a template.
type ApprovalRoute struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Steps     []RouteStep `json:"steps"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ApproverIDs returns the approver ids in step order.
func (r *ApprovalRoute) ApproverIDs() []string {
	ids := make([]string, len(r.Steps))
	for i, s := range r.Steps {
		ids[i] = s.ApproverID
	}
	return ids
}

// Validate checks that the route can be instantiated.
func (r *ApprovalRoute) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("route name is required")
	}
	if len(r.Steps) == 0 {
		return fmt.Errorf("route %q must have at least one step", r.Name)
	}
	for i, s := range r.Steps {
		if strings.TrimSpace(s.ApproverID) == "" {
			return fmt.Errorf("route %q step %d has no approver", r.Name, i+1)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (r *ApprovalRoute) Clone() *ApprovalRoute {
	if r == nil {
		return nil
	}
	c := *r
	c.Steps = append([]RouteStep(nil), r.Steps...)
	return &c
}

// StepsFromIDs builds route steps from approver ids.
func StepsFromIDs(ids ...string) []RouteStep {
	steps := make([]RouteStep, len(ids))
	for i, id := range ids {
		steps[i] = RouteStep{ApproverID: id}
	}
	return steps
}
