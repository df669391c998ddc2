package entity

import (
	"encoding/json"
	"testing"
	"time"
)

func TestApplication_CheckInvariants(t *testing.T) {
	now := time.Now()
	steps := []string{"U1", "U2"}

	tests := []struct {
		name    string
		app     Application
		wantErr bool
	}{
		{"draft ok", Application{ID: "a", Status: StatusDraft}, false},
		{"draft with level", Application{ID: "a", Status: StatusDraft, CurrentLevel: 1}, true},
		{"draft with submitted", Application{ID: "a", Status: StatusDraft, SubmittedAt: &now}, true},
		{"pending level 1", Application{ID: "a", Status: StatusPendingApproval, CurrentLevel: 1, ApproverID: "U1"}, false},
		{"pending level 2", Application{ID: "a", Status: StatusPendingApproval, CurrentLevel: 2, ApproverID: "U2"}, false},
		{"pending wrong approver", Application{ID: "a", Status: StatusPendingApproval, CurrentLevel: 2, ApproverID: "U1"}, true},
		{"pending past end", Application{ID: "a", Status: StatusPendingApproval, CurrentLevel: 3, ApproverID: "U2"}, true},
		{"pending level 0", Application{ID: "a", Status: StatusPendingApproval}, true},
		{"approved ok", Application{ID: "a", Status: StatusApproved, CurrentLevel: 3, ApprovedAt: &now}, false},
		{"approved with reason", Application{ID: "a", Status: StatusApproved, ApprovedAt: &now, RejectionReason: "x"}, true},
		{"approved without time", Application{ID: "a", Status: StatusApproved}, true},
		{"rejected ok", Application{ID: "a", Status: StatusRejected, CurrentLevel: 1, RejectedAt: &now, RejectionReason: "missing receipt"}, false},
		{"rejected without reason", Application{ID: "a", Status: StatusRejected, RejectedAt: &now}, true},
		{"unknown status", Application{ID: "a", Status: "archived"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.app.CheckInvariants(steps)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckInvariants() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplication_Clone(t *testing.T) {
	now := time.Now()
	orig := &Application{
		ID:            "a1",
		FormData:      json.RawMessage(`{"amount":100}`),
		RouteSnapshot: []string{"U1", "U2"},
		SubmittedAt:   &now,
	}

	c := orig.Clone()
	c.RouteSnapshot[0] = "X"
	c.FormData[2] = 'X'
	later := now.Add(time.Hour)
	*c.SubmittedAt = later

	if orig.RouteSnapshot[0] != "U1" {
		t.Error("clone shares RouteSnapshot with original")
	}
	if string(orig.FormData) != `{"amount":100}` {
		t.Error("clone shares FormData with original")
	}
	if !orig.SubmittedAt.Equal(now) {
		t.Error("clone shares SubmittedAt with original")
	}
}

func TestApplication_LastActivity(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)

	a := &Application{CreatedAt: created}
	if !a.LastActivity().Equal(created) {
		t.Errorf("LastActivity() = %v, want createdAt", a.LastActivity())
	}
	a.UpdatedAt = updated
	if !a.LastActivity().Equal(updated) {
		t.Errorf("LastActivity() = %v, want updatedAt", a.LastActivity())
	}
}

func TestApprovalRoute_Validate(t *testing.T) {
	tests := []struct {
		name    string
		route   ApprovalRoute
		wantErr bool
	}{
		{"valid", ApprovalRoute{Name: "社長決裁ルート", Steps: StepsFromIDs("U1")}, false},
		{"no name", ApprovalRoute{Steps: StepsFromIDs("U1")}, true},
		{"no steps", ApprovalRoute{Name: "empty"}, true},
		{"blank approver", ApprovalRoute{Name: "r", Steps: StepsFromIDs("U1", " ")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.route.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApprovalRoute_ApproverIDs(t *testing.T) {
	r := ApprovalRoute{Steps: StepsFromIDs("U1", "U2", "U3")}
	ids := r.ApproverIDs()
	if len(ids) != 3 || ids[0] != "U1" || ids[2] != "U3" {
		t.Errorf("ApproverIDs() = %v", ids)
	}
}

func TestApplicationWithDetails_Fallbacks(t *testing.T) {
	d := &ApplicationWithDetails{Application: &Application{ApplicantID: "U9", ApplicationCodeID: "code-1", ApprovalRouteID: "route-1"}}
	if d.ApplicantName() != "U9" || d.TypeName() != "code-1" || d.RouteName() != "route-1" {
		t.Errorf("fallbacks = %q %q %q", d.ApplicantName(), d.TypeName(), d.RouteName())
	}

	d.Applicant = &User{ID: "U9", Name: "山田 太郎"}
	d.ApplicationCode = &ApplicationCode{Name: "経費精算"}
	if d.ApplicantName() != "山田 太郎" || d.TypeName() != "経費精算" {
		t.Errorf("resolved = %q %q", d.ApplicantName(), d.TypeName())
	}
}
