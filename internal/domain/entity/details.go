package entity

// ApplicationWithDetails is the read projection of an Application. It is
// rebuilt on every read and never persisted.
type ApplicationWithDetails struct {
	*Application
	Applicant       *User            `json:"applicant"`
	ApplicationCode *ApplicationCode `json:"application_code,omitempty"`
	ApprovalRoute   *ApprovalRoute   `json:"approval_route,omitempty"`
}

// ApplicantName returns the applicant display name, or the raw id.
func (d *ApplicationWithDetails) ApplicantName() string {
	if d.Applicant != nil {
		return d.Applicant.DisplayName()
	}
	return d.ApplicantID
}

// TypeName returns the application type display name, or the code id.
func (d *ApplicationWithDetails) TypeName() string {
	if d.ApplicationCode != nil {
		return d.ApplicationCode.Name
	}
	return d.ApplicationCodeID
}

// RouteName returns the route name, or the route id.
func (d *ApplicationWithDetails) RouteName() string {
	if d.ApprovalRoute != nil {
		return d.ApprovalRoute.Name
	}
	return d.ApprovalRouteID
}
