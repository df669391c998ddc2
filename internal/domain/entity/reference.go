package entity

import "time"

// ApplicationCode identifies the type of a request and the form schema it uses.
type ApplicationCode struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// User is the display record for an applicant or approver.
type User struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	Email      string `json:"email,omitempty" yaml:"email"`
	Department string `json:"department,omitempty" yaml:"department"`
	LarkOpenID string `json:"-" yaml:"lark_open_id"`
}

// DisplayName falls back to the id when no name is recorded.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}
