package entity

import "time"

// ApprovalHistory records one committed transition of an application
type ApprovalHistory struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"application_id"`
	ActorID       string    `json:"actor_id"`
	Action        string    `json:"action"`
	FromStatus    string    `json:"from_status"`
	ToStatus      string    `json:"to_status"`
	Level         int       `json:"level"`
	Comment       string    `json:"comment,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
