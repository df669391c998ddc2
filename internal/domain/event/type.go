package event

// Type identifies the type of domain event
type Type string

const (
	TypeApplicationSubmitted Type = "application.submitted"
	TypeApplicationAdvanced  Type = "application.advanced"
	TypeApplicationApproved  Type = "application.approved"
	TypeApplicationRejected  Type = "application.rejected"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeApplicationSubmitted,
		TypeApplicationAdvanced,
		TypeApplicationApproved,
		TypeApplicationRejected:
		return true
	default:
		return false
	}
}

// All returns every defined event type.
func All() []Type {
	return []Type{
		TypeApplicationSubmitted,
		TypeApplicationAdvanced,
		TypeApplicationApproved,
		TypeApplicationRejected,
	}
}
