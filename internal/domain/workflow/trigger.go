package workflow

// Trigger is a decision that can move an application between states
type Trigger string

const (
	TriggerSubmit  Trigger = "submit"
	TriggerApprove Trigger = "approve"
	TriggerReject  Trigger = "reject"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
