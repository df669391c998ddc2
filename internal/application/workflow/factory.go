package workflow

import (
	"context"

	domainwf "github.com/garyjia/erp-workflow/internal/domain/workflow"
)

// BuildApplicationStateMachine creates the lifecycle machine for one
// application. finalStep is consulted by the approve guards after the level
// has been incremented, so it must report whether the new level has run past
// the last step.
func BuildApplicationStateMachine(initialState domainwf.State, finalStep func() bool) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	builder.Configure(domainwf.StateDraft).
		Permit(domainwf.TriggerSubmit, domainwf.StatePendingApproval)

	builder.Configure(domainwf.StatePendingApproval).
		PermitIf(domainwf.TriggerApprove, domainwf.StateApproved, func(ctx context.Context) bool {
			return finalStep()
		}).
		PermitIf(domainwf.TriggerApprove, domainwf.StatePendingApproval, func(ctx context.Context) bool {
			return !finalStep()
		}).
		Permit(domainwf.TriggerReject, domainwf.StateRejected)

	// approved and rejected are terminal

	return builder.Build(initialState)
}
