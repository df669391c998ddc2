package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/garyjia/erp-workflow/internal/domain/entity"
	"github.com/garyjia/erp-workflow/internal/domain/event"
	domainwf "github.com/garyjia/erp-workflow/internal/domain/workflow"
	apperrors "github.com/garyjia/erp-workflow/internal/pkg/errors"
)

// Transition is a computed, not yet persisted, state change.
type Transition struct {
	Trigger domainwf.Trigger
	From    domainwf.State
	To      domainwf.State
	// Next is a modified copy; the input application is never mutated.
	Next  *entity.Application
	Event event.Type
}

// Authorize checks that actorID may fire trigger on app right now. A wrong
// lifecycle state is reported before a wrong approver.
func Authorize(app *entity.Application, trigger domainwf.Trigger, actorID string) error {
	state, err := domainwf.ParseState(app.Status)
	if err != nil {
		return apperrors.InvalidState(app.ID, app.Status)
	}
	machine := BuildApplicationStateMachine(state, func() bool { return false })
	if !machine.CanFire(trigger) {
		return apperrors.InvalidState(app.ID, app.Status)
	}
	if trigger != domainwf.TriggerSubmit && app.ApproverID != actorID {
		return apperrors.Unauthorized(app.ID, actorID)
	}
	return nil
}

// Submit moves a draft (or a new application held as draft) into
// pending_approval at level 1.
func Submit(ctx context.Context, app *entity.Application, steps []string, now time.Time) (*Transition, error) {
	if len(steps) == 0 {
		return nil, apperrors.Validation("approval route has no steps")
	}

	state, err := domainwf.ParseState(app.Status)
	if err != nil {
		return nil, apperrors.InvalidState(app.ID, app.Status)
	}

	next := app.Clone()
	machine := BuildApplicationStateMachine(state, func() bool { return false })
	to, err := machine.Fire(ctx, domainwf.TriggerSubmit)
	if err != nil {
		return nil, mapFireError(app, err)
	}

	next.Status = to.String()
	next.CurrentLevel = 1
	next.ApproverID = steps[0]
	next.SubmittedAt = &now
	next.UpdatedAt = now

	return &Transition{
		Trigger: domainwf.TriggerSubmit,
		From:    domainwf.State(app.Status),
		To:      to,
		Next:    next,
		Event:   event.TypeApplicationSubmitted,
	}, nil
}

// Approve confirms the current step. The level is always incremented first;
// the application completes when the new level exceeds the number of steps.
func Approve(ctx context.Context, app *entity.Application, actorID string, steps []string, now time.Time) (*Transition, error) {
	if err := Authorize(app, domainwf.TriggerApprove, actorID); err != nil {
		return nil, err
	}

	next := app.Clone()
	next.CurrentLevel++

	machine := BuildApplicationStateMachine(domainwf.State(app.Status), func() bool {
		return next.CurrentLevel > len(steps)
	})
	to, err := machine.Fire(ctx, domainwf.TriggerApprove)
	if err != nil {
		return nil, mapFireError(app, err)
	}

	next.Status = to.String()
	next.UpdatedAt = now

	evt := event.TypeApplicationAdvanced
	if to == domainwf.StateApproved {
		next.ApproverID = ""
		next.ApprovedAt = &now
		evt = event.TypeApplicationApproved
	} else {
		next.ApproverID = steps[next.CurrentLevel-1]
	}

	return &Transition{
		Trigger: domainwf.TriggerApprove,
		From:    domainwf.State(app.Status),
		To:      to,
		Next:    next,
		Event:   evt,
	}, nil
}

// Reject terminates the application at its current level. An empty reason is
// refused before any state check.
func Reject(ctx context.Context, app *entity.Application, actorID, reason string, now time.Time) (*Transition, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.Validation("rejection reason is required")
	}
	if err := Authorize(app, domainwf.TriggerReject, actorID); err != nil {
		return nil, err
	}

	next := app.Clone()
	machine := BuildApplicationStateMachine(domainwf.State(app.Status), func() bool { return false })
	to, err := machine.Fire(ctx, domainwf.TriggerReject)
	if err != nil {
		return nil, mapFireError(app, err)
	}

	next.Status = to.String()
	next.RejectedAt = &now
	next.RejectionReason = reason
	next.UpdatedAt = now

	return &Transition{
		Trigger: domainwf.TriggerReject,
		From:    domainwf.State(app.Status),
		To:      to,
		Next:    next,
		Event:   event.TypeApplicationRejected,
	}, nil
}

func mapFireError(app *entity.Application, err error) error {
	if errors.Is(err, domainwf.ErrInvalidTransition) || errors.Is(err, domainwf.ErrGuardFailed) {
		return apperrors.InvalidState(app.ID, app.Status)
	}
	return err
}
