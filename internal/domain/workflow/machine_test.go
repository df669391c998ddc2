package workflow

import (
	"context"
	"errors"
	"testing"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateDraft, false},
		{StatePendingApproval, false},
		{StateApproved, true},
		{StateRejected, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseState(t *testing.T) {
	tests := []struct {
		status  string
		want    State
		wantErr bool
	}{
		{"draft", StateDraft, false},
		{"pending_approval", StatePendingApproval, false},
		{"approved", StateApproved, false},
		{"rejected", StateRejected, false},
		{"PENDING", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			got, err := ParseState(tt.status)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseState() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidState) {
				t.Errorf("ParseState() error = %v, want ErrInvalidState", err)
			}
			if got != tt.want {
				t.Errorf("ParseState() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrigger_String(t *testing.T) {
	if got := TriggerApprove.String(); got != "approve" {
		t.Errorf("Trigger.String() = %v, want approve", got)
	}
}

func TestBuilder_ConfigureReturnsSameTable(t *testing.T) {
	builder := NewBuilder()
	if builder.Configure(StateDraft) != builder.Configure(StateDraft) {
		t.Error("Configure() should return same config for same state")
	}
}

func TestBuilder_PanicsOnInvalidStates(t *testing.T) {
	cases := map[string]func(){
		"configure": func() { NewBuilder().Configure(State("archived")) },
		"build":     func() { NewBuilder().Build(State("archived")) },
		"permit":    func() { NewBuilder().Configure(StateDraft).Permit(TriggerSubmit, State("archived")) },
	}

	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("%s should panic on invalid state", name)
				}
			}()
			fn()
		})
	}
}

func TestStateMachine_Permit(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateDraft).Permit(TriggerSubmit, StatePendingApproval)

	machine := builder.Build(StateDraft)
	if !machine.CanFire(TriggerSubmit) {
		t.Error("CanFire() should return true for permitted trigger")
	}

	to, err := machine.Fire(context.Background(), TriggerSubmit)
	if err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if to != StatePendingApproval || machine.State() != StatePendingApproval {
		t.Errorf("State after Fire() = %v, want %v", machine.State(), StatePendingApproval)
	}
}

func TestStateMachine_GuardOrder(t *testing.T) {
	final := false
	builder := NewBuilder()
	builder.Configure(StatePendingApproval).
		PermitIf(TriggerApprove, StateApproved, func(ctx context.Context) bool { return final }).
		PermitIf(TriggerApprove, StatePendingApproval, func(ctx context.Context) bool { return !final })

	m1 := builder.Build(StatePendingApproval)
	if to, err := m1.Fire(context.Background(), TriggerApprove); err != nil || to != StatePendingApproval {
		t.Errorf("Fire() = %v, %v; want pending_approval", to, err)
	}

	final = true
	m2 := builder.Build(StatePendingApproval)
	if to, err := m2.Fire(context.Background(), TriggerApprove); err != nil || to != StateApproved {
		t.Errorf("Fire() = %v, %v; want approved", to, err)
	}
}

func TestStateMachine_GuardFails(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateDraft).
		PermitIf(TriggerSubmit, StatePendingApproval, func(ctx context.Context) bool { return false })

	machine := builder.Build(StateDraft)
	_, err := machine.Fire(context.Background(), TriggerSubmit)
	if !errors.Is(err, ErrGuardFailed) {
		t.Errorf("Fire() error = %v, want %v", err, ErrGuardFailed)
	}
	if machine.State() != StateDraft {
		t.Errorf("State should remain draft after failed Fire(), got %v", machine.State())
	}
}

func TestStateMachine_InvalidTransition(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateDraft).Permit(TriggerSubmit, StatePendingApproval)

	tests := []struct {
		name    string
		initial State
		trigger Trigger
	}{
		{"approve a draft", StateDraft, TriggerApprove},
		{"approve when approved", StateApproved, TriggerApprove},
		{"reject when rejected", StateRejected, TriggerReject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := builder.Build(tt.initial)
			_, err := machine.Fire(context.Background(), tt.trigger)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Fire() error = %v, want %v", err, ErrInvalidTransition)
			}
			if machine.State() != tt.initial {
				t.Errorf("State changed to %v after failed Fire()", machine.State())
			}
		})
	}
}

func TestStateMachine_PermittedTriggersSorted(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePendingApproval).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerApprove, StateApproved)

	triggers := builder.Build(StatePendingApproval).PermittedTriggers()
	if len(triggers) != 2 || triggers[0] != TriggerApprove || triggers[1] != TriggerReject {
		t.Errorf("PermittedTriggers() = %v, want [approve reject]", triggers)
	}

	if got := builder.Build(StateApproved).PermittedTriggers(); len(got) != 0 {
		t.Errorf("PermittedTriggers() on terminal = %v, want none", got)
	}
}

func TestStateMachine_BuildSnapshotsConfiguration(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateDraft).Permit(TriggerSubmit, StatePendingApproval)

	machine := builder.Build(StateDraft)
	builder.Configure(StateDraft).Permit(TriggerReject, StateRejected)

	if machine.CanFire(TriggerReject) {
		t.Error("machine should not see transitions added after Build()")
	}
}

func TestStateMachine_Independence(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateDraft).Permit(TriggerSubmit, StatePendingApproval)

	m1 := builder.Build(StateDraft)
	m2 := builder.Build(StateDraft)
	if _, err := m1.Fire(context.Background(), TriggerSubmit); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if m2.State() != StateDraft {
		t.Errorf("m2 state = %v, want draft", m2.State())
	}
}
