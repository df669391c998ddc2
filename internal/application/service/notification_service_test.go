package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/erp-workflow/internal/application/dispatcher"
	"github.com/garyjia/erp-workflow/internal/domain/event"
	"github.com/garyjia/erp-workflow/internal/infrastructure/persistence/memory"
)

func newNotificationFixture(t *testing.T) (NotificationService, *mockSender, *mockLogger) {
	t.Helper()
	f := newFixture(t, true)
	sender := &mockSender{}
	logger := &mockLogger{}
	svc := NewNotificationService(f.users, memory.NewApplicationCodeRepository(f.store), sender, logger)
	return svc, sender, logger
}

func TestNotification_Recipients(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		evtType   event.Type
		recipient string
		contains  string
	}{
		{"submitted goes to approver", event.TypeApplicationSubmitted, "U1", "承認依頼"},
		{"advanced goes to next approver", event.TypeApplicationAdvanced, "U1", "承認待ち"},
		{"approved goes to applicant", event.TypeApplicationApproved, "U9", "承認されました"},
		{"rejected goes to applicant", event.TypeApplicationRejected, "U9", "領収書なし"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, sender, _ := newNotificationFixture(t)
			evt := event.NewEvent(tt.evtType, "app-1", map[string]interface{}{
				event.KeyApplicantID: "U9",
				event.KeyApproverID:  "U1",
				event.KeyLevel:       1,
				event.KeyCodeID:      codeExpense,
				event.KeyReason:      "領収書なし",
			})

			require.NoError(t, svc.HandleEvent(ctx, evt))
			require.Len(t, sender.sent[tt.recipient], 1)
			assert.Contains(t, sender.sent[tt.recipient][0], tt.contains)
			assert.Contains(t, sender.sent[tt.recipient][0], "経費精算")
		})
	}
}

func TestNotification_UnknownRecipientIsSkipped(t *testing.T) {
	svc, sender, logger := newNotificationFixture(t)
	evt := event.NewEvent(event.TypeApplicationSubmitted, "app-1", map[string]interface{}{
		event.KeyApproverID: "ghost",
	})

	require.NoError(t, svc.HandleEvent(context.Background(), evt))
	assert.Empty(t, sender.sent)
	assert.Contains(t, logger.infos, "Notification recipient not registered, skipping")
}

func TestNotification_SendFailure(t *testing.T) {
	svc, sender, logger := newNotificationFixture(t)
	sender.err = errors.New("lark down")
	evt := event.NewEvent(event.TypeApplicationApproved, "app-1", map[string]interface{}{
		event.KeyApplicantID: "U9",
	})

	err := svc.HandleEvent(context.Background(), evt)
	assert.ErrorContains(t, err, "lark down")
	assert.Contains(t, logger.errors, "Failed to send message")
}

func TestNotification_RegisterSubscribesAllTypes(t *testing.T) {
	svc, sender, _ := newNotificationFixture(t)
	d := dispatcher.NewDispatcher()
	svc.Register(d)

	for _, typ := range event.All() {
		assert.Len(t, d.ListHandlers(typ), 1, typ.String())
	}

	evt := event.NewEvent(event.TypeApplicationApproved, "app-1", map[string]interface{}{event.KeyApplicantID: "U9"})
	require.NoError(t, d.Dispatch(context.Background(), evt))
	assert.Len(t, sender.sent["U9"], 1)
}
