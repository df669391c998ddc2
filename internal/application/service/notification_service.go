package service

import (
	"context"
	"fmt"

	"github.com/garyjia/erp-workflow/internal/application/dispatcher"
	"github.com/garyjia/erp-workflow/internal/application/port"
	"github.com/garyjia/erp-workflow/internal/domain/event"
)

// NotificationService tells approvers and applicants about committed transitions
type NotificationService interface {
	HandleEvent(ctx context.Context, evt *event.Event) error
	// Register subscribes HandleEvent to every application event type
	Register(d dispatcher.Dispatcher)
}

type notificationServiceImpl struct {
	userRepo      port.UserRepository
	codeRepo      port.ApplicationCodeRepository
	messageSender port.MessageSender
	logger        Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	userRepo port.UserRepository,
	codeRepo port.ApplicationCodeRepository,
	messageSender port.MessageSender,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		userRepo:      userRepo,
		codeRepo:      codeRepo,
		messageSender: messageSender,
		logger:        logger,
	}
}

func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	for _, t := range event.All() {
		d.SubscribeNamed(t, "notification", s.HandleEvent)
	}
}

// HandleEvent sends one message per event. Unknown recipients are skipped.
func (s *notificationServiceImpl) HandleEvent(ctx context.Context, evt *event.Event) error {
	var recipientID string
	switch evt.Type {
	case event.TypeApplicationSubmitted, event.TypeApplicationAdvanced:
		recipientID = evt.GetPayloadString(event.KeyApproverID)
	case event.TypeApplicationApproved, event.TypeApplicationRejected:
		recipientID = evt.GetPayloadString(event.KeyApplicantID)
	default:
		return nil
	}
	if recipientID == "" {
		return nil
	}

	recipient, err := s.userRepo.GetByID(ctx, recipientID)
	if err != nil {
		s.logger.Error("Failed to get recipient", "error", err, "user_id", recipientID)
		return fmt.Errorf("get recipient: %w", err)
	}
	if recipient == nil {
		s.logger.Info("Notification recipient not registered, skipping", "user_id", recipientID, "event_type", evt.Type.String())
		return nil
	}

	message := s.buildMessage(ctx, evt)
	if err := s.messageSender.SendText(ctx, recipient, message); err != nil {
		s.logger.Error("Failed to send message", "error", err, "application_id", evt.ApplicationID, "user_id", recipientID)
		return fmt.Errorf("send message: %w", err)
	}

	s.logger.Info("Notification sent successfully",
		"application_id", evt.ApplicationID,
		"event_type", evt.Type.String(),
		"user_id", recipientID,
	)
	return nil
}

func (s *notificationServiceImpl) buildMessage(ctx context.Context, evt *event.Event) string {
	typeName := s.typeName(ctx, evt.GetPayloadString(event.KeyCodeID))

	switch evt.Type {
	case event.TypeApplicationSubmitted:
		return fmt.Sprintf("%sの承認依頼が届きました。\n\n申請ID: %s\n承認段階: %d",
			typeName, evt.ApplicationID, evt.GetPayloadInt(event.KeyLevel))
	case event.TypeApplicationAdvanced:
		return fmt.Sprintf("%sが前段階で承認され、あなたの承認待ちになりました。\n\n申請ID: %s\n承認段階: %d",
			typeName, evt.ApplicationID, evt.GetPayloadInt(event.KeyLevel))
	case event.TypeApplicationApproved:
		return fmt.Sprintf("あなたの%sが承認されました。\n\n申請ID: %s", typeName, evt.ApplicationID)
	case event.TypeApplicationRejected:
		return fmt.Sprintf("あなたの%sが却下されました。\n\n申請ID: %s\n却下理由: %s",
			typeName, evt.ApplicationID, evt.GetPayloadString(event.KeyReason))
	}
	return evt.ApplicationID
}

func (s *notificationServiceImpl) typeName(ctx context.Context, codeID string) string {
	if codeID == "" {
		return "申請"
	}
	code, err := s.codeRepo.GetByID(ctx, codeID)
	if err != nil || code == nil {
		return "申請"
	}
	return code.Name
}

