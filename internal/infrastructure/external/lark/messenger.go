package lark

import (
	"context"
	"encoding/json"
	"fmt"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/erp-workflow/internal/application/port"
	"github.com/garyjia/erp-workflow/internal/domain/entity"
)

// Messenger implements port.MessageSender over the Lark IM API
type Messenger struct {
	client *SDKClient
	logger *zap.Logger
}

// NewMessenger creates a new Lark message sender
func NewMessenger(client *SDKClient, logger *zap.Logger) *Messenger {
	return &Messenger{
		client: client,
		logger: logger,
	}
}

// SendText sends a plain text message to the user's Lark open_id
func (m *Messenger) SendText(ctx context.Context, to *entity.User, text string) error {
	if to == nil || to.LarkOpenID == "" {
		return fmt.Errorf("user has no lark open_id")
	}
	if text == "" {
		return fmt.Errorf("content cannot be empty")
	}

	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal message content: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType("open_id").
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(to.LarkOpenID).
			MsgType("text").
			Content(string(content)).
			Build()).
		Build()

	resp, err := m.client.GetClient().Im.Message.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("user_id", to.ID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("user_id", to.ID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}

	m.logger.Info("Message sent successfully",
		zap.String("message_id", messageID),
		zap.String("user_id", to.ID))

	return nil
}

// LogMessenger implements port.MessageSender by logging the message. It
// stands in for Messenger when Lark is disabled.
type LogMessenger struct {
	logger *zap.Logger
}

// NewLogMessenger creates a logging message sender
func NewLogMessenger(logger *zap.Logger) *LogMessenger {
	return &LogMessenger{logger: logger}
}

// SendText logs the message
func (m *LogMessenger) SendText(ctx context.Context, to *entity.User, text string) error {
	m.logger.Info("Notification (lark disabled)",
		zap.String("user_id", to.ID),
		zap.String("text", text))
	return nil
}

var (
	_ port.MessageSender = (*Messenger)(nil)
	_ port.MessageSender = (*LogMessenger)(nil)
)
