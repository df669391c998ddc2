// Package websocket provides WebSocket adapters for external event sources.
// This package translates protocol-specific events into decision service calls.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	larkevent "github.com/larksuite/oapi-sdk-go/v3/event"
	larkdispatcher "github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"go.uber.org/zap"

	"github.com/garyjia/erp-workflow/internal/application/port"
	"github.com/garyjia/erp-workflow/internal/application/service"
	"github.com/garyjia/erp-workflow/internal/domain/entity"
	apperrors "github.com/garyjia/erp-workflow/internal/pkg/errors"
)

const messageReceiveEvent = "im.message.receive_v1"

// LarkAdapter listens for bot messages over the Lark WebSocket connection and
// turns "承認 <id>" and "却下 <id> <理由>" commands into decisions.
type LarkAdapter struct {
	appID     string
	appSecret string
	decision  service.DecisionService
	users     port.UserRepository
	replier   port.MessageSender
	logger    *zap.Logger

	wsClient *larkws.Client
	mu       sync.RWMutex
	started  bool
}

// LarkAdapterConfig holds configuration for the Lark WebSocket adapter.
type LarkAdapterConfig struct {
	AppID     string
	AppSecret string
}

// NewLarkAdapter creates a new Lark WebSocket adapter. replier may be nil.
func NewLarkAdapter(
	cfg LarkAdapterConfig,
	decision service.DecisionService,
	users port.UserRepository,
	replier port.MessageSender,
	logger *zap.Logger,
) *LarkAdapter {
	return &LarkAdapter{
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
		decision:  decision,
		users:     users,
		replier:   replier,
		logger:    logger,
	}
}

// Start opens the WebSocket connection and blocks until ctx is cancelled or
// the client fails.
func (a *LarkAdapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return fmt.Errorf("adapter already started")
	}

	// Verification token and encrypt key are unused in WebSocket mode
	sdkDispatcher := larkdispatcher.NewEventDispatcher("", "")
	sdkDispatcher.OnCustomizedEvent(messageReceiveEvent, func(ctx context.Context, evt *larkevent.EventReq) error {
		return a.HandleMessage(ctx, evt.Body)
	})

	a.wsClient = larkws.NewClient(
		a.appID,
		a.appSecret,
		larkws.WithEventHandler(sdkDispatcher),
	)

	a.started = true
	a.mu.Unlock()

	a.logger.Info("Starting Lark WebSocket adapter", zap.String("app_id", a.appID))

	if err := a.wsClient.Start(ctx); err != nil {
		a.logger.Error("Lark WebSocket client error", zap.Error(err))
		return fmt.Errorf("websocket client error: %w", err)
	}
	return nil
}

// Stop marks the adapter stopped. The SDK client itself ends when the
// context passed to Start is cancelled.
func (a *LarkAdapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return nil
	}
	a.started = false
	a.logger.Info("Lark WebSocket adapter stopped")
	return nil
}

// IsRunning returns whether the adapter is currently running.
func (a *LarkAdapter) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.started
}

type larkMessageEvent struct {
	Header struct {
		EventType string `json:"event_type"`
	} `json:"header"`
	Event struct {
		Sender struct {
			SenderID struct {
				OpenID string `json:"open_id"`
			} `json:"sender_id"`
		} `json:"sender"`
		Message struct {
			MessageType string `json:"message_type"`
			Content     string `json:"content"`
		} `json:"message"`
	} `json:"event"`
}

// command is a parsed chat instruction
type command struct {
	action        string
	applicationID string
	reason        string
}

// parseCommand recognises "承認 <id>", "approve <id>", "却下 <id> <reason>"
// and "reject <id> <reason>". Anything else returns ok=false.
func parseCommand(text string) (command, bool) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return command{}, false
	}
	var action string
	switch strings.ToLower(fields[0]) {
	case "承認", "approve":
		action = entity.ActionApprove
	case "却下", "reject":
		action = entity.ActionReject
	default:
		return command{}, false
	}
	return command{
		action:        action,
		applicationID: fields[1],
		reason:        strings.Join(fields[2:], " "),
	}, true
}

// HandleMessage processes one im.message.receive_v1 payload. Decision
// failures are replied to the sender and never returned to the SDK, so Lark
// does not redeliver them.
func (a *LarkAdapter) HandleMessage(ctx context.Context, body []byte) error {
	var msg larkMessageEvent
	if err := json.Unmarshal(body, &msg); err != nil {
		a.logger.Error("Failed to parse Lark event payload", zap.Error(err))
		return fmt.Errorf("failed to parse event payload: %w", err)
	}
	if msg.Event.Message.MessageType != "text" {
		return nil
	}

	var content struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(msg.Event.Message.Content), &content); err != nil {
		a.logger.Warn("Ignoring message with unreadable content", zap.Error(err))
		return nil
	}

	cmd, ok := parseCommand(content.Text)
	if !ok {
		return nil
	}

	actor, err := a.userByOpenID(ctx, msg.Event.Sender.SenderID.OpenID)
	if err != nil {
		return err
	}
	if actor == nil {
		a.logger.Warn("Command from unregistered Lark user",
			zap.String("open_id", msg.Event.Sender.SenderID.OpenID))
		return nil
	}

	a.logger.Info("Chat command received",
		zap.String("action", cmd.action),
		zap.String("application_id", cmd.applicationID),
		zap.String("actor_id", actor.ID))

	switch cmd.action {
	case entity.ActionApprove:
		_, err = a.decision.Approve(ctx, cmd.applicationID, actor.ID)
	case entity.ActionReject:
		_, err = a.decision.Reject(ctx, cmd.applicationID, actor.ID, cmd.reason)
	}

	a.reply(ctx, actor, replyText(cmd, err))
	if err != nil {
		if _, ok := apperrors.IsAppError(err); ok {
			return nil
		}
		return err
	}
	return nil
}

func (a *LarkAdapter) userByOpenID(ctx context.Context, openID string) (*entity.User, error) {
	if openID == "" {
		return nil, nil
	}
	users, err := a.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for _, u := range users {
		if u.LarkOpenID == openID {
			return u, nil
		}
	}
	return nil, nil
}

func (a *LarkAdapter) reply(ctx context.Context, to *entity.User, text string) {
	if a.replier == nil {
		return
	}
	if err := a.replier.SendText(ctx, to, text); err != nil {
		a.logger.Warn("Failed to reply to chat command", zap.Error(err), zap.String("user_id", to.ID))
	}
}

func replyText(cmd command, err error) string {
	if err == nil {
		if cmd.action == entity.ActionApprove {
			return fmt.Sprintf("申請 %s を承認しました。", cmd.applicationID)
		}
		return fmt.Sprintf("申請 %s を却下しました。", cmd.applicationID)
	}
	switch {
	case errors.Is(err, apperrors.ErrUnauthorized), errors.Is(err, apperrors.ErrInvalidState):
		return fmt.Sprintf("申請 %s は既に処理されたか、あなたの承認待ちではありません。", cmd.applicationID)
	case errors.Is(err, apperrors.ErrApplicationNotFound):
		return fmt.Sprintf("申請 %s が見つかりません。", cmd.applicationID)
	case errors.Is(err, apperrors.ErrValidation):
		return "却下理由を入力してください。例: 却下 <申請ID> <理由>"
	}
	return "処理中にエラーが発生しました。"
}
