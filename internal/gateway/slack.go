package gateway

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// SlackAdapter delivers notifications to Slack channels using the Web API.
// Outbound only; no event subscription.
type SlackAdapter struct {
	client *slack.Client
	logger *zap.Logger
}

// NewSlackAdapter creates a Slack adapter. botToken is the Bot User OAuth
// Token (xoxb-...).
func NewSlackAdapter(botToken string, logger *zap.Logger) *SlackAdapter {
	return &SlackAdapter{
		client: slack.New(botToken),
		logger: logger,
	}
}

func (a *SlackAdapter) Platform() string { return "slack" }

// Connect verifies the token with an auth test.
func (a *SlackAdapter) Connect(ctx context.Context) error {
	resp, err := a.client.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	a.logger.Info("slack adapter ready", zap.String("bot_user", resp.UserID))
	return nil
}

// Send posts a message to a Slack channel.
func (a *SlackAdapter) Send(ctx context.Context, channelID, body string) error {
	_, _, err := a.client.PostMessageContext(ctx, channelID,
		slack.MsgOptionText(body, false),
	)
	if err != nil {
		a.logger.Error("slack send failed",
			zap.String("channel", channelID), zap.Error(err))
		return fmt.Errorf("slack send: %w", err)
	}
	return nil
}

func (a *SlackAdapter) Close() error { return nil }
