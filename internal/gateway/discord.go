package gateway

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// DiscordAdapter delivers notifications to Discord channels over the REST
// API. The gateway websocket is not opened; sends need only the bot token.
type DiscordAdapter struct {
	token   string
	session *discordgo.Session
	logger  *zap.Logger
}

// NewDiscordAdapter creates a Discord adapter.
func NewDiscordAdapter(token string, logger *zap.Logger) *DiscordAdapter {
	return &DiscordAdapter{token: token, logger: logger}
}

func (a *DiscordAdapter) Platform() string { return "discord" }

// Connect creates the Discord session.
func (a *DiscordAdapter) Connect(_ context.Context) error {
	session, err := discordgo.New("Bot " + a.token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	a.session = session
	a.logger.Info("discord adapter ready")
	return nil
}

// Send posts a message to a Discord channel.
func (a *DiscordAdapter) Send(ctx context.Context, channelID, body string) error {
	if a.session == nil {
		return fmt.Errorf("discord adapter not connected")
	}
	_, err := a.session.ChannelMessageSend(channelID, body,
		discordgo.WithContext(ctx))
	if err != nil {
		a.logger.Error("discord send failed",
			zap.String("channel", channelID), zap.Error(err))
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}

func (a *DiscordAdapter) Close() error {
	if a.session != nil {
		return a.session.Close()
	}
	return nil
}
