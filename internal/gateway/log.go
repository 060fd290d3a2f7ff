package gateway

import (
	"context"

	"go.uber.org/zap"
)

// LogAdapter writes deliveries to the log instead of a real platform. Used
// in development and as a safe default when no platform is configured.
type LogAdapter struct {
	logger *zap.Logger
}

// NewLogAdapter creates a log-only adapter.
func NewLogAdapter(logger *zap.Logger) *LogAdapter {
	return &LogAdapter{logger: logger}
}

func (a *LogAdapter) Platform() string { return "log" }

func (a *LogAdapter) Connect(_ context.Context) error { return nil }

func (a *LogAdapter) Send(_ context.Context, channelID, body string) error {
	a.logger.Info("notification",
		zap.String("channel", channelID),
		zap.String("body", body))
	return nil
}

func (a *LogAdapter) Close() error { return nil }
