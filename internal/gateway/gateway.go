// Package gateway fans reminder notifications out to messaging platforms.
// Each platform is an Adapter; the Gateway routes a recipient address of the
// form "platform:channel" to the right one.
package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Adapter delivers outbound notifications on one platform.
type Adapter interface {
	Platform() string
	Connect(ctx context.Context) error
	Send(ctx context.Context, channelID, body string) error
	Close() error
}

// Gateway manages platform adapters and routes deliveries.
type Gateway struct {
	adapters map[string]Adapter
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewGateway creates a gateway manager.
func NewGateway(logger *zap.Logger) *Gateway {
	return &Gateway{
		adapters: make(map[string]Adapter),
		logger:   logger,
	}
}

// Register adds an adapter.
func (g *Gateway) Register(adapter Adapter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.adapters[adapter.Platform()] = adapter
	g.logger.Info("registered notification adapter", zap.String("platform", adapter.Platform()))
}

// ConnectAll starts all registered adapters.
func (g *Gateway) ConnectAll(ctx context.Context) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for platform, adapter := range g.adapters {
		if err := adapter.Connect(ctx); err != nil {
			return fmt.Errorf("connect %s: %w", platform, err)
		}
		g.logger.Info("adapter connected", zap.String("platform", platform))
	}
	return nil
}

// Notify delivers body to a "platform:channel" recipient address. It is the
// delivery collaborator the reminder scheduler calls on each due reminder.
func (g *Gateway) Notify(ctx context.Context, recipient, body string) error {
	platform, channel, ok := strings.Cut(recipient, ":")
	if !ok || platform == "" || channel == "" {
		return fmt.Errorf("malformed recipient %q, want platform:channel", recipient)
	}

	g.mu.RLock()
	adapter, found := g.adapters[platform]
	g.mu.RUnlock()
	if !found {
		return fmt.Errorf("no adapter for platform: %s", platform)
	}
	return adapter.Send(ctx, channel, body)
}

// Platforms returns the registered platform names.
func (g *Gateway) Platforms() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.adapters))
	for p := range g.adapters {
		names = append(names, p)
	}
	return names
}

// Close shuts down all adapters.
func (g *Gateway) Close() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for platform, adapter := range g.adapters {
		if err := adapter.Close(); err != nil {
			g.logger.Error("adapter close failed",
				zap.String("platform", platform), zap.Error(err))
		}
	}
	return nil
}
