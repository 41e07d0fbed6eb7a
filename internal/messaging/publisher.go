package messaging

import (
	"context"

	"github.com/artfolio/chainmarket/internal/domain"
)

// Publisher defines the interface for publishing market events to the
// message broker
type Publisher interface {
	// PublishEvent publishes a market event to the message broker
	PublishEvent(ctx context.Context, event *domain.MarketEvent) error
	// Close closes the connection
	Close()
}
