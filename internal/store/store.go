package store

import (
	"context"

	"github.com/artfolio/chainmarket/internal/store/schema"
)

// Store defines the interface for database operations
type Store interface {
	// AppendCommand persists a journaled command. The row must be durable
	// on return; a unique-violation on seq means a concurrent writer and
	// is an error.
	AppendCommand(ctx context.Context, cmd *schema.CommandJournal) error
	// ListCommands retrieves journaled commands with seq greater than
	// afterSeq, in ascending sequence order, up to limit rows (0 = no limit)
	ListCommands(ctx context.Context, afterSeq uint64, limit int) ([]schema.CommandJournal, error)
	// LatestSeq returns the highest journaled sequence number, 0 when empty
	LatestSeq(ctx context.Context) (uint64, error)
	// CountCommands returns the total number of journaled commands
	CountCommands(ctx context.Context) (int64, error)
}
