package schema

import (
	"time"
)

// CommandJournal represents the command_journal table - the write-ahead
// journal of engine mutations. One row per successful entrypoint call;
// replaying rows in sequence order rebuilds the full engine state.
type CommandJournal struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// CmdID is the ULID assigned when the command was journaled
	CmdID string `gorm:"column:cmd_id;not null;uniqueIndex;type:text"`
	// Seq is the engine-assigned sequence number; replay order
	Seq uint64 `gorm:"column:seq;not null;uniqueIndex"`
	// Height is the logical block height at execution time
	Height uint64 `gorm:"column:height;not null"`
	// Caller is the principal that invoked the entrypoint
	Caller string `gorm:"column:caller;not null;type:text"`
	// Op is the entrypoint name (mint, transfer, place_bid, ...)
	Op string `gorm:"column:op;not null;type:text;index"`
	// Args is the JSON-encoded entrypoint arguments
	Args []byte `gorm:"column:args;not null;type:jsonb"`
	// CreatedAt is the timestamp when this command was journaled
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the CommandJournal model
func (CommandJournal) TableName() string {
	return "command_journal"
}
