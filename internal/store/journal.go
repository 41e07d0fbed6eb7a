package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/artfolio/chainmarket/internal/domain"
	"github.com/artfolio/chainmarket/internal/engine"
	"github.com/artfolio/chainmarket/internal/store/schema"
)

// journal adapts a Store into the engine's Journal interface
type journal struct {
	store Store
}

// NewJournal wraps a store as an engine journal
func NewJournal(s Store) engine.Journal {
	return &journal{store: s}
}

// Append persists one engine command
func (j *journal) Append(ctx context.Context, cmd engine.Command) error {
	return j.store.AppendCommand(ctx, &schema.CommandJournal{
		CmdID:  cmd.ID,
		Seq:    cmd.Seq,
		Height: uint64(cmd.Height),
		Caller: string(cmd.Caller),
		Op:     cmd.Op,
		Args:   cmd.Args,
	})
}

// LoadCommands reads the full journal in replay order
func LoadCommands(ctx context.Context, s Store) ([]engine.Command, error) {
	rows, err := s.ListCommands(ctx, 0, 0)
	if err != nil {
		return nil, err
	}

	cmds := make([]engine.Command, 0, len(rows))
	for _, row := range rows {
		if !json.Valid(row.Args) {
			return nil, fmt.Errorf("journal seq %d: malformed args", row.Seq)
		}
		cmds = append(cmds, engine.Command{
			ID:     row.CmdID,
			Seq:    row.Seq,
			Height: domain.BlockHeight(row.Height),
			Caller: domain.Principal(row.Caller),
			Op:     row.Op,
			Args:   row.Args,
		})
	}
	return cmds, nil
}
