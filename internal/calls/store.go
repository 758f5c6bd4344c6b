package calls

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("calls: not found")
	ErrInvalidArgument = errors.New("calls: invalid argument")
)

// Store is the persistence contract for calls and their interaction log.
//
// Interactions are append-only by contract: no update or delete methods
// exist, and ListInteractions must return rows in insertion order.
type Store interface {
	CreateCall(ctx context.Context, c Call) error
	GetCall(ctx context.Context, callID string) (Call, error)
	UpdateCall(ctx context.Context, c Call) error

	AppendInteraction(ctx context.Context, in Interaction) error
	ListInteractions(ctx context.Context, callID string) ([]Interaction, error)
}
