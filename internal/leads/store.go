package leads

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

type Store interface {
	CreateLead(ctx context.Context, l Lead) error
	GetLead(ctx context.Context, leadID string) (Lead, error)
}
