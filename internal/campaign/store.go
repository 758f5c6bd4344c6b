package campaign

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

type Store interface {
	CreateCampaign(ctx context.Context, c Campaign) error
	GetCampaign(ctx context.Context, campaignID string) (Campaign, error)

	// RecordResult atomically increments completed_calls (and
	// successful_calls when success is true) and flips the campaign to
	// completed when the last result lands. completedNow is true only
	// for the call that performed the flip, so completion side effects
	// run exactly once even when results arrive concurrently.
	RecordResult(ctx context.Context, campaignID string, success bool, at time.Time) (Campaign, bool, error)
}
