package interfaces

import (
	"context"
	"time"
)

// UnlockFunc releases a previously acquired turn lock.
type UnlockFunc func(ctx context.Context) error

// TurnLocker serializes turn processing per story. Lock fails fast when a
// turn is already in flight rather than queueing.
type TurnLocker interface {
	Lock(ctx context.Context, storyID uint, ttl time.Duration) (UnlockFunc, error)
}
