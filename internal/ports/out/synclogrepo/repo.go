package synclogrepo

import (
	"context"
	"time"
)

// Entry records one offline-queue flush reported by a field client after it
// regains connectivity. Purely observational; nothing reads it on the hot path.
type Entry struct {
	QueuedBefore int
	QueuedAfter  int
	Processed    int
	Succeeded    int
	Failed       int
	Dropped      int

	SyncTime   time.Time
	RawPayload string
}

// Repository is an append-only log of client sync results.
type Repository interface {
	Append(ctx context.Context, e Entry) error
}
