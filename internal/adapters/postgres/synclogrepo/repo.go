package synclogrepo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/transportops/field-service-api/internal/ports/out/synclogrepo"
)

// Repo is a Postgres implementation of synclogrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Append(ctx context.Context, e synclogrepo.Entry) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO fsl_sync_logs (
			queued_before,
			queued_after,
			processed,
			succeeded,
			failed,
			dropped,
			sync_time,
			raw_payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		e.QueuedBefore,
		e.QueuedAfter,
		e.Processed,
		e.Succeeded,
		e.Failed,
		e.Dropped,
		e.SyncTime.UTC(),
		e.RawPayload,
	)
	return err
}
