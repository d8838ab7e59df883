package driverrepo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/transportops/field-service-api/internal/adapters/postgres"
	"github.com/transportops/field-service-api/internal/domain"
	"github.com/transportops/field-service-api/internal/ports/out/driverrepo"
)

// Repo is a Postgres implementation of driverrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Create(ctx context.Context, d driverrepo.Driver) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO drivers (
			canonical_id,
			display_name,
			is_active,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5)
	`,
		string(d.CanonicalID),
		d.DisplayName,
		d.IsActive,
		d.CreatedAt.UTC(),
		d.UpdatedAt.UTC(),
	)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
			return driverrepo.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *Repo) GetByCanonicalID(ctx context.Context, id domain.DriverCanonicalID) (driverrepo.Driver, error) {
	if r.pool == nil {
		return driverrepo.Driver{}, errors.New("nil postgres pool")
	}
	row := r.pool.QueryRow(ctx, `
		SELECT canonical_id, display_name, is_active, created_at, updated_at
		FROM drivers
		WHERE canonical_id = $1
	`, string(id))

	return scanDriver(row)
}

func (r *Repo) List(ctx context.Context) ([]driverrepo.Driver, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT canonical_id, display_name, is_active, created_at, updated_at
		FROM drivers
		ORDER BY canonical_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []driverrepo.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDriver(row pgx.Row) (driverrepo.Driver, error) {
	var d driverrepo.Driver
	var canonicalID string
	err := row.Scan(
		&canonicalID,
		&d.DisplayName,
		&d.IsActive,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return driverrepo.Driver{}, driverrepo.ErrNotFound
		}
		return driverrepo.Driver{}, err
	}
	d.CanonicalID = domain.DriverCanonicalID(canonicalID)
	return d, nil
}
