package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/transportops/field-service-api/internal/adapters/postgres"
)

// schema mirrors the production migrations closely enough for contract tests.
const schema = `
CREATE TABLE IF NOT EXISTS drivers (
	canonical_id  TEXT PRIMARY KEY,
	display_name  TEXT NOT NULL,
	is_active     BOOLEAN NOT NULL DEFAULT TRUE,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS field_reports (
	id                   UUID PRIMARY KEY,
	trip_id              TEXT NOT NULL,
	customer             TEXT NOT NULL,
	driver_canonical_id  TEXT NOT NULL,
	status               TEXT NOT NULL,
	trip_date            DATE,
	qty_or_weight        DOUBLE PRECISION,
	photo                TEXT,
	gps_lat              DOUBLE PRECISION,
	gps_lng              DOUBLE PRECISION,
	notes                TEXT,
	performed_at         TIMESTAMP,
	package_count        INTEGER,
	is_waste_safe        BOOLEAN,
	safety_issue_reason  TEXT,
	safety_issue_photo   TEXT,
	is_safety_critical   BOOLEAN,
	is_safety_resolved   BOOLEAN,
	is_waste_collected   BOOLEAN,
	service_type         TEXT,
	created_at           TIMESTAMPTZ NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL,
	CONSTRAINT field_reports_trip_id_unique UNIQUE (trip_id)
);

CREATE TABLE IF NOT EXISTS fsl_sync_logs (
	id             BIGSERIAL PRIMARY KEY,
	queued_before  INTEGER NOT NULL,
	queued_after   INTEGER NOT NULL,
	processed      INTEGER NOT NULL,
	succeeded      INTEGER NOT NULL,
	failed         INTEGER NOT NULL,
	dropped        INTEGER NOT NULL,
	sync_time      TIMESTAMPTZ NOT NULL,
	raw_payload    TEXT NOT NULL DEFAULT ''
);
`

// OpenMigratedPool connects to TEST_DATABASE_URL and applies the schema.
// Tests that need Postgres are skipped when the variable is unset.
func OpenMigratedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping postgres contract tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, dsn, postgres.PoolOptions{MaxConns: 4})
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return pool
}
