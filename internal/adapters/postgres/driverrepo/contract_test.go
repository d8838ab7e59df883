package driverrepo_test

import (
	"testing"

	"github.com/transportops/field-service-api/internal/adapters/contracttest"
	pgdriverrepo "github.com/transportops/field-service-api/internal/adapters/postgres/driverrepo"
	"github.com/transportops/field-service-api/internal/adapters/postgres/testutil"
	driverrepoport "github.com/transportops/field-service-api/internal/ports/out/driverrepo"
)

func TestContract_DriverRepo(t *testing.T) {
	contracttest.RunDriverRepo(t, func(t *testing.T) (driverrepoport.Repository, func()) {
		t.Helper()
		pool := testutil.OpenMigratedPool(t)
		return pgdriverrepo.NewRepo(pool), nil
	})
}
