package kvstore_test

import (
	"testing"

	"github.com/transportops/field-service-api/internal/adapters/contracttest"
	memkvstore "github.com/transportops/field-service-api/internal/adapters/memory/kvstore"
	kvstoreport "github.com/transportops/field-service-api/internal/ports/out/kvstore"
)

func TestContract_KVStore(t *testing.T) {
	contracttest.RunKVStore(t, func(t *testing.T) (kvstoreport.Store, func()) {
		t.Helper()
		return memkvstore.NewStore(), nil
	})
}
