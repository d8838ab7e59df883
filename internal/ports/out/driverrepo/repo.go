package driverrepo

import (
	"context"
	"time"

	"github.com/transportops/field-service-api/internal/domain"
)

// Driver is the persistence shape used by the driver repository.
//
// The canonical id doubles as the record identity: the back office assigns it
// once at provisioning time and field devices address drivers by it. This core
// only reads drivers; provisioning lives in the back-office application.
type Driver struct {
	CanonicalID domain.DriverCanonicalID
	DisplayName string
	IsActive    bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository provides access to persisted drivers.
type Repository interface {
	Create(ctx context.Context, d Driver) error

	GetByCanonicalID(ctx context.Context, id domain.DriverCanonicalID) (Driver, error)

	// List returns all drivers ordered by canonical id ascending.
	List(ctx context.Context) ([]Driver, error)
}
