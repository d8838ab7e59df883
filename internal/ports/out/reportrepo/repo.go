package reportrepo

import (
	"context"
	"time"

	"github.com/transportops/field-service-api/internal/domain"
)

type Status string

const (
	StatusDraft Status = "Draft"
	StatusFinal Status = "Final"
)

// Report is the persistence shape used by the field report repository.
// It is not an HTTP DTO.
//
// TripID carries the uniqueness constraint: the store must reject a second
// create for the same trip id so that racing submissions collapse onto a
// single record. Customer and Driver are written once at creation and are
// immutable afterwards.
type Report struct {
	ID domain.ReportID

	TripID   domain.TripID
	Customer domain.CustomerID
	Driver   domain.DriverCanonicalID

	Status Status

	// TripDate is the server-local calendar day the trip id was derived from.
	TripDate *time.Time

	// Field-device payload. All optional; nil means unset.
	QtyOrWeight       *float64
	Photo             *string
	GPSLat            *float64
	GPSLng            *float64
	Notes             *string
	PerformedAt       *time.Time
	PackageCount      *int
	IsWasteSafe       *bool
	SafetyIssueReason *string
	SafetyIssuePhoto  *string
	IsSafetyCritical  *bool
	IsSafetyResolved  *bool
	IsWasteCollected  *bool

	// ServiceType is the classification set by the back office. It is not
	// writable from field devices but must be present before finalize.
	ServiceType *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository provides access to persisted field reports.
type Repository interface {
	// Create inserts a new report. It returns ErrAlreadyExists when a report
	// with the same trip id is already stored (including a concurrent create
	// racing this one).
	Create(ctx context.Context, r Report) error

	Save(ctx context.Context, r Report) error

	GetByTripID(ctx context.Context, id domain.TripID) (Report, error)
}
