package reportrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/transportops/field-service-api/internal/adapters/postgres"
	"github.com/transportops/field-service-api/internal/domain"
	"github.com/transportops/field-service-api/internal/ports/out/reportrepo"
)

// Repo is a Postgres implementation of reportrepo.Repository.
//
// The field_reports_trip_id_unique constraint is what makes concurrent
// submissions for the same trip collapse onto one row.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Create(ctx context.Context, rep reportrepo.Report) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(rep.ID))
	if err != nil {
		return fmt.Errorf("invalid report id: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO field_reports (
			id,
			trip_id,
			customer,
			driver_canonical_id,
			status,
			trip_date,
			qty_or_weight,
			photo,
			gps_lat,
			gps_lng,
			notes,
			performed_at,
			package_count,
			is_waste_safe,
			safety_issue_reason,
			safety_issue_photo,
			is_safety_critical,
			is_safety_resolved,
			is_waste_collected,
			service_type,
			created_at,
			updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22
		)
	`,
		id,
		string(rep.TripID),
		string(rep.Customer),
		string(rep.Driver),
		string(rep.Status),
		rep.TripDate,
		rep.QtyOrWeight,
		rep.Photo,
		rep.GPSLat,
		rep.GPSLng,
		rep.Notes,
		rep.PerformedAt,
		rep.PackageCount,
		rep.IsWasteSafe,
		rep.SafetyIssueReason,
		rep.SafetyIssuePhoto,
		rep.IsSafetyCritical,
		rep.IsSafetyResolved,
		rep.IsWasteCollected,
		rep.ServiceType,
		rep.CreatedAt.UTC(),
		rep.UpdatedAt.UTC(),
	)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
			return reportrepo.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Save updates the mutable columns of an existing report. Customer, driver
// and trip id are write-once and never touched here.
func (r *Repo) Save(ctx context.Context, rep reportrepo.Report) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(rep.ID))
	if err != nil {
		return fmt.Errorf("invalid report id: %w", err)
	}

	ct, err := r.pool.Exec(ctx, `
		UPDATE field_reports
		SET status = $2,
		    trip_date = $3,
		    qty_or_weight = $4,
		    photo = $5,
		    gps_lat = $6,
		    gps_lng = $7,
		    notes = $8,
		    performed_at = $9,
		    package_count = $10,
		    is_waste_safe = $11,
		    safety_issue_reason = $12,
		    safety_issue_photo = $13,
		    is_safety_critical = $14,
		    is_safety_resolved = $15,
		    is_waste_collected = $16,
		    service_type = $17,
		    updated_at = $18
		WHERE id = $1
	`,
		id,
		string(rep.Status),
		rep.TripDate,
		rep.QtyOrWeight,
		rep.Photo,
		rep.GPSLat,
		rep.GPSLng,
		rep.Notes,
		rep.PerformedAt,
		rep.PackageCount,
		rep.IsWasteSafe,
		rep.SafetyIssueReason,
		rep.SafetyIssuePhoto,
		rep.IsSafetyCritical,
		rep.IsSafetyResolved,
		rep.IsWasteCollected,
		rep.ServiceType,
		rep.UpdatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return reportrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) GetByTripID(ctx context.Context, id domain.TripID) (reportrepo.Report, error) {
	if r.pool == nil {
		return reportrepo.Report{}, errors.New("nil postgres pool")
	}
	row := r.pool.QueryRow(ctx, `
		SELECT
			id,
			trip_id,
			customer,
			driver_canonical_id,
			status,
			trip_date,
			qty_or_weight,
			photo,
			gps_lat,
			gps_lng,
			notes,
			performed_at,
			package_count,
			is_waste_safe,
			safety_issue_reason,
			safety_issue_photo,
			is_safety_critical,
			is_safety_resolved,
			is_waste_collected,
			service_type,
			created_at,
			updated_at
		FROM field_reports
		WHERE trip_id = $1
	`, string(id))

	return scanReport(row)
}

func scanReport(row pgx.Row) (reportrepo.Report, error) {
	var rep reportrepo.Report
	var (
		id       uuid.UUID
		tripID   string
		customer string
		driver   string
		status   string
	)
	err := row.Scan(
		&id,
		&tripID,
		&customer,
		&driver,
		&status,
		&rep.TripDate,
		&rep.QtyOrWeight,
		&rep.Photo,
		&rep.GPSLat,
		&rep.GPSLng,
		&rep.Notes,
		&rep.PerformedAt,
		&rep.PackageCount,
		&rep.IsWasteSafe,
		&rep.SafetyIssueReason,
		&rep.SafetyIssuePhoto,
		&rep.IsSafetyCritical,
		&rep.IsSafetyResolved,
		&rep.IsWasteCollected,
		&rep.ServiceType,
		&rep.CreatedAt,
		&rep.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return reportrepo.Report{}, reportrepo.ErrNotFound
		}
		return reportrepo.Report{}, err
	}
	rep.ID = domain.ReportID(id.String())
	rep.TripID = domain.TripID(tripID)
	rep.Customer = domain.CustomerID(customer)
	rep.Driver = domain.DriverCanonicalID(driver)
	rep.Status = reportrepo.Status(status)
	return rep, nil
}
