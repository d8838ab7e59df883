package fieldreports

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/transportops/field-service-api/internal/domain"
	"github.com/transportops/field-service-api/internal/platform/ratelimit"
	"github.com/transportops/field-service-api/internal/ports/out/clock"
	"github.com/transportops/field-service-api/internal/ports/out/driverrepo"
	"github.com/transportops/field-service-api/internal/ports/out/reportrepo"
)

// Submission rate limit per (customer, driver, day).
const (
	submitRateLimit  = 10
	submitRateWindow = time.Minute
)

// QRVerifier is the signed-token dependency of the workflow. Satisfied by
// qrtoken.Signer.
type QRVerifier interface {
	Verify(token string) (customer string, err error)
}

// Service orchestrates the idempotent field-report submission workflow:
// driver lookup, token verification, rate limiting, deterministic trip
// identity, and the Draft/Final lifecycle.
type Service struct {
	reports  reportrepo.Repository
	drivers  driverrepo.Repository
	verifier QRVerifier
	limiter  *ratelimit.Limiter
	clock    clock.Clock

	// loc is the server-local zone; calendar days and stored timestamps are
	// interpreted in it.
	loc *time.Location

	rateLimit  int
	rateWindow time.Duration

	newReportID func() domain.ReportID
}

func NewService(
	reports reportrepo.Repository,
	drivers driverrepo.Repository,
	verifier QRVerifier,
	limiter *ratelimit.Limiter,
	clk clock.Clock,
) *Service {
	return &Service{
		reports:    reports,
		drivers:    drivers,
		verifier:   verifier,
		limiter:    limiter,
		clock:      clk,
		loc:        time.Local,
		rateLimit:  submitRateLimit,
		rateWindow: submitRateWindow,
		newReportID: func() domain.ReportID {
			return domain.ReportID(uuid.NewString())
		},
	}
}

// SetRateLimit overrides the per-(customer, driver, day) submission budget;
// deployments tune it via SUBMIT_RATE_LIMIT / SUBMIT_RATE_WINDOW.
func (s *Service) SetRateLimit(limit int, window time.Duration) {
	if limit > 0 {
		s.rateLimit = limit
	}
	if window > 0 {
		s.rateWindow = window
	}
}

// SetNewReportIDForTest overrides report ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewReportIDForTest(fn func() domain.ReportID) {
	if fn != nil {
		s.newReportID = fn
	}
}

// SubmitDraft creates or updates the draft report for (customer, driver,
// today). The trip id is derived server-side, so a field device retrying the
// same submission any number of times converges onto a single record.
func (s *Service) SubmitDraft(ctx context.Context, in SubmitDraftInput) (SubmitResult, error) {
	driverID := domain.DriverCanonicalID(strings.TrimSpace(string(in.DriverCanonicalID)))
	if driverID == "" {
		return SubmitResult{}, &Error{Status: 422, Code: "VALIDATION_ERROR", Message: "driver_canonical_id is required", Details: map[string]any{"driver_canonical_id": "must be non-empty"}}
	}
	if _, err := s.drivers.GetByCanonicalID(ctx, driverID); err != nil {
		if errors.Is(err, driverrepo.ErrNotFound) {
			return SubmitResult{}, &Error{Status: 422, Code: "DRIVER_NOT_FOUND", Message: "no driver with this canonical id"}
		}
		return SubmitResult{}, err
	}

	customerStr, err := s.verifier.Verify(in.QRToken)
	if err != nil {
		// Sub-reasons stay in server logs; the caller only learns that the
		// token did not authorize the request.
		return SubmitResult{}, &Error{Status: 401, Code: "INVALID_TOKEN", Message: "invalid QR token"}
	}
	customer := domain.CustomerID(customerStr)

	today := s.clock.Now().In(s.loc).Format("2006-01-02")
	tripID := domain.DeriveTripID(customer, driverID, today)

	rlKey := fmt.Sprintf("fsl:%s:%s:%s", customer, driverID, today)
	if err := s.limiter.Allow(ctx, rlKey, s.rateLimit, s.rateWindow); err != nil {
		if errors.Is(err, ratelimit.ErrRateLimited) {
			return SubmitResult{}, &Error{Status: 429, Code: "TOO_MANY_REQUESTS", Message: "too many requests, please wait and try again"}
		}
		return SubmitResult{}, err
	}

	payload, perr := parseDraftPayload(in.Payload)
	if perr != nil {
		return SubmitResult{}, perr
	}

	existing, err := s.reports.GetByTripID(ctx, tripID)
	switch {
	case err == nil:
		return s.editDraft(ctx, existing, driverID, payload, today)
	case errors.Is(err, reportrepo.ErrNotFound):
		return s.createDraft(ctx, tripID, customer, driverID, payload, today)
	default:
		return SubmitResult{}, err
	}
}

func (s *Service) createDraft(
	ctx context.Context,
	tripID domain.TripID,
	customer domain.CustomerID,
	driverID domain.DriverCanonicalID,
	payload DraftPayload,
	today string,
) (SubmitResult, error) {
	now := s.clock.Now().In(s.loc)
	tripDate := midnight(now)
	rep := reportrepo.Report{
		ID:        s.newReportID(),
		TripID:    tripID,
		Customer:  customer,
		Driver:    driverID,
		Status:    reportrepo.StatusDraft,
		TripDate:  &tripDate,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if aerr := applyDraftPayload(&rep, payload, s.loc); aerr != nil {
		return SubmitResult{}, aerr
	}

	err := s.reports.Create(ctx, rep)
	if errors.Is(err, reportrepo.ErrAlreadyExists) {
		// Lost the create race: a concurrent submission inserted the same
		// trip id first. Retry this submission as an edit of the winner.
		existing, gerr := s.reports.GetByTripID(ctx, tripID)
		if gerr != nil {
			return SubmitResult{}, &Error{Status: 409, Code: "TRIP_ID_CONFLICT", Message: "concurrent submission for the same trip"}
		}
		return s.editDraft(ctx, existing, driverID, payload, today)
	}
	if err != nil {
		return SubmitResult{}, err
	}

	return SubmitResult{Mode: ModeCreated, ReportID: rep.ID, TripID: tripID, TripDate: today}, nil
}

func (s *Service) editDraft(
	ctx context.Context,
	rep reportrepo.Report,
	driverID domain.DriverCanonicalID,
	payload DraftPayload,
	today string,
) (SubmitResult, error) {
	if rep.Status != reportrepo.StatusDraft {
		return SubmitResult{}, &Error{Status: 409, Code: "NOT_EDITABLE", Message: "only draft reports can be edited"}
	}
	if aerr := s.assertSameDriver(rep, driverID); aerr != nil {
		return SubmitResult{}, aerr
	}

	// Partial update: customer and driver are immutable, absent payload
	// fields stay untouched.
	if aerr := applyDraftPayload(&rep, payload, s.loc); aerr != nil {
		return SubmitResult{}, aerr
	}
	now := s.clock.Now().In(s.loc)
	tripDate := midnight(now)
	rep.TripDate = &tripDate
	rep.UpdatedAt = now

	if err := s.reports.Save(ctx, rep); err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{Mode: ModeEdited, ReportID: rep.ID, TripID: rep.TripID, TripDate: today}, nil
}

// Finalize moves a draft report to Final. The transition is irreversible and
// locks the record against further field mutation.
func (s *Service) Finalize(ctx context.Context, tripID domain.TripID, driverID domain.DriverCanonicalID) (FinalizeResult, error) {
	// Driver resolution is for error clarity; ownership below is the gate.
	if _, err := s.drivers.GetByCanonicalID(ctx, domain.DriverCanonicalID(strings.TrimSpace(string(driverID)))); err != nil {
		if errors.Is(err, driverrepo.ErrNotFound) {
			return FinalizeResult{}, &Error{Status: 422, Code: "DRIVER_NOT_FOUND", Message: "no driver with this canonical id"}
		}
		return FinalizeResult{}, err
	}

	rep, err := s.reports.GetByTripID(ctx, tripID)
	if err != nil {
		if errors.Is(err, reportrepo.ErrNotFound) {
			return FinalizeResult{}, &Error{Status: 404, Code: "REPORT_NOT_FOUND", Message: "field report not found"}
		}
		return FinalizeResult{}, err
	}

	if rep.Status != reportrepo.StatusDraft {
		return FinalizeResult{}, &Error{Status: 409, Code: "ALREADY_FINALIZED", Message: "report is already finalized"}
	}
	if aerr := s.assertSameDriver(rep, driverID); aerr != nil {
		return FinalizeResult{}, aerr
	}
	if rep.ServiceType == nil || strings.TrimSpace(*rep.ServiceType) == "" {
		return FinalizeResult{}, &Error{
			Status:  422,
			Code:    "MISSING_REQUIRED_FIELD",
			Message: "service type must be set before finalizing",
			Details: map[string]any{"service_type": "required"},
		}
	}

	rep.Status = reportrepo.StatusFinal
	rep.UpdatedAt = s.clock.Now().In(s.loc)
	if err := s.reports.Save(ctx, rep); err != nil {
		return FinalizeResult{}, err
	}
	return FinalizeResult{ReportID: rep.ID, TripID: rep.TripID, Status: domain.ReportStatusFinal}, nil
}

// GetForCustomer returns the report for tripID when it belongs to customer.
// A report owned by another customer reads as not-found, so a leaked bearer
// token cannot be used to probe for other customers' records.
func (s *Service) GetForCustomer(ctx context.Context, tripID domain.TripID, customer domain.CustomerID) (reportrepo.Report, error) {
	rep, err := s.reports.GetByTripID(ctx, tripID)
	if err != nil {
		if errors.Is(err, reportrepo.ErrNotFound) {
			return reportrepo.Report{}, &Error{Status: 404, Code: "REPORT_NOT_FOUND", Message: "field report not found"}
		}
		return reportrepo.Report{}, err
	}
	if rep.Customer != customer {
		return reportrepo.Report{}, &Error{Status: 404, Code: "REPORT_NOT_FOUND", Message: "field report not found"}
	}
	return rep, nil
}

// assertSameDriver enforces ownership: the stored driver canonical id must
// equal the caller's, trimmed and case-sensitive. We compare the stored field
// directly rather than re-resolving it through the driver entity; the back
// office guarantees the stored value is a canonical id. An unset stored
// driver is a hard failure, never a silent allow.
func (s *Service) assertSameDriver(rep reportrepo.Report, driverID domain.DriverCanonicalID) *Error {
	current := strings.TrimSpace(string(rep.Driver))
	expected := strings.TrimSpace(string(driverID))

	if current == "" {
		log.Printf("fieldreports: report %s has no driver set (caller=%s)", rep.TripID, expected)
		return &Error{Status: 409, Code: "OWNERSHIP_MISMATCH", Message: "report has no driver set"}
	}
	if current != expected {
		// Audit trail: a mismatch may indicate token misuse or a
		// misconfigured device.
		log.Printf("fieldreports: driver mismatch on report %s: stored=%s caller=%s", rep.TripID, current, expected)
		return &Error{Status: 409, Code: "OWNERSHIP_MISMATCH", Message: "report belongs to a different driver"}
	}
	return nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
