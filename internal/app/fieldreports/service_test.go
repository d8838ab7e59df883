package fieldreports_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	memclock "github.com/transportops/field-service-api/internal/adapters/memory/clock"
	memdriverrepo "github.com/transportops/field-service-api/internal/adapters/memory/driverrepo"
	memkvstore "github.com/transportops/field-service-api/internal/adapters/memory/kvstore"
	memreportrepo "github.com/transportops/field-service-api/internal/adapters/memory/reportrepo"
	"github.com/transportops/field-service-api/internal/app/fieldreports"
	"github.com/transportops/field-service-api/internal/domain"
	"github.com/transportops/field-service-api/internal/platform/auth/qrtoken"
	"github.com/transportops/field-service-api/internal/platform/ratelimit"
	"github.com/transportops/field-service-api/internal/ports/out/driverrepo"
	"github.com/transportops/field-service-api/internal/ports/out/reportrepo"
)

type fixture struct {
	svc     *fieldreports.Service
	reports *memreportrepo.Repo
	drivers *memdriverrepo.Repo
	signer  *qrtoken.Signer
	clk     *memclock.Clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	// Local noon so the server-local calendar day is unambiguous.
	clk := memclock.NewClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local))
	signer, err := qrtoken.NewWithClock("test-secret", clk)
	if err != nil {
		t.Fatalf("qrtoken.NewWithClock: %v", err)
	}

	reports := memreportrepo.NewRepo()
	drivers := memdriverrepo.NewRepo()
	limiter := ratelimit.New(memkvstore.NewStoreWithClock(clk))

	svc := fieldreports.NewService(reports, drivers, signer, limiter, clk)
	n := 0
	svc.SetNewReportIDForTest(func() domain.ReportID {
		n++
		return domain.ReportID(string(rune('a'+n-1)) + "-report")
	})

	return &fixture{svc: svc, reports: reports, drivers: drivers, signer: signer, clk: clk}
}

func (f *fixture) provisionDriver(t *testing.T, id domain.DriverCanonicalID) {
	t.Helper()
	now := f.clk.Now()
	if err := f.drivers.Create(context.Background(), driverrepo.Driver{
		CanonicalID: id,
		DisplayName: "Driver " + string(id),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		t.Fatalf("create driver: %v", err)
	}
}

func (f *fixture) mint(t *testing.T, customer string) string {
	t.Helper()
	token, err := f.signer.Mint(customer, time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return token
}

func appErr(t *testing.T, err error) *fieldreports.Error {
	t.Helper()
	var ae *fieldreports.Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected *fieldreports.Error, got %v", err)
	}
	return ae
}

func TestSubmitDraft_CreateThenEdit_Idempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.provisionDriver(t, "D-001")
	token := f.mint(t, "CUST-1")
	ctx := context.Background()

	first, err := f.svc.SubmitDraft(ctx, fieldreports.SubmitDraftInput{
		QRToken:           token,
		DriverCanonicalID: "D-001",
		Payload:           json.RawMessage(`{"gps_lat": 35.7, "notes": "ok"}`),
	})
	if err != nil {
		t.Fatalf("first SubmitDraft: %v", err)
	}
	if first.Mode != fieldreports.ModeCreated {
		t.Fatalf("mode=%s", first.Mode)
	}
	if first.TripDate != "2024-01-01" {
		t.Fatalf("tripDate=%s", first.TripDate)
	}
	wantTrip := domain.DeriveTripID("CUST-1", "D-001", "2024-01-01")
	if first.TripID != wantTrip {
		t.Fatalf("tripID=%s want=%s", first.TripID, wantTrip)
	}

	// Same day, disjoint-but-overlapping payload: one record, union of
	// fields, later submission wins on overlap.
	second, err := f.svc.SubmitDraft(ctx, fieldreports.SubmitDraftInput{
		QRToken:           token,
		DriverCanonicalID: "D-001",
		Payload:           json.RawMessage(`{"notes": "done"}`),
	})
	if err != nil {
		t.Fatalf("second SubmitDraft: %v", err)
	}
	if second.Mode != fieldreports.ModeEdited || second.TripID != wantTrip {
		t.Fatalf("second=%+v", second)
	}
	if second.ReportID != first.ReportID {
		t.Fatalf("expected one record, got %s and %s", first.ReportID, second.ReportID)
	}

	rep, err := f.reports.GetByTripID(ctx, wantTrip)
	if err != nil {
		t.Fatalf("GetByTripID: %v", err)
	}
	if rep.GPSLat == nil || *rep.GPSLat != 35.7 {
		t.Fatalf("gps_lat=%v", rep.GPSLat)
	}
	if rep.Notes == nil || *rep.Notes != "done" {
		t.Fatalf("notes=%v", rep.Notes)
	}
	if rep.Customer != "CUST-1" || rep.Driver != "D-001" || rep.Status != reportrepo.StatusDraft {
		t.Fatalf("record=%+v", rep)
	}
}

func TestSubmitDraft_NextDayCreatesNewRecord(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.provisionDriver(t, "D-001")
	ctx := context.Background()

	if _, err := f.svc.SubmitDraft(ctx, fieldreports.SubmitDraftInput{
		QRToken:           f.mint(t, "CUST-1"),
		DriverCanonicalID: "D-001",
	}); err != nil {
		t.Fatalf("day 1: %v", err)
	}

	f.clk.Advance(24 * time.Hour)
	res, err := f.svc.SubmitDraft(ctx, fieldreports.SubmitDraftInput{
		QRToken:           f.mint(t, "CUST-1"),
		DriverCanonicalID: "D-001",
	})
	if err != nil {
		t.Fatalf("day 2: %v", err)
	}
	if res.Mode != fieldreports.ModeCreated || res.TripDate != "2024-01-02" {
		t.Fatalf("day 2 result=%+v", res)
	}
}

func TestSubmitDraft_UnknownPayloadKeysDropped(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.provisionDriver(t, "D-001")
	ctx := context.Background()

	res, err := f.svc.SubmitDraft(ctx, fieldreports.SubmitDraftInput{
		QRToken:           f.mint(t, "CUST-1"),
		DriverCanonicalID: "D-001",
		Payload:           json.RawMessage(`{"notes": "ok", "status": "Final", "customer": "CUST-9", "trip_id": "forged"}`),
	})
	if err != nil {
		t.Fatalf("SubmitDraft: %v", err)
	}
	rep, err := f.reports.GetByTripID(ctx, res.TripID)
	if err != nil {
		t.Fatalf("GetByTripID: %v", err)
	}
	if rep.Status != reportrepo.StatusDraft || rep.Customer != "CUST-1" {
		t.Fatalf("injected fields leaked: %+v", rep)
	}
	if rep.Notes == nil || *rep.Notes != "ok" {
		t.Fatalf("notes=%v", rep.Notes)
	}
}

func TestSubmitDraft_NullClearsField(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.provisionDriver(t, "D-001")
	token := f.mint(t, "CUST-1")
	ctx := context.Background()

	res, err := f.svc.SubmitDraft(ctx, fieldreports.SubmitDraftInput{
		QRToken:           token,
		DriverCanonicalID: "D-001",
		Payload:           json.RawMessage(`{"notes": "keep", "package_count": 4}`),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.SubmitDraft(ctx, fieldreports.SubmitDraftInput{
		QRToken:           token,
		DriverCanonicalID: "D-001",
		Payload:           json.RawMessage(`{"package_count": null}`),
	}); err != nil {
		t.Fatalf("edit: %v", err)
	}

	rep, _ := f.reports.GetByTripID(ctx, res.TripID)
	if rep.PackageCount != nil {
		t.Fatalf("package_count should be cleared, got %v", *rep.PackageCount)
	}
	if rep.Notes == nil || *rep.Notes != "keep" {
		t.Fatalf("absent field must stay untouched, notes=%v", rep.Notes)
	}
}

func TestSubmitDraft_PerformedAtNormalization(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.provisionDriver(t, "D-001")
	ctx := context.Background()

	res, err := f.svc.SubmitDraft(ctx, fieldreports.SubmitDraftInput{
		QRToken:           f.mint(t, "CUST-1"),
		DriverCanonicalID: "D-001",
		Payload:           json.RawMessage(`{"performed_at": "2024-01-01T08:30:00Z"}`),
	})
	if err != nil {
		t.Fatalf("SubmitDraft: %v", err)
	}
	rep, _ := f.reports.GetByTripID(ctx, res.TripID)
	if rep.PerformedAt == nil {
		t.Fatalf("performed_at not stored")
	}
	// Stored naive in the server's location, same absolute instant.
	want := time.Date(2024, 1, 1, 8, 30, 0, 0, time.UTC).In(time.Local)
	got := *rep.PerformedAt
	if got.Hour() != want.Hour() || got.Minute() != want.Minute() || got.Location() != time.Local {
		t.Fatalf("performed_at=%v want local %v", got, want)
	}
}

func TestSubmitDraft_InvalidTimestamp(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.provisionDriver(t, "D-001")

	_, err := f.svc.SubmitDraft(context.Background(), fieldreports.SubmitDraftInput{
		QRToken:           f.mint(t, "CUST-1"),
		DriverCanonicalID: "D-001",
		Payload:           json.RawMessage(`{"performed_at": "yesterday-ish"}`),
	})
	if ae := appErr(t, err); ae.Code != "INVALID_TIMESTAMP" || ae.Status != 422 {
		t.Fatalf("err=%+v", ae)
	}
}

func TestSubmitDraft_Rejections(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.provisionDriver(t, "D-001")
	ctx := context.Background()

	t.Run("missing driver id", func(t *testing.T) {
		_, err := f.svc.SubmitDraft(ctx, fieldreports.SubmitDraftInput{QRToken: f.mint(t, "CUST-1")})
		if ae := appErr(t, err); ae.Code != "VALIDATION_ERROR" {
			t.Fatalf("err=%+v", ae)
		}
	})
	t.Run("unknown driver", func(t *testing.T) {
		_, err := f.svc.SubmitDraft(ctx, fieldreports.SubmitDraftInput{QRToken: f.mint(t, "CUST-1"), DriverCanonicalID: "D-404"})
		if ae := appErr(t, err); ae.Code != "DRIVER_NOT_FOUND" || ae.Status != 422 {
			t.Fatalf("err=%+v", ae)
		}
	})
	t.Run("invalid token", func(t *testing.T) {
		_, err := f.svc.SubmitDraft(ctx, fieldreports.SubmitDraftInput{QRToken: "garbage", DriverCanonicalID: "D-001"})
		if ae := appErr(t, err); ae.Code != "INVALID_TOKEN" || ae.Status != 401 {
			t.Fatalf("err=%+v", ae)
		}
	})
	t.Run("expired token", func(t *testing.T) {
		token := f.mint(t, "CUST-1")
		f.clk.Advance(2 * time.Hour)
		_, err := f.svc.SubmitDraft(ctx, fieldreports.SubmitDraftInput{QRToken: token, DriverCanonicalID: "D-001"})
		if ae := appErr(t, err); ae.Code != "INVALID_TOKEN" || ae.Status != 401 {
			t.Fatalf("err=%+v", ae)
		}
	})
}

func TestSubmitDraft_RateLimited(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.provisionDriver(t, "D-001")
	token := f.mint(t, "CUST-1")
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		if _, err := f.svc.SubmitDraft(ctx, fieldreports.SubmitDraftInput{QRToken: token, DriverCanonicalID: "D-001"}); err != nil {
			t.Fatalf("submission %d: %v", i, err)
		}
	}
	_, err := f.svc.SubmitDraft(ctx, fieldreports.SubmitDraftInput{QRToken: token, DriverCanonicalID: "D-001"})
	if ae := appErr(t, err); ae.Code != "TOO_MANY_REQUESTS" || ae.Status != 429 {
		t.Fatalf("11th submission: %+v", ae)
	}

	// After the window, submissions flow again.
	f.clk.Advance(61 * time.Second)
	if _, err := f.svc.SubmitDraft(ctx, fieldreports.SubmitDraftInput{QRToken: token, DriverCanonicalID: "D-001"}); err != nil {
		t.Fatalf("post-window submission: %v", err)
	}
}

func TestSubmitDraft_OwnershipMismatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.provisionDriver(t, "D-001")
	ctx := context.Background()

	// A record whose stored driver disagrees with its trip id can only come
	// from device misconfiguration or data repair; it must reject, not merge.
	tripID := domain.DeriveTripID("CUST-1", "D-001", "2024-01-01")
	now := f.clk.Now()
	if err := f.reports.Create(ctx, reportrepo.Report{
		ID: "seeded", TripID: tripID, Customer: "CUST-1", Driver: "D-999",
		Status: reportrepo.StatusDraft, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := f.svc.SubmitDraft(ctx, fieldreports.SubmitDraftInput{
		QRToken:           f.mint(t, "CUST-1"),
		DriverCanonicalID: "D-001",
	})
	if ae := appErr(t, err); ae.Code != "OWNERSHIP_MISMATCH" || ae.Status != 409 {
		t.Fatalf("err=%+v", ae)
	}
}

func TestSubmitDraft_CreateRace_RetriesAsEdit(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.provisionDriver(t, "D-001")
	ctx := context.Background()

	tripID := domain.DeriveTripID("CUST-1", "D-001", "2024-01-01")
	racing := &racingRepo{Repo: f.reports, tripID: tripID, clkNow: f.clk.Now}

	svc := fieldreports.NewService(racing, f.drivers, f.signer, ratelimit.New(memkvstore.NewStoreWithClock(f.clk)), f.clk)
	res, err := svc.SubmitDraft(ctx, fieldreports.SubmitDraftInput{
		QRToken:           f.mint(t, "CUST-1"),
		DriverCanonicalID: "D-001",
		Payload:           json.RawMessage(`{"notes": "mine"}`),
	})
	if err != nil {
		t.Fatalf("SubmitDraft: %v", err)
	}
	if res.Mode != fieldreports.ModeEdited {
		t.Fatalf("expected the losing create to retry as edit, got mode=%s", res.Mode)
	}
	rep, err := f.reports.GetByTripID(ctx, tripID)
	if err != nil {
		t.Fatalf("GetByTripID: %v", err)
	}
	if rep.ID != "winner" {
		t.Fatalf("expected the concurrent winner record to survive, got %s", rep.ID)
	}
	if rep.Notes == nil || *rep.Notes != "mine" {
		t.Fatalf("losing submission's payload must merge in, notes=%v", rep.Notes)
	}
}

// racingRepo simulates losing the create race: between the service's lookup
// and its create, a concurrent submission inserts the same trip id.
type racingRepo struct {
	*memreportrepo.Repo
	tripID domain.TripID
	clkNow func() time.Time
	raced  bool
}

func (r *racingRepo) Create(ctx context.Context, rep reportrepo.Report) error {
	if !r.raced && rep.TripID == r.tripID {
		r.raced = true
		now := r.clkNow()
		winner := reportrepo.Report{
			ID: "winner", TripID: r.tripID, Customer: rep.Customer, Driver: rep.Driver,
			Status: reportrepo.StatusDraft, CreatedAt: now, UpdatedAt: now,
		}
		if err := r.Repo.Create(ctx, winner); err != nil {
			return err
		}
		return reportrepo.ErrAlreadyExists
	}
	return r.Repo.Create(ctx, rep)
}

func TestFinalize_Lifecycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.provisionDriver(t, "D-001")
	token := f.mint(t, "CUST-1")
	ctx := context.Background()

	res, err := f.svc.SubmitDraft(ctx, fieldreports.SubmitDraftInput{
		QRToken:           token,
		DriverCanonicalID: "D-001",
		Payload:           json.RawMessage(`{"notes": "ok"}`),
	})
	if err != nil {
		t.Fatalf("SubmitDraft: %v", err)
	}

	// Classification not set yet.
	_, err = f.svc.Finalize(ctx, res.TripID, "D-001")
	if ae := appErr(t, err); ae.Code != "MISSING_REQUIRED_FIELD" || ae.Status != 422 {
		t.Fatalf("finalize without service_type: %+v", ae)
	}

	// Back office sets the classification.
	rep, _ := f.reports.GetByTripID(ctx, res.TripID)
	st := "Collection"
	rep.ServiceType = &st
	if err := f.reports.Save(ctx, rep); err != nil {
		t.Fatalf("Save: %v", err)
	}

	fin, err := f.svc.Finalize(ctx, res.TripID, "D-001")
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if fin.Status != domain.ReportStatusFinal {
		t.Fatalf("status=%s", fin.Status)
	}

	// Final is terminal.
	_, err = f.svc.Finalize(ctx, res.TripID, "D-001")
	if ae := appErr(t, err); ae.Code != "ALREADY_FINALIZED" || ae.Status != 409 {
		t.Fatalf("second finalize: %+v", ae)
	}
	_, err = f.svc.SubmitDraft(ctx, fieldreports.SubmitDraftInput{
		QRToken:           token,
		DriverCanonicalID: "D-001",
		Payload:           json.RawMessage(`{"notes": "late"}`),
	})
	if ae := appErr(t, err); ae.Code != "NOT_EDITABLE" || ae.Status != 409 {
		t.Fatalf("submit after finalize: %+v", ae)
	}

	got, _ := f.reports.GetByTripID(ctx, res.TripID)
	if got.Status != reportrepo.StatusFinal || got.Notes == nil || *got.Notes != "ok" {
		t.Fatalf("final record mutated: %+v", got)
	}
}

func TestFinalize_Rejections(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.provisionDriver(t, "D-001")
	f.provisionDriver(t, "D-002")
	ctx := context.Background()

	res, err := f.svc.SubmitDraft(ctx, fieldreports.SubmitDraftInput{
		QRToken:           f.mint(t, "CUST-1"),
		DriverCanonicalID: "D-001",
	})
	if err != nil {
		t.Fatalf("SubmitDraft: %v", err)
	}

	t.Run("unknown trip id", func(t *testing.T) {
		_, err := f.svc.Finalize(ctx, "ffffffffffffffffffffffffffffffff", "D-001")
		if ae := appErr(t, err); ae.Code != "REPORT_NOT_FOUND" || ae.Status != 404 {
			t.Fatalf("err=%+v", ae)
		}
	})
	t.Run("unknown driver", func(t *testing.T) {
		_, err := f.svc.Finalize(ctx, res.TripID, "D-404")
		if ae := appErr(t, err); ae.Code != "DRIVER_NOT_FOUND" {
			t.Fatalf("err=%+v", ae)
		}
	})
	t.Run("wrong driver", func(t *testing.T) {
		_, err := f.svc.Finalize(ctx, res.TripID, "D-002")
		if ae := appErr(t, err); ae.Code != "OWNERSHIP_MISMATCH" || ae.Status != 409 {
			t.Fatalf("err=%+v", ae)
		}
	})
}

func TestGetForCustomer(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.provisionDriver(t, "D-001")
	ctx := context.Background()

	res, err := f.svc.SubmitDraft(ctx, fieldreports.SubmitDraftInput{
		QRToken:           f.mint(t, "CUST-1"),
		DriverCanonicalID: "D-001",
		Payload:           json.RawMessage(`{"notes": "ok"}`),
	})
	if err != nil {
		t.Fatalf("SubmitDraft: %v", err)
	}

	rep, err := f.svc.GetForCustomer(ctx, res.TripID, "CUST-1")
	if err != nil {
		t.Fatalf("GetForCustomer: %v", err)
	}
	if rep.TripID != res.TripID {
		t.Fatalf("rep=%+v", rep)
	}

	// Another customer's bearer token reads as not-found.
	_, err = f.svc.GetForCustomer(ctx, res.TripID, "CUST-2")
	if ae := appErr(t, err); ae.Code != "REPORT_NOT_FOUND" || ae.Status != 404 {
		t.Fatalf("err=%+v", ae)
	}
}
