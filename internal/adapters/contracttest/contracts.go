package contracttest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/transportops/field-service-api/internal/domain"
	driverrepoport "github.com/transportops/field-service-api/internal/ports/out/driverrepo"
	kvstoreport "github.com/transportops/field-service-api/internal/ports/out/kvstore"
	reportrepoport "github.com/transportops/field-service-api/internal/ports/out/reportrepo"
)

type CleanupFunc = func()

type DriverRepoFactory func(t *testing.T) (driverrepoport.Repository, CleanupFunc)
type ReportRepoFactory func(t *testing.T) (reportrepoport.Repository, CleanupFunc)
type KVStoreFactory func(t *testing.T) (kvstoreport.Store, CleanupFunc)

func RunKVStore(t *testing.T, newStore KVStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	// Get on a missing key.
	if _, ok, err := store.Get(ctx, "ct:missing"); err != nil || ok {
		t.Fatalf("Get missing: ok=%v err=%v", ok, err)
	}

	// Set/Get round-trip and overwrite.
	if err := store.Set(ctx, "ct:k", "v1", time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, ok, err := store.Get(ctx, "ct:k"); err != nil || !ok || v != "v1" {
		t.Fatalf("Get: v=%q ok=%v err=%v", v, ok, err)
	}
	if err := store.Set(ctx, "ct:k", "v2", time.Hour); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	if v, _, _ := store.Get(ctx, "ct:k"); v != "v2" {
		t.Fatalf("expected overwrite, got %q", v)
	}

	// Incr creates at 1 and counts up.
	if n, err := store.Incr(ctx, "ct:counter"); err != nil || n != 1 {
		t.Fatalf("first Incr: n=%d err=%v", n, err)
	}
	if n, err := store.Incr(ctx, "ct:counter"); err != nil || n != 2 {
		t.Fatalf("second Incr: n=%d err=%v", n, err)
	}

	// Incr on a non-integer value signals ErrNotInteger.
	if err := store.Set(ctx, "ct:text", "claims-blob", time.Hour); err != nil {
		t.Fatalf("Set text: %v", err)
	}
	if _, err := store.Incr(ctx, "ct:text"); !errors.Is(err, kvstoreport.ErrNotInteger) {
		t.Fatalf("Incr on text: got %v, want ErrNotInteger", err)
	}

	// Expire on an existing key succeeds; on a missing key it is a no-op.
	if err := store.Expire(ctx, "ct:counter", time.Hour); err != nil {
		t.Fatalf("Expire: %v", err)
	}
	if err := store.Expire(ctx, "ct:gone", time.Hour); err != nil {
		t.Fatalf("Expire missing: %v", err)
	}
}

func RunDriverRepo(t *testing.T, newRepo DriverRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(1000, 0).UTC()
	id := domain.DriverCanonicalID("CT-D-" + uuid.NewString()[:8])
	if err := repo.Create(ctx, driverrepoport.Driver{
		CanonicalID: id,
		DisplayName: "Contract Driver",
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	d, err := repo.GetByCanonicalID(ctx, id)
	if err != nil {
		t.Fatalf("GetByCanonicalID: %v", err)
	}
	if d.CanonicalID != id || d.DisplayName != "Contract Driver" || !d.IsActive {
		t.Fatalf("driver=%+v", d)
	}

	// Canonical id uniqueness.
	if err := repo.Create(ctx, driverrepoport.Driver{CanonicalID: id, DisplayName: "Dup", CreatedAt: now, UpdatedAt: now}); !errors.Is(err, driverrepoport.ErrAlreadyExists) {
		t.Fatalf("duplicate Create: got %v, want ErrAlreadyExists", err)
	}

	if _, err := repo.GetByCanonicalID(ctx, "CT-D-missing"); !errors.Is(err, driverrepoport.ErrNotFound) {
		t.Fatalf("missing driver: got %v, want ErrNotFound", err)
	}

	ds, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	found := false
	for _, x := range ds {
		if x.CanonicalID == id {
			found = true
		}
	}
	if !found {
		t.Fatalf("List did not return created driver")
	}
}

func RunReportRepo(t *testing.T, newRepo ReportRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(2000, 0).UTC()
	tripDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tripID := domain.DeriveTripID("CT-CUST", "CT-D-1", uuid.NewString())

	notes := "first"
	rep := reportrepoport.Report{
		ID:        domain.ReportID(uuid.NewString()),
		TripID:    tripID,
		Customer:  "CT-CUST",
		Driver:    "CT-D-1",
		Status:    reportrepoport.StatusDraft,
		TripDate:  &tripDate,
		Notes:     &notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Create(ctx, rep); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByTripID(ctx, tripID)
	if err != nil {
		t.Fatalf("GetByTripID: %v", err)
	}
	if got.Customer != "CT-CUST" || got.Driver != "CT-D-1" || got.Status != reportrepoport.StatusDraft {
		t.Fatalf("report=%+v", got)
	}
	if got.Notes == nil || *got.Notes != "first" {
		t.Fatalf("notes=%v", got.Notes)
	}
	if got.TripDate == nil || !got.TripDate.Equal(tripDate) {
		t.Fatalf("tripDate=%v", got.TripDate)
	}

	// Trip-id uniqueness is what the workflow's idempotency rests on.
	dup := rep
	dup.ID = domain.ReportID(uuid.NewString())
	if err := repo.Create(ctx, dup); !errors.Is(err, reportrepoport.ErrAlreadyExists) {
		t.Fatalf("duplicate Create: got %v, want ErrAlreadyExists", err)
	}

	// Save replaces mutable fields and can clear them.
	updated := "second"
	got.Notes = &updated
	got.PackageCount = nil
	lat := 35.7
	got.GPSLat = &lat
	got.Status = reportrepoport.StatusFinal
	got.UpdatedAt = now.Add(time.Minute)
	if err := repo.Save(ctx, got); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got2, err := repo.GetByTripID(ctx, tripID)
	if err != nil {
		t.Fatalf("GetByTripID after Save: %v", err)
	}
	if got2.Notes == nil || *got2.Notes != "second" || got2.GPSLat == nil || *got2.GPSLat != 35.7 {
		t.Fatalf("saved report=%+v", got2)
	}
	if got2.Status != reportrepoport.StatusFinal {
		t.Fatalf("status=%s", got2.Status)
	}

	if _, err := repo.GetByTripID(ctx, "00000000000000000000000000000000"); !errors.Is(err, reportrepoport.ErrNotFound) {
		t.Fatalf("missing report: got %v, want ErrNotFound", err)
	}
	if err := repo.Save(ctx, reportrepoport.Report{ID: domain.ReportID(uuid.NewString()), TripID: "00000000000000000000000000000000"}); !errors.Is(err, reportrepoport.ErrNotFound) {
		t.Fatalf("Save missing: got %v, want ErrNotFound", err)
	}
}
