package reportrepo

import (
	"context"
	"sync"
	"time"

	"github.com/transportops/field-service-api/internal/domain"
	"github.com/transportops/field-service-api/internal/ports/out/reportrepo"
)

// Repo is an in-memory implementation of reportrepo.Repository.
// It is safe for concurrent use; the map key enforces trip-id uniqueness the
// way the database constraint does in production.
type Repo struct {
	mu       sync.RWMutex
	byTripID map[domain.TripID]reportrepo.Report
}

func NewRepo() *Repo {
	return &Repo{
		byTripID: make(map[domain.TripID]reportrepo.Report),
	}
}

func (r *Repo) Create(ctx context.Context, rep reportrepo.Report) error {
	_ = ctx
	if rep.TripID == "" {
		return reportrepo.ErrAlreadyExists
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byTripID[rep.TripID]; ok {
		return reportrepo.ErrAlreadyExists
	}
	r.byTripID[rep.TripID] = cloneReport(rep)
	return nil
}

func (r *Repo) Save(ctx context.Context, rep reportrepo.Report) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byTripID[rep.TripID]; !ok {
		return reportrepo.ErrNotFound
	}
	r.byTripID[rep.TripID] = cloneReport(rep)
	return nil
}

func (r *Repo) GetByTripID(ctx context.Context, id domain.TripID) (reportrepo.Report, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	rep, ok := r.byTripID[id]
	if !ok {
		return reportrepo.Report{}, reportrepo.ErrNotFound
	}
	return cloneReport(rep), nil
}

func cloneReport(rep reportrepo.Report) reportrepo.Report {
	cp := rep
	cp.TripDate = cloneTimePtr(rep.TripDate)
	cp.QtyOrWeight = cloneFloatPtr(rep.QtyOrWeight)
	cp.Photo = cloneStringPtr(rep.Photo)
	cp.GPSLat = cloneFloatPtr(rep.GPSLat)
	cp.GPSLng = cloneFloatPtr(rep.GPSLng)
	cp.Notes = cloneStringPtr(rep.Notes)
	cp.PerformedAt = cloneTimePtr(rep.PerformedAt)
	cp.PackageCount = cloneIntPtr(rep.PackageCount)
	cp.IsWasteSafe = cloneBoolPtr(rep.IsWasteSafe)
	cp.SafetyIssueReason = cloneStringPtr(rep.SafetyIssueReason)
	cp.SafetyIssuePhoto = cloneStringPtr(rep.SafetyIssuePhoto)
	cp.IsSafetyCritical = cloneBoolPtr(rep.IsSafetyCritical)
	cp.IsSafetyResolved = cloneBoolPtr(rep.IsSafetyResolved)
	cp.IsWasteCollected = cloneBoolPtr(rep.IsWasteCollected)
	cp.ServiceType = cloneStringPtr(rep.ServiceType)
	return cp
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloatPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneBoolPtr(p *bool) *bool {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTimePtr(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
