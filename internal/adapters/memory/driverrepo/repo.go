package driverrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/transportops/field-service-api/internal/domain"
	"github.com/transportops/field-service-api/internal/ports/out/driverrepo"
)

// Repo is an in-memory implementation of driverrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.DriverCanonicalID]driverrepo.Driver
}

func NewRepo() *Repo {
	return &Repo{
		byID: make(map[domain.DriverCanonicalID]driverrepo.Driver),
	}
}

func (r *Repo) Create(ctx context.Context, d driverrepo.Driver) error {
	_ = ctx
	if d.CanonicalID == "" {
		return driverrepo.ErrAlreadyExists
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[d.CanonicalID]; ok {
		return driverrepo.ErrAlreadyExists
	}
	r.byID[d.CanonicalID] = d
	return nil
}

func (r *Repo) GetByCanonicalID(ctx context.Context, id domain.DriverCanonicalID) (driverrepo.Driver, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	if !ok {
		return driverrepo.Driver{}, driverrepo.ErrNotFound
	}
	return d, nil
}

func (r *Repo) List(ctx context.Context) ([]driverrepo.Driver, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]driverrepo.Driver, 0, len(r.byID))
	for _, d := range r.byID {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CanonicalID < out[j].CanonicalID })
	return out, nil
}
