package synclogrepo

import (
	"context"
	"sync"

	"github.com/transportops/field-service-api/internal/ports/out/synclogrepo"
)

// Repo is an in-memory implementation of synclogrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu      sync.Mutex
	entries []synclogrepo.Entry
}

func NewRepo() *Repo {
	return &Repo{}
}

func (r *Repo) Append(ctx context.Context, e synclogrepo.Entry) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

// Entries returns a snapshot of everything appended so far. Test helper.
func (r *Repo) Entries() []synclogrepo.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]synclogrepo.Entry(nil), r.entries...)
}
