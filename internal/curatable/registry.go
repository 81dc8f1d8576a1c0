// internal/curatable/registry.go
package curatable

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Kind discriminates what a curated reference points at. Tasks are the
// only kind today; the registry keeps the reference extensible without
// reflection.
type Kind string

const KindTask Kind = "task"

// Ref is a tagged reference to a curatable entity.
type Ref struct {
	Kind Kind  `json:"kind"`
	ID   int64 `json:"id"`
}

// Lookup resolves a reference of one kind to a display label, or an error
// when the entity is gone.
type Lookup func(ctx context.Context, id int64) (string, error)

type Registry struct {
	mu      sync.RWMutex
	lookups map[Kind]Lookup
}

func NewRegistry() *Registry {
	return &Registry{lookups: make(map[Kind]Lookup)}
}

func (r *Registry) Register(kind Kind, fn Lookup) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups[kind] = fn
}

// Resolve looks a reference up through its kind's registered resolver.
// Unregistered kinds are an error: a reference nobody can resolve is a bug.
func (r *Registry) Resolve(ctx context.Context, ref Ref) (string, error) {
	r.mu.RLock()
	fn, ok := r.lookups[ref.Kind]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("curatable: no resolver for kind %q", ref.Kind)
	}
	return fn(ctx, ref.ID)
}

// Kinds lists the registered kinds, sorted for stable output.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]Kind, 0, len(r.lookups))
	for k := range r.lookups {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
