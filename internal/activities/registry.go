package activities

import (
	"sync"
	"time"

	apperrors "mergington-activities/internal/common/errors"
	"mergington-activities/internal/common/metrics"
)

// Registry is the process-wide mutable catalog. Each check-then-mutate
// step runs under the write lock.
type Registry struct {
	mu              sync.RWMutex
	order           []string
	activities      map[string]*Activity
	version         uint64
	enforceCapacity bool
	now             func() time.Time
}

type Option func(*Registry)

// WithCapacityEnforcement makes Signup reject once max_participants is
// reached. Off by default.
func WithCapacityEnforcement(enabled bool) Option {
	return func(r *Registry) { r.enforceCapacity = enabled }
}

// WithClock overrides the timestamp source for Change.At.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry builds a registry holding a deep copy of seed. A nil seed
// means the default catalog.
func NewRegistry(seed *Catalog, opts ...Option) *Registry {
	r := &Registry{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if seed == nil {
		seed = DefaultCatalog()
	}
	r.load(seed)
	return r
}

// load replaces the contents with c and republishes the participants
// gauge, dropping series for activities c no longer holds.
func (r *Registry) load(c *Catalog) {
	for name := range r.activities {
		if _, kept := c.Get(name); !kept {
			metrics.Participants.DeleteLabelValues(name)
		}
	}

	r.order = c.Names()
	r.activities = make(map[string]*Activity, len(r.order))
	for _, name := range r.order {
		a, _ := c.Get(name)
		r.activities[name] = &a
		publishParticipants(&a)
	}
}

func publishParticipants(a *Activity) {
	metrics.Participants.WithLabelValues(a.Name).Set(float64(len(a.Participants)))
}

// List returns the full catalog. The result is a copy.
func (r *Registry) List() *Catalog {
	c, _ := r.ListWithVersion()
	return c
}

// ListWithVersion returns the catalog together with the version it reflects.
func (r *Registry) ListWithVersion() (*Catalog, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c := &Catalog{items: make(map[string]Activity, len(r.order))}
	for _, name := range r.order {
		c.put(*r.activities[name])
	}
	return c, r.version
}

// Version increases by one with every successful mutation or Reset.
func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Snapshot is List under the name used when saving state for a later Reset.
func (r *Registry) Snapshot() *Catalog {
	return r.List()
}

// Reset replaces the whole registry with a deep copy of c.
func (r *Registry) Reset(c *Catalog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.load(c)
	r.version++
}

// Get returns a copy of one activity.
func (r *Registry) Get(name string) (Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.activities[name]
	if !ok {
		return Activity{}, apperrors.NewActivityNotFoundError(name)
	}
	return a.clone(), nil
}

// Signup appends email to the named activity. Emails are opaque; no format
// check is made.
func (r *Registry) Signup(name, email string) (Change, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.activities[name]
	if !ok {
		return Change{}, apperrors.NewActivityNotFoundError(name)
	}
	if a.HasParticipant(email) {
		return Change{}, apperrors.NewAlreadySignedUpError(name, email)
	}
	if r.enforceCapacity && a.MaxParticipants > 0 && len(a.Participants) >= a.MaxParticipants {
		return Change{}, apperrors.NewActivityFullError(name, a.MaxParticipants)
	}

	a.Participants = append(a.Participants, email)
	r.version++
	publishParticipants(a)

	return Change{
		Operation:    OpSignup,
		Activity:     name,
		Email:        email,
		Participants: len(a.Participants),
		Version:      r.version,
		At:           r.now().UTC(),
	}, nil
}

// Unregister removes the one occurrence of email from the named activity.
func (r *Registry) Unregister(name, email string) (Change, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.activities[name]
	if !ok {
		return Change{}, apperrors.NewActivityNotFoundError(name)
	}
	idx := indexOf(a.Participants, email)
	if idx < 0 {
		return Change{}, apperrors.NewNotSignedUpError(name, email)
	}

	remaining := make([]string, 0, len(a.Participants)-1)
	remaining = append(remaining, a.Participants[:idx]...)
	remaining = append(remaining, a.Participants[idx+1:]...)
	a.Participants = remaining
	r.version++
	publishParticipants(a)

	return Change{
		Operation:    OpUnregister,
		Activity:     name,
		Email:        email,
		Participants: len(a.Participants),
		Version:      r.version,
		At:           r.now().UTC(),
	}, nil
}
