package scpi

import (
	"errors"
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
)

// Registry is a caller-owned, concurrency-safe collection of named sessions, for
// programs that drive several instruments.
type Registry struct {
	sessions *xsync.MapOf[string, *Session]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: xsync.NewMapOf[string, *Session]()}
}

// Add registers sess under name. It fails with ErrDuplicateSession if the name is taken.
func (r *Registry) Add(name string, sess *Session) error {
	if sess == nil {
		return ErrSessionNil
	}
	if _, loaded := r.sessions.LoadOrStore(name, sess); loaded {
		return fmt.Errorf("%w: %q", ErrDuplicateSession, name)
	}

	return nil
}

// Get returns the session registered under name.
func (r *Registry) Get(name string) (*Session, bool) {
	return r.sessions.Load(name)
}

// Remove unregisters name and returns its session. The session is not closed.
func (r *Registry) Remove(name string) (*Session, bool) {
	return r.sessions.LoadAndDelete(name)
}

// Range calls fn for each registered session until fn returns false.
func (r *Registry) Range(fn func(name string, sess *Session) bool) {
	r.sessions.Range(fn)
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	return r.sessions.Size()
}

// CloseAll closes and unregisters every session, returning the joined close errors.
func (r *Registry) CloseAll() error {
	var errs []error
	r.sessions.Range(func(name string, sess *Session) bool {
		if err := sess.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		r.sessions.Delete(name)

		return true
	})

	return errors.Join(errs...)
}
