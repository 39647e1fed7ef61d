// Package scope resolves the organization scope that every conversation is
// created under. Resolution runs once per process; callers block on a
// readiness gate until it settles.
package scope

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/n0madic/go-slaude/internal/metrics"
	"github.com/n0madic/go-slaude/internal/types"
	"github.com/n0madic/go-slaude/internal/upstream"
)

// State is the lifecycle of a Resolver.
type State int

const (
	StatePending State = iota
	StateResolved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// OrganizationLister is the upstream call a Resolver depends on.
type OrganizationLister interface {
	ListOrganizations(ctx context.Context) ([]types.Organization, error)
}

// Resolver holds the process-wide scope. The value is written once, before
// the gate closes, and is read-only afterwards.
type Resolver struct {
	lister  OrganizationLister
	timeout time.Duration

	start sync.Once
	done  chan struct{}

	mu    sync.RWMutex
	state State
	value string
	err   error
}

// NewResolver creates a pending resolver. timeout bounds the single
// upstream call; zero means no bound beyond the context passed to Start.
func NewResolver(lister OrganizationLister, timeout time.Duration) *Resolver {
	return &Resolver{
		lister:  lister,
		timeout: timeout,
		done:    make(chan struct{}),
	}
}

// Static returns a resolver that is already resolved to value.
func Static(value string) *Resolver {
	r := NewResolver(nil, 0)
	r.start.Do(func() {})
	r.settle(value, nil)
	return r
}

// Start launches resolution in the background. Only the first call has an
// effect.
func (r *Resolver) Start(ctx context.Context) {
	r.start.Do(func() {
		go r.resolve(ctx)
	})
}

// Resolve starts resolution if needed and waits for it to settle.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	r.Start(ctx)
	return r.Wait(ctx)
}

// Wait blocks until the scope is known, resolution has failed, or ctx ends.
func (r *Resolver) Wait(ctx context.Context) (string, error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrNotReady, ctx.Err())
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.err != nil {
		return "", r.err
	}
	return r.value, nil
}

// Value returns the scope without blocking.
func (r *Resolver) Value() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.value, r.state == StateResolved
}

// State reports the current lifecycle state.
func (r *Resolver) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Err returns the recorded failure, if any.
func (r *Resolver) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Done is closed once resolution has settled.
func (r *Resolver) Done() <-chan struct{} {
	return r.done
}

func (r *Resolver) resolve(ctx context.Context) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	started := time.Now()
	orgs, err := r.lister.ListOrganizations(ctx)
	if err != nil {
		r.settle("", classify(err))
		return
	}
	if len(orgs) == 0 {
		r.settle("", &ResolutionError{Reason: "no organizations visible to this session"})
		return
	}
	if orgs[0].UUID == "" {
		r.settle("", &ResolutionError{Reason: "first organization has no uuid"})
		return
	}
	slog.Info("scope.resolved",
		"organization", orgs[0].UUID,
		"available", len(orgs),
		"duration", time.Since(started),
	)
	r.settle(orgs[0].UUID, nil)
}

// classify separates transient failures from ones that need operator action.
func classify(err error) error {
	var transportErr *upstream.TransportError
	if errors.As(err, &transportErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	var upErr *upstream.UpstreamError
	if errors.As(err, &upErr) {
		return &ResolutionError{Reason: "upstream rejected the session", Err: err}
	}
	return &ResolutionError{Err: err}
}

func (r *Resolver) settle(value string, err error) {
	r.mu.Lock()
	r.value = value
	r.err = err
	if err != nil {
		r.state = StateFailed
	} else {
		r.state = StateResolved
	}
	r.mu.Unlock()

	if err != nil {
		metrics.ScopeResolved.Set(0)
		slog.Error("scope.resolve.failed", "error", err, "fatal", errors.Is(err, ErrResolution))
	} else {
		metrics.ScopeResolved.Set(1)
	}
	close(r.done)
}
