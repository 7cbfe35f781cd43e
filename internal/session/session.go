// Package session holds the bootstrap state every JMAP request needs:
// the API credential and the account identifier it resolves to.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// ErrNotConfigured is returned when an operation runs before Configure
// has succeeded at least once.
var ErrNotConfigured = errors.New("mail account not configured")

// Context is one immutable configuration snapshot. Operations hold a
// *Context for their whole lifetime, so a concurrent reconfiguration can
// never pair the token of one configuration with the account of another.
type Context struct {
	Token     string
	AccountID string
	Identity  string
}

// Configured reports whether the snapshot carries both required fields.
func (c *Context) Configured() bool {
	return c != nil && c.Token != "" && c.AccountID != ""
}

// BootstrapResult is the identity resolved for a credential.
type BootstrapResult struct {
	AccountID string
	Identity  string
}

// Bootstrapper resolves a credential to an account identifier. The
// transport client implements this against the session endpoint.
type Bootstrapper interface {
	BootstrapSession(ctx context.Context, token string) (*BootstrapResult, error)
}

// Store owns the current Context and swaps it atomically on
// reconfiguration.
type Store struct {
	bootstrap Bootstrapper
	current   atomic.Pointer[Context]
	group     singleflight.Group
}

// NewStore creates an unconfigured Store.
func NewStore(bootstrap Bootstrapper) *Store {
	return &Store{bootstrap: bootstrap}
}

// Configure resolves and installs a new snapshot. When accountID is
// empty it is resolved via the bootstrapper; Configure never installs a
// snapshot with a missing account identifier. Concurrent Configure calls
// for the same token share one bootstrap round trip.
func (s *Store) Configure(ctx context.Context, token, accountID string) (*Context, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing API token", ErrNotConfigured)
	}

	identity := ""
	if accountID == "" {
		if s.bootstrap == nil {
			return nil, fmt.Errorf("%w: no account identifier and no bootstrapper", ErrNotConfigured)
		}
		v, err, _ := s.group.Do(token, func() (any, error) {
			return s.bootstrap.BootstrapSession(ctx, token)
		})
		if err != nil {
			return nil, fmt.Errorf("bootstrap session: %w", err)
		}
		result := v.(*BootstrapResult)
		if result.AccountID == "" {
			return nil, fmt.Errorf("%w: session had no primary mail account", ErrNotConfigured)
		}
		accountID = result.AccountID
		identity = result.Identity
	}

	snapshot := &Context{
		Token:     token,
		AccountID: accountID,
		Identity:  identity,
	}
	s.current.Store(snapshot)
	return snapshot, nil
}

// Current returns the active snapshot, or ErrNotConfigured.
func (s *Store) Current() (*Context, error) {
	c := s.current.Load()
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	return c, nil
}
