// Package gate decides which top-level surface the user sees.
//
// The decision is a pure function of the published session snapshot:
// a loading indicator while the session settles, the authenticated shell
// when someone is logged in, and the login screen otherwise.
package gate

import (
	"context"

	"github.com/yndnr/crmdesk-go/internal/core/domain"
)

// Route is the top-level surface chosen for a snapshot.
type Route uint8

const (
	RouteLoading Route = iota
	RouteShell
	RouteLogin
)

// String returns the lowercase route name.
func (r Route) String() string {
	switch r {
	case RouteLoading:
		return "loading"
	case RouteShell:
		return "shell"
	default:
		return "login"
	}
}

// Decide maps a snapshot to a route. Loading wins over authentication,
// so a refresh keeps the indicator up until it settles.
func Decide(s *domain.Session) Route {
	switch {
	case s == nil || s.IsLoading:
		return RouteLoading
	case s.IsAuthenticated:
		return RouteShell
	default:
		return RouteLogin
	}
}

// Source delivers session snapshots. *service.Subscription satisfies it.
type Source interface {
	C() <-chan *domain.Session
}

// Watch calls fn for the first snapshot and then on every route change,
// until ctx ends or the source closes. Snapshots that keep the route are
// skipped.
func Watch(ctx context.Context, src Source, fn func(Route, *domain.Session)) error {
	first := true
	var current Route

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-src.C():
			if !ok {
				return nil
			}
			next := Decide(s)
			if !first && next == current {
				continue
			}
			first = false
			current = next
			fn(next, s)
		}
	}
}
