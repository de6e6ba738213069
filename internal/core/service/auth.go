package service

import (
	"context"
	"strings"
	"time"

	"github.com/yndnr/crmdesk-go/internal/core/domain"
	"github.com/yndnr/crmdesk-go/internal/telemetry/logger"
	"github.com/yndnr/crmdesk-go/pkg/token"
)

// Backend exchanges credentials for a session grant.
//
// Implementations report network faults as domain.ErrBackendUnavailable
// and refused credentials as domain.ErrLoginRejected.
type Backend interface {
	Login(ctx context.Context, creds domain.Credentials) (*domain.LoginGrant, error)
}

// Authenticator drives the login flow: backend first, then the store.
// The store only sees grants the backend has already accepted.
type Authenticator struct {
	backend  Backend
	store    *SessionStore
	log      logger.Logger
	recorder Recorder
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(backend Backend, store *SessionStore, log logger.Logger) *Authenticator {
	if log == nil {
		log = logger.Default()
	}
	return &Authenticator{
		backend:  backend,
		store:    store,
		log:      log.With("component", "authenticator"),
		recorder: store.recorder,
	}
}

// Authenticate validates the credentials, calls the backend, and on
// success persists and publishes the new session.
func (a *Authenticator) Authenticate(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	start := time.Now()

	if err := creds.Validate(); err != nil {
		return nil, err
	}

	grant, err := a.backend.Login(ctx, creds)
	if err != nil {
		a.recorder.RecordOperation(OpBackendLogin, OutcomeRejected, time.Since(start))
		a.log.WithContext(ctx).Warn("backend login failed",
			"email_fp", token.Fingerprint(strings.ToLower(strings.TrimSpace(creds.Email))),
			"code", domain.GetErrorCode(err))
		return nil, err
	}
	if grant == nil {
		return nil, domain.ErrBackendResponse.WithDetails("empty grant")
	}

	return a.store.Login(ctx, grant.Token, grant.Profile)
}

// Logout ends the local session. The backend keeps no client session
// state, so there is nothing to revoke remotely.
func (a *Authenticator) Logout(ctx context.Context) *domain.Session {
	return a.store.Logout(ctx)
}
