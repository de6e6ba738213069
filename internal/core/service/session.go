package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yndnr/crmdesk-go/internal/core/domain"
	"github.com/yndnr/crmdesk-go/internal/storage"
	"github.com/yndnr/crmdesk-go/internal/telemetry/logger"
	"github.com/yndnr/crmdesk-go/pkg/token"
)

// Operation names reported to the Recorder.
const (
	OpRestore = "restore"
	OpRefresh = "refresh"
	OpLogin   = "login"
	OpLogout  = "logout"

	OpBackendLogin = "backend_login"
)

// Operation outcomes reported to the Recorder.
const (
	OutcomeAuthenticated   = "authenticated"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeInvalid         = "invalid"
	OutcomeStorageError    = "storage_error"
	OutcomeRejected        = "rejected"
	OutcomeOK              = "ok"
)

// DefaultRestoreTimeout bounds a restore so a hung storage layer cannot
// keep the gate on Loading forever.
const DefaultRestoreTimeout = 5 * time.Second

// purgeTimeout bounds the cleanup issued after an invalid restore.
const purgeTimeout = 2 * time.Second

// subscriptionBuffer is the per-subscriber snapshot backlog.
const subscriptionBuffer = 8

// Recorder observes session store activity.
type Recorder interface {
	// RecordOperation is called once per finished operation.
	RecordOperation(op, outcome string, elapsed time.Duration)

	// RecordState is called with every published snapshot.
	RecordState(s *domain.Session)
}

type nopRecorder struct{}

func (nopRecorder) RecordOperation(string, string, time.Duration) {}
func (nopRecorder) RecordState(*domain.Session)                   {}

// SessionStore is the single authority for "is someone logged in, and who".
//
// Operations are serialized: each one runs to completion, including its
// storage I/O, before the next publishes. Published snapshots are never
// modified, so readers never observe a partial session.
type SessionStore struct {
	kv             storage.KV
	log            logger.Logger
	recorder       Recorder
	now            func() time.Time
	restoreTimeout time.Duration

	opMu    sync.Mutex
	current atomic.Pointer[domain.Session]
	started sync.Once

	subMu  sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// StoreOption configures a SessionStore.
type StoreOption func(*SessionStore)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) StoreOption {
	return func(s *SessionStore) {
		s.now = now
	}
}

// WithRestoreTimeout bounds Restore and RefreshAuth. Zero disables the bound.
func WithRestoreTimeout(d time.Duration) StoreOption {
	return func(s *SessionStore) {
		s.restoreTimeout = d
	}
}

// WithStoreLogger sets the logger.
func WithStoreLogger(l logger.Logger) StoreOption {
	return func(s *SessionStore) {
		s.log = l
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) StoreOption {
	return func(s *SessionStore) {
		s.recorder = r
	}
}

// NewSessionStore creates a store in the Loading state. No I/O happens
// until Start.
func NewSessionStore(kv storage.KV, opts ...StoreOption) *SessionStore {
	s := &SessionStore{
		kv:             kv,
		log:            logger.Default(),
		recorder:       nopRecorder{},
		now:            time.Now,
		restoreTimeout: DefaultRestoreTimeout,
		subs:           make(map[*Subscription]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "session_store")
	s.current.Store(domain.LoadingSession())
	return s
}

// Start runs the initial restore exactly once and returns the resulting
// snapshot. Later calls return the current snapshot without I/O.
func (s *SessionStore) Start(ctx context.Context) *domain.Session {
	s.started.Do(func() {
		s.Restore(ctx)
	})
	return s.Snapshot()
}

// Snapshot returns the current published session.
func (s *SessionStore) Snapshot() *domain.Session {
	return s.current.Load()
}

// ============================================================================
// Restore / Refresh
// ============================================================================

// Restore reloads the session from durable storage.
//
// It never fails: storage faults are recorded in LastError, invalid or
// partial sessions are purged, and the loading flag is always cleared.
func (s *SessionStore) Restore(ctx context.Context) *domain.Session {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	return s.restoreLocked(ctx, OpRestore)
}

// RefreshAuth publishes a loading snapshot, then re-runs Restore.
func (s *SessionStore) RefreshAuth(ctx context.Context) *domain.Session {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.publish(s.current.Load().WithLoading())
	return s.restoreLocked(ctx, OpRefresh)
}

func (s *SessionStore) restoreLocked(ctx context.Context, op string) *domain.Session {
	start := time.Now()

	if s.restoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.restoreTimeout)
		defer cancel()
	}

	reads := s.readSession(ctx)
	now := s.now()
	next, outcome, purge := s.evaluate(reads, now)

	if purge {
		s.purge(ctx)
	}

	s.publish(next)
	s.recorder.RecordOperation(op, outcome, time.Since(start))

	s.log.WithContext(ctx).Info("session restored",
		"op", op,
		"outcome", outcome,
		"subject_id", next.Profile.SubjectID,
		"token_fp", token.Fingerprint(next.Token))

	return next
}

// sessionReads holds the three restore reads keyed by storage key.
type sessionReads map[string]storage.GetResult

// readSession issues the three reads concurrently. A read still pending
// when ctx ends is reported as a timeout; the others keep their result.
func (s *SessionStore) readSession(ctx context.Context) sessionReads {
	type keyed struct {
		key string
		res storage.GetResult
	}

	ch := make(chan keyed, len(domain.SessionKeys))
	for _, key := range domain.SessionKeys {
		go func() {
			ch <- keyed{key: key, res: s.safeGet(ctx, key)}
		}()
	}

	reads := make(sessionReads, len(domain.SessionKeys))
	for len(reads) < len(domain.SessionKeys) {
		select {
		case r := <-ch:
			reads[r.key] = r.res
		case <-ctx.Done():
			for _, key := range domain.SessionKeys {
				if _, ok := reads[key]; !ok {
					reads[key] = storage.Failed(domain.ErrStorageTimeout.WithCause(ctx.Err()))
				}
			}
			return reads
		}
	}
	return reads
}

// safeGet converts a panicking storage implementation into a failed read.
func (s *SessionStore) safeGet(ctx context.Context, key string) (res storage.GetResult) {
	defer func() {
		if r := recover(); r != nil {
			res = storage.Failed(domain.ErrInternal.WithDetails("storage panic on " + key))
		}
	}()
	return s.kv.Get(ctx, key)
}

// evaluate turns the three reads into the next snapshot.
func (s *SessionStore) evaluate(reads sessionReads, now time.Time) (next *domain.Session, outcome string, purge bool) {
	var failures []string
	present := 0
	for _, key := range domain.SessionKeys {
		r := reads[key]
		switch r.Status {
		case storage.StatusFailed:
			failures = append(failures, key+": "+errorText(r.Err))
		case storage.StatusFound:
			if r.Value != "" {
				present++
			}
		}
	}

	// A storage fault says nothing about the stored session, so it stays.
	if len(failures) > 0 {
		lastErr := domain.ErrStorageError.WithDetails(strings.Join(failures, "; "))
		s.log.Warn("session restore failed", "error", lastErr.Error())
		return domain.Unauthenticated(lastErr.Error(), now), OutcomeStorageError, false
	}

	if present == 0 {
		return domain.Unauthenticated("", now), OutcomeUnauthenticated, false
	}

	raw := reads[domain.KeyToken].Value
	profile := domain.Profile{
		SubjectID:       reads[domain.KeySubjectID].Value,
		SubjectUniqueID: reads[domain.KeySubjectUniqueID].Value,
	}

	if reason := invalidReason(raw, profile, now); reason != nil {
		s.log.Info("stored session invalid, purging", "reason", reason.Error())
		return domain.Unauthenticated("", now), OutcomeInvalid, true
	}

	exp, _ := token.ExpiryOf(raw)
	return domain.Authenticated(raw, profile, exp, now), OutcomeAuthenticated, false
}

// invalidReason explains why a stored session cannot be used, or returns nil.
func invalidReason(raw string, profile domain.Profile, now time.Time) error {
	if raw == "" {
		return domain.ErrTokenMissing
	}
	if profile.SubjectID == "" || profile.SubjectUniqueID == "" {
		return domain.ErrSessionIncomplete
	}
	return tokenError(raw, now)
}

// tokenError maps token.Check failures to domain errors.
func tokenError(raw string, now time.Time) error {
	_, err := token.Check(raw, now)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, token.ErrExpired):
		return domain.ErrTokenExpired
	case errors.Is(err, token.ErrNoExpiry):
		return domain.ErrTokenNoExpiry
	case errors.Is(err, token.ErrEmpty):
		return domain.ErrTokenMissing
	default:
		return domain.ErrTokenMalformed.WithCause(err)
	}
}

// purge removes the stored session. It outlives a restore deadline so an
// expired session is still cleaned up after a slow read.
func (s *SessionStore) purge(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), purgeTimeout)
	defer cancel()

	if err := s.kv.RemoveMany(ctx, domain.SessionKeys); err != nil {
		s.log.Warn("session purge failed", "error", err)
	}
}

// ============================================================================
// Login / Logout
// ============================================================================

// Login persists a freshly issued session and publishes it.
//
// The token must carry an expiry in the future and the profile must pass
// validation. The three writes run concurrently; if any fails, Login
// returns the error, best-effort removes what was written, and publishes
// nothing. A nil error means storage already holds the new session.
//
// A failed write clears every session key, including those of a session
// persisted earlier. The published snapshot keeps the earlier session until
// the next restore, which then finds storage empty.
func (s *SessionStore) Login(ctx context.Context, raw string, profile domain.Profile) (*domain.Session, error) {
	start := time.Now()

	raw = strings.TrimSpace(raw)
	if err := s.validateLogin(raw, profile); err != nil {
		s.recorder.RecordOperation(OpLogin, OutcomeRejected, time.Since(start))
		return nil, err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.isClosed() {
		return nil, domain.ErrStoreClosed
	}

	writes := map[string]string{
		domain.KeyToken:           raw,
		domain.KeySubjectUniqueID: profile.SubjectUniqueID,
		domain.KeySubjectID:       profile.SubjectID,
	}

	g, gctx := errgroup.WithContext(ctx)
	for key, value := range writes {
		g.Go(func() error {
			return s.kv.Set(gctx, key, value)
		})
	}
	if err := g.Wait(); err != nil {
		s.purge(ctx)
		s.recorder.RecordOperation(OpLogin, OutcomeStorageError, time.Since(start))
		s.log.WithContext(ctx).Error("login persist failed", "error", err)
		return nil, domain.ErrStorageError.WithCause(err)
	}

	now := s.now()
	exp, _ := token.ExpiryOf(raw)
	next := domain.Authenticated(raw, profile, exp, now)
	s.publish(next)
	s.recorder.RecordOperation(OpLogin, OutcomeAuthenticated, time.Since(start))

	s.log.WithContext(ctx).Info("logged in",
		"subject_id", profile.SubjectID,
		"token_fp", token.Fingerprint(raw),
		"expires_at", exp)

	return next, nil
}

func (s *SessionStore) validateLogin(raw string, profile domain.Profile) error {
	if raw == "" {
		return domain.ErrTokenMissing
	}
	if err := profile.Validate(); err != nil {
		return err
	}
	return tokenError(raw, s.now())
}

// Logout removes the stored session and publishes an unauthenticated
// snapshot. Removal is best effort; Logout never fails and is idempotent.
func (s *SessionStore) Logout(ctx context.Context) *domain.Session {
	start := time.Now()

	s.opMu.Lock()
	defer s.opMu.Unlock()

	outcome := OutcomeOK
	if err := s.kv.RemoveMany(ctx, domain.SessionKeys); err != nil {
		outcome = OutcomeStorageError
		s.log.WithContext(ctx).Warn("logout cleanup failed", "error", err)
	}

	next := domain.Unauthenticated("", s.now())
	s.publish(next)
	s.recorder.RecordOperation(OpLogout, outcome, time.Since(start))

	s.log.WithContext(ctx).Info("logged out")
	return next
}

// ============================================================================
// Subscriptions
// ============================================================================

// Subscription delivers published snapshots in publish order.
//
// A subscriber that falls behind loses intermediate snapshots but always
// receives the latest one.
type Subscription struct {
	ch    chan *domain.Session
	store *SessionStore
	once  sync.Once
}

// C returns the delivery channel. It is closed by Close or when the
// store closes.
func (sub *Subscription) C() <-chan *domain.Session {
	return sub.ch
}

// Close stops delivery. Safe to call more than once.
func (sub *Subscription) Close() {
	sub.store.subMu.Lock()
	defer sub.store.subMu.Unlock()
	sub.closeLocked()
}

func (sub *Subscription) closeLocked() {
	sub.once.Do(func() {
		delete(sub.store.subs, sub)
		close(sub.ch)
	})
}

// Subscribe registers a subscriber. The current snapshot is delivered
// immediately, so the first receive never blocks.
func (s *SessionStore) Subscribe() *Subscription {
	sub := &Subscription{
		ch:    make(chan *domain.Session, subscriptionBuffer),
		store: s,
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()

	sub.ch <- s.current.Load()
	if s.closed {
		sub.closeLocked()
		return sub
	}
	s.subs[sub] = struct{}{}
	return sub
}

// Close ends every subscription and rejects further logins.
func (s *SessionStore) Close() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.closed = true
	for sub := range s.subs {
		sub.closeLocked()
	}
}

func (s *SessionStore) isClosed() bool {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return s.closed
}

// publish swaps the current snapshot and fans it out. Callers hold opMu.
func (s *SessionStore) publish(next *domain.Session) {
	s.current.Store(next)
	s.recorder.RecordState(next)

	s.subMu.Lock()
	defer s.subMu.Unlock()

	for sub := range s.subs {
		select {
		case sub.ch <- next:
			continue
		default:
		}
		// Full: drop the oldest so the latest is never lost.
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- next:
		default:
		}
	}
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
