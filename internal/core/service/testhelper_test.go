package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yndnr/crmdesk-go/internal/core/domain"
	"github.com/yndnr/crmdesk-go/internal/storage"
	"github.com/yndnr/crmdesk-go/internal/telemetry/logger"
)

// testNow is the fixed clock used by store tests.
var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var testProfile = domain.Profile{SubjectID: "CUST1", SubjectUniqueID: "IND1"}

var errInjected = errors.New("injected fault")

// mintToken signs a token expiring at exp. The signature is never checked.
func mintToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "CUST1",
		IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

// unsignedToken builds a token whose header names alg and whose payload
// carries only exp. Such tokens cannot be produced by the jwt signer.
func unsignedToken(alg string, exp time.Time) string {
	header := `{"typ":"JWT"}`
	if alg != "" {
		header = fmt.Sprintf(`{"alg":%q,"typ":"JWT"}`, alg)
	}
	enc := base64.RawURLEncoding.EncodeToString
	return enc([]byte(header)) + "." + enc([]byte(fmt.Sprintf(`{"exp":%d}`, exp.Unix()))) + ".c2ln"
}

// fakeKV is an in-process KV with fault injection.
type fakeKV struct {
	mu        sync.Mutex
	data      map[string]string
	getErr    map[string]error
	setErr    map[string]error
	removeErr error
	panicOn   map[string]bool
	block     map[string]chan struct{}

	removes int
}

func newFakeKV() *fakeKV {
	return &fakeKV{
		data:    make(map[string]string),
		getErr:  make(map[string]error),
		setErr:  make(map[string]error),
		panicOn: make(map[string]bool),
		block:   make(map[string]chan struct{}),
	}
}

// blockGet makes reads of key hang until the test ends.
func (f *fakeKV) blockGet(t *testing.T, key string) {
	release := make(chan struct{})
	f.mu.Lock()
	f.block[key] = release
	f.mu.Unlock()
	t.Cleanup(func() { close(release) })
}

func (f *fakeKV) Get(ctx context.Context, key string) storage.GetResult {
	f.mu.Lock()
	release := f.block[key]
	shouldPanic := f.panicOn[key]
	err := f.getErr[key]
	value, ok := f.data[key]
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	if shouldPanic {
		panic("fake kv: " + key)
	}
	if err != nil {
		return storage.Failed(err)
	}
	if !ok {
		return storage.Missing()
	}
	return storage.Found(value)
}

func (f *fakeKV) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.setErr[key]; err != nil {
		return err
	}
	f.data[key] = value
	return nil
}

func (f *fakeKV) RemoveMany(ctx context.Context, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removes++
	if f.removeErr != nil {
		return f.removeErr
	}
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeKV) Close() error { return nil }

func (f *fakeKV) put(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
}

func (f *fakeKV) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

func (f *fakeKV) removeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removes
}

// seed writes a full session directly, bypassing Login.
func (f *fakeKV) seed(raw string, p domain.Profile) {
	f.put(domain.KeyToken, raw)
	f.put(domain.KeySubjectUniqueID, p.SubjectUniqueID)
	f.put(domain.KeySubjectID, p.SubjectID)
}

// fakeRecorder captures store activity.
type fakeRecorder struct {
	mu     sync.Mutex
	ops    []string
	states []*domain.Session
}

func (r *fakeRecorder) RecordOperation(op, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op+"/"+outcome)
}

func (r *fakeRecorder) RecordState(s *domain.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *fakeRecorder) lastOp() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ops) == 0 {
		return ""
	}
	return r.ops[len(r.ops)-1]
}

func newTestStore(t *testing.T, kv storage.KV, opts ...StoreOption) *SessionStore {
	t.Helper()
	base := []StoreOption{
		WithClock(func() time.Time { return testNow }),
		WithStoreLogger(logger.Nop()),
	}
	s := NewSessionStore(kv, append(base, opts...)...)
	t.Cleanup(s.Close)
	return s
}

// receive reads one snapshot or fails after a second.
func receive(t *testing.T, sub *Subscription) *domain.Session {
	t.Helper()
	select {
	case s, ok := <-sub.C():
		if !ok {
			t.Fatal("subscription closed")
		}
		return s
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
		return nil
	}
}
