package command

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/crmdesk-go/internal/core/domain"
)

func TestNewStatusView(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	profile := domain.Profile{SubjectID: "CUST1", SubjectUniqueID: "IND1"}

	tests := []struct {
		name    string
		session *domain.Session
		want    StatusView
	}{
		{"nil", nil, StatusView{Route: "loading"}},
		{"loading", domain.LoadingSession(), StatusView{Route: "loading"}},
		{
			"unauthenticated with error",
			domain.Unauthenticated("storage error", now),
			StatusView{Route: "login", LastError: "storage error", CheckedAt: "2026-03-01T12:00:00Z"},
		},
		{
			"authenticated",
			domain.Authenticated("tok", profile, now.Add(90*time.Minute+500*time.Millisecond), now),
			StatusView{
				Route:          "shell",
				Authenticated:  true,
				CustomerID:     "CUST1",
				CustomerUniqID: "IND1",
				ExpiresAt:      "2026-03-01T13:30:00Z",
				TTL:            "1h30m0s",
				CheckedAt:      "2026-03-01T12:00:00Z",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewStatusView(tt.session, now)
			got.TokenFingerprint = ""
			if got != tt.want {
				t.Errorf("NewStatusView() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNewStatusView_HidesToken(t *testing.T) {
	now := time.Now()
	tok := "eyJhbGciOiJIUzI1NiJ9.eyJleHAiOjF9.c2ln"
	s := domain.Authenticated(tok, domain.Profile{SubjectID: "C", SubjectUniqueID: "U"}, now.Add(time.Hour), now)

	v := NewStatusView(s, now)
	b, _ := json.Marshal(v)
	if strings.Contains(string(b), tok) {
		t.Errorf("status view leaks the token: %s", b)
	}
	if v.TokenFingerprint == "" {
		t.Error("expected a token fingerprint")
	}
}

func TestStatus(t *testing.T) {
	m := newMockServer(t)
	acceptLogin(t, m)
	rt := newTestRuntime(t, testConfig(m))

	out, err := runApp(t, rt, "", "status")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	if !strings.Contains(out, "route") || !strings.Contains(out, "login") {
		t.Errorf("table output = %q", out)
	}
	if strings.Contains(out, "token_fp") {
		t.Errorf("token_fp should only show in wide mode: %q", out)
	}

	if _, err := runApp(t, rt, "", "login", "-e", "owner@shop.test", "-p", "pw"); err != nil {
		t.Fatalf("login error = %v", err)
	}

	out, err = runApp(t, rt, "", "--output", "json", "status")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	var v StatusView
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if v.Route != "shell" || !v.Authenticated || v.CustomerID != "CUST1" {
		t.Errorf("status = %+v", v)
	}

	out, err = runApp(t, rt, "", "--wide", "status")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	if !strings.Contains(out, "token_fp") {
		t.Errorf("wide output missing token_fp: %q", out)
	}
}

func TestRefresh(t *testing.T) {
	m := newMockServer(t)
	acceptLogin(t, m)
	rt := newTestRuntime(t, testConfig(m))

	if _, err := runApp(t, rt, "", "login", "-e", "owner@shop.test", "-p", "pw"); err != nil {
		t.Fatalf("login error = %v", err)
	}

	sub := rt.Store.Subscribe()
	defer sub.Close()
	<-sub.C()

	out, err := runApp(t, rt, "", "-o", "json", "refresh")
	if err != nil {
		t.Fatalf("refresh error = %v", err)
	}
	var v StatusView
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if v.Route != "shell" {
		t.Errorf("route = %q, want shell", v.Route)
	}

	if s := <-sub.C(); !s.IsLoading {
		t.Errorf("refresh should publish a loading snapshot first, got %+v", s)
	}
	if s := <-sub.C(); s.IsLoading || !s.IsAuthenticated {
		t.Errorf("refresh result = %+v", s)
	}
}

func TestRefresh_ExternalLogout(t *testing.T) {
	m := newMockServer(t)
	acceptLogin(t, m)
	rt := newTestRuntime(t, testConfig(m))

	if _, err := runApp(t, rt, "", "login", "-e", "owner@shop.test", "-p", "pw"); err != nil {
		t.Fatalf("login error = %v", err)
	}
	if err := rt.KV.RemoveMany(context.Background(), []string{domain.KeyToken}); err != nil {
		t.Fatal(err)
	}

	out, err := runApp(t, rt, "", "-o", "json", "refresh")
	if err != nil {
		t.Fatalf("refresh error = %v", err)
	}
	if !strings.Contains(out, `"route": "login"`) && !strings.Contains(out, `"route":"login"`) {
		t.Errorf("output = %q, want login route", out)
	}
}
