package command

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestShell(t *testing.T) {
	m := newMockServer(t)
	acceptLogin(t, m)
	rt := newTestRuntime(t, testConfig(m))
	history := filepath.Join(t.TempDir(), "history")

	input := strings.Join([]string{
		"fetch orders",
		"login -e owner@shop.test -p pw",
		"status",
		"shell",
		"logout",
		"exit",
	}, "\n") + "\n"

	out, err := runApp(t, rt, input, "shell", "--history-file", history)
	if err != nil {
		t.Fatalf("shell error = %v", err)
	}

	for _, want := range []string{
		"Not signed in. Use `login` first.",
		"Signed in as CUST1.",
		"crmdesk[CUST1]> ",
		`Unknown command "shell"`,
		"Signed out.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if rt.Store.Snapshot().IsAuthenticated {
		t.Error("expected logged out at exit")
	}

	data, err := os.ReadFile(history)
	if err != nil {
		t.Fatalf("history not saved: %v", err)
	}
	if strings.Contains(string(data), "-p pw") {
		t.Errorf("history stored a password: %q", data)
	}
	if !strings.Contains(string(data), "status\n") {
		t.Errorf("history = %q", data)
	}
}

func TestShell_PromptsThroughREPLInput(t *testing.T) {
	m := newMockServer(t)
	acceptLogin(t, m)
	rt := newTestRuntime(t, testConfig(m))

	input := "login -e owner@shop.test\npw\nstatus\nexit\n"
	out, err := runApp(t, rt, input, "shell", "--history-file", filepath.Join(t.TempDir(), "h"))
	if err != nil {
		t.Fatalf("shell error = %v", err)
	}
	if !strings.Contains(out, "Signed in as CUST1.") {
		t.Errorf("output = %s", out)
	}
	if !rt.Store.Snapshot().IsAuthenticated {
		t.Error("expected authenticated session")
	}
}

func TestShell_Cancelled(t *testing.T) {
	m := newMockServer(t)
	rt := newTestRuntime(t, testConfig(m))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	app := App()
	app.Reader = strings.NewReader("")
	app.Writer = &syncBuffer{}
	app.ErrWriter = app.Writer
	SetRuntime(app, rt)

	if err := app.RunContext(ctx, []string{"crmdesk", "shell", "--history-file", filepath.Join(t.TempDir(), "h")}); err != nil {
		t.Errorf("shell error = %v, want nil on cancel", err)
	}
}
