package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hospital-console-go/pkg/hash"
)

func runCmd(t *testing.T, args ...string) (string, int) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	code := execute(cmd)
	return buf.String(), code
}

func TestVersionCmd(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	Version, Commit, Date = "1.2.0", "abc123", "2026-10-01"
	defer func() { Version, Commit, Date = origVersion, origCommit, origDate }()

	out, code := runCmd(t, "version")
	if code != 0 {
		t.Fatalf("exit code = %d, output: %s", code, out)
	}
	for _, want := range []string{"hospital-console 1.2.0", "commit: abc123", "built: 2026-10-01"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got: %s", want, out)
		}
	}
}

func TestHashPasswordCmd(t *testing.T) {
	out, code := runCmd(t, "hash-password", "s3cret")
	if code != 0 {
		t.Fatalf("exit code = %d, output: %s", code, out)
	}
	hashed := strings.TrimSpace(out)
	if !hash.CheckPasswordHash("s3cret", hashed) {
		t.Errorf("printed hash %q does not verify", hashed)
	}

	if _, code := runCmd(t, "hash-password"); code != 1 {
		t.Errorf("missing argument exit code = %d, want 1", code)
	}
}

func TestProbeCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Write([]byte(`{"message":"Hospital Assistant API"}`))
		case "/system/status":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"firebase_initialized":true,"firestore_enabled":true,"documents_loaded":4,"vectorstore_ready":true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	t.Setenv("HOSPITAL_BACKEND_BASE_URL", srv.URL)

	out, code := runCmd(t, "probe", "--config=")
	if code != 0 {
		t.Fatalf("exit code = %d, output: %s", code, out)
	}
	for _, want := range []string{"state:   connected", `"documents_loaded": 4`, `"services_initialized": true`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got: %s", want, out)
		}
	}
}

func TestProbeCmdUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	t.Setenv("HOSPITAL_BACKEND_BASE_URL", url)
	t.Setenv("HOSPITAL_BACKEND_TIMEOUT", "2s")

	out, code := runCmd(t, "probe", "--config=")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1; output: %s", code, out)
	}
	if !strings.Contains(out, "state:   error") || !strings.Contains(out, "backend unreachable") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestRootCmdRejectsMissingConfig(t *testing.T) {
	out, code := runCmd(t, "probe", "--config", "./does-not-exist.yaml")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1; output: %s", code, out)
	}
}
