package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicboard/clinicboard/internal/config"
)

const (
	adminEmail    = "admin@clinic.test"
	adminPassword = "correct-horse-battery"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:                  "production",
		StoreBackend:         config.BackendMemory,
		JWTSecret:            strings.Repeat("k", 32),
		TokenTTL:             time.Hour,
		AdminEmail:           adminEmail,
		AdminPassword:        adminPassword,
		CORSOrigins:          []string{"http://localhost:3000"},
		PageSize:             10,
		FeedbackDismissAfter: time.Second,
		MaxBodySize:          "1M",
		MaxUploadSize:        "1M",
		RequestTimeout:       5 * time.Second,
	}
}

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := testConfig()
	ctx := context.Background()

	store, err := openBackend(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("openBackend: %v", err)
	}
	srv, err := newServer(ctx, cfg, store, zerolog.Nop())
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	ts := httptest.NewServer(srv.echo)
	t.Cleanup(func() {
		ts.Close()
		srv.close()
		store.close()
	})
	return ts
}

func TestServer_HealthAndAuth(t *testing.T) {
	ts := startServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	var health map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || health["status"] != "healthy" || health["backend"] != config.BackendMemory {
		t.Errorf("unexpected health response %d %v", resp.StatusCode, health)
	}
	if resp.Header.Get("X-Content-Type-Options") == "" {
		t.Error("expected security headers on every response")
	}

	resp, err = http.Get(ts.URL + "/api/v1/patients")
	if err != nil {
		t.Fatalf("GET /patients: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without a token, got %d", resp.StatusCode)
	}
}

// runCLI executes one client command against ts with its own state dir.
func runCLI(t *testing.T, ts *httptest.Server, stateDir, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("API_URL", ts.URL+"/api/v1")
	t.Setenv("CLIENT_STATE_DIR", stateDir)

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	err := root.Execute()
	return out.String(), err
}

var idLine = regexp.MustCompile(`ID: (\S+)`)

func TestCLI_PatientWorkflow(t *testing.T) {
	ts := startServer(t)
	state := t.TempDir()

	if _, err := runCLI(t, ts, state, "", "patients", "list"); err == nil {
		t.Fatal("expected list to fail before login")
	}

	out, err := runCLI(t, ts, state, "", "login", "--email", adminEmail, "--password", adminPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out, "Signed in as "+adminEmail) {
		t.Errorf("unexpected login output %q", out)
	}
	if _, err := os.Stat(filepath.Join(state, "token.json")); err != nil {
		t.Errorf("expected the token to be stored: %v", err)
	}

	out, err = runCLI(t, ts, state, "", "patients", "add", "--name", "Ada Lovelace", "--email", "ada@example.com")
	if err != nil {
		t.Fatalf("patients add: %v", err)
	}
	if !strings.Contains(out, "[success] Patient added successfully") {
		t.Errorf("expected success notice, got %q", out)
	}
	m := idLine.FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("no id in %q", out)
	}
	id := m[1]

	out, err = runCLI(t, ts, state, "", "patients", "add", "--email", "nobody@example.com")
	if err == nil || !strings.Contains(out, "[warning] Please fill in all required fields.") {
		t.Errorf("expected missing-name warning, got %q %v", out, err)
	}

	out, err = runCLI(t, ts, state, "", "patients", "edit", id, "--phone", "555-0100")
	if err != nil || !strings.Contains(out, "555-0100") || !strings.Contains(out, "Ada Lovelace") {
		t.Errorf("patients edit: %q %v", out, err)
	}

	out, err = runCLI(t, ts, state, "", "patients", "list", "--search", "ADA")
	if err != nil || !strings.Contains(out, "Ada Lovelace") || !strings.Contains(out, "Page 1 of 1 (1 patients)") {
		t.Errorf("patients list: %q %v", out, err)
	}

	if _, err := runCLI(t, ts, state, "", "patients", "list", "--page-size", "7"); err == nil {
		t.Error("expected a page size outside 5/10/15/20/25 to be refused")
	}

	out, err = runCLI(t, ts, state, "", "consultations", "add", id,
		"--date", "2024-03-01", "--start", "23:30", "--end", "00:15", "--signer", "Dr. Grey")
	if err != nil || !strings.Contains(out, "(45 minutes)") {
		t.Errorf("consultations add: %q %v", out, err)
	}

	doc := filepath.Join(t.TempDir(), "scan.pdf")
	if err := os.WriteFile(doc, []byte("%PDF-1.4 test"), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err = runCLI(t, ts, state, "", "documents", "upload", id, doc)
	if err != nil || !strings.Contains(out, "Document uploaded successfully") || !strings.Contains(out, "PDF") {
		t.Errorf("documents upload: %q %v", out, err)
	}

	out, err = runCLI(t, ts, state, "n\n", "patients", "delete", id)
	if err != nil || strings.Contains(out, "deleted") {
		t.Errorf("declined delete should keep the record: %q %v", out, err)
	}
	out, err = runCLI(t, ts, state, "", "patients", "delete", id, "--yes")
	if err != nil || !strings.Contains(out, "[success] Patient deleted successfully") {
		t.Errorf("patients delete: %q %v", out, err)
	}
	out, err = runCLI(t, ts, state, "", "patients", "view", id)
	if err == nil || !strings.Contains(out, "[info] Patient no longer exists") {
		t.Errorf("expected missing patient notice, got %q %v", out, err)
	}

	if _, err := runCLI(t, ts, state, "", "logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := runCLI(t, ts, state, "", "profile", "show"); err == nil {
		t.Error("expected profile to fail after logout")
	}
}

func TestCLI_Messages(t *testing.T) {
	ts := startServer(t)
	state := t.TempDir()

	if _, err := runCLI(t, ts, state, "", "login", "--email", adminEmail, "--password", adminPassword); err != nil {
		t.Fatalf("login: %v", err)
	}

	out, err := runCLI(t, ts, state, "", "messages", "contacts", "--search", "ro")
	if err != nil || !strings.Contains(out, "Robert Bacinis") || strings.Contains(out, "Shelby Goode") {
		t.Errorf("messages contacts: %q %v", out, err)
	}

	if _, err := runCLI(t, ts, state, "", "messages", "send", "2", "see", "you", "tomorrow"); err != nil {
		t.Fatalf("messages send: %v", err)
	}
	out, err = runCLI(t, ts, state, "", "messages", "thread", "2")
	if err != nil || !strings.Contains(out, "You: see you tomorrow") {
		t.Errorf("messages thread: %q %v", out, err)
	}
}

func TestReadSecret_FallsBackWithoutTerminal(t *testing.T) {
	piped := strings.NewReader("s3cret pass\n")
	var out bytes.Buffer
	got, err := readSecret(piped, bufio.NewReader(piped), &out, "Password: ")
	if err != nil || got != "s3cret pass" {
		t.Fatalf("piped input: got %q %v", got, err)
	}

	path := filepath.Join(t.TempDir(), "stdin")
	if err := os.WriteFile(path, []byte("from file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	got, err = readSecret(f, bufio.NewReader(f), &out, "Password: ")
	if err != nil || got != "from file" {
		t.Fatalf("regular file: got %q %v", got, err)
	}
	if !strings.Contains(out.String(), "Password: ") {
		t.Errorf("expected the prompt, got %q", out.String())
	}
}

func TestPromptConfirmer(t *testing.T) {
	tests := []struct {
		input     string
		assumeYes bool
		want      bool
	}{
		{"y\n", false, true},
		{"YES\n", false, true},
		{"n\n", false, false},
		{"\n", false, false},
		{"", false, false},
		{"", true, true},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		c := &promptConfirmer{in: bufio.NewReader(strings.NewReader(tt.input)), out: &out, assumeYes: tt.assumeYes}
		got, err := c.Confirm(context.Background(), "Delete?")
		if err != nil {
			t.Fatalf("Confirm(%q): %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("Confirm(%q, yes=%v) = %v, want %v", tt.input, tt.assumeYes, got, tt.want)
		}
	}
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()

	cfg := testConfig()
	cfg.StoreBackend = config.BackendFile
	cfg.DataDir = t.TempDir()
	b, err := openBackend(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("file backend: %v", err)
	}
	defer b.close()
	if err := b.kv.Ping(ctx); err != nil {
		t.Errorf("file backend ping: %v", err)
	}
	for _, sub := range []string{"records", "documents"} {
		if _, err := os.Stat(filepath.Join(cfg.DataDir, sub)); err != nil {
			t.Errorf("expected %s dir: %v", sub, err)
		}
	}

	cfg.StoreBackend = "redis"
	if _, err := openBackend(ctx, cfg, zerolog.Nop()); err == nil {
		t.Error("expected unknown backend to fail")
	}
}

func TestOpenBackend_MongoBadDataDir(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.StoreBackend = config.BackendMongo
	cfg.MongoURI = "mongodb://127.0.0.1:1"
	cfg.DataDir = blocker

	_, err := openBackend(ctx, cfg, zerolog.Nop())
	if err == nil {
		t.Fatal("expected an unusable data dir to fail")
	}
	if !strings.Contains(err.Error(), "blob dir") {
		t.Errorf("expected the blob dir error before any mongo dial, got %v", err)
	}
}

func TestSigningSecret(t *testing.T) {
	cfg := testConfig()
	cfg.JWTSecret = ""
	if _, err := signingSecret(cfg, zerolog.Nop()); err == nil {
		t.Error("expected missing secret to fail outside development")
	}

	cfg.Env = "development"
	a, err := signingSecret(cfg, zerolog.Nop())
	if err != nil || len(a) != 64 {
		t.Fatalf("expected a generated key, got %d bytes %v", len(a), err)
	}
	b, _ := signingSecret(cfg, zerolog.Nop())
	if bytes.Equal(a, b) {
		t.Error("expected a fresh key per call")
	}
}

func TestWarnDevMode(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"development", true},
		{"production", false},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		cfg := testConfig()
		cfg.Env = tt.env
		warnDevMode(cfg, zerolog.New(&buf))
		if got := strings.Contains(buf.String(), `"level":"warn"`); got != tt.want {
			t.Errorf("%s: warned = %v, want %v (%s)", tt.env, got, tt.want, buf.String())
		}
	}
}
