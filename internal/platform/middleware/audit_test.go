package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicboard/clinicboard/internal/platform/auth"
)

func TestPatientTarget(t *testing.T) {
	tests := []struct {
		path         string
		wantID       string
		wantResource string
	}{
		{"/api/v1/patients", "", "patient"},
		{"/api/v1/patients/", "", "patient"},
		{"/api/v1/patients/p1", "p1", "patient"},
		{"/api/v1/patients/p1/consultations", "p1", "consultations"},
		{"/api/v1/patients/p1/documents/d1/content", "p1", "documents"},
	}
	for _, tt := range tests {
		id, resource := patientTarget(tt.path)
		if id != tt.wantID || resource != tt.wantResource {
			t.Errorf("patientTarget(%q) = (%q, %q), want (%q, %q)", tt.path, id, resource, tt.wantID, tt.wantResource)
		}
	}
}

func TestAuditAction(t *testing.T) {
	tests := []struct {
		method, id, want string
	}{
		{http.MethodGet, "", "search"},
		{http.MethodGet, "p1", "read"},
		{http.MethodPost, "", "create"},
		{http.MethodPut, "p1", "update"},
		{http.MethodPatch, "p1", "update"},
		{http.MethodDelete, "p1", "delete"},
	}
	for _, tt := range tests {
		if got := auditAction(tt.method, tt.id); got != tt.want {
			t.Errorf("auditAction(%s, %q) = %q, want %q", tt.method, tt.id, got, tt.want)
		}
	}
}

func runAudit(t *testing.T, method, path string, handler echo.HandlerFunc) (map[string]any, bool) {
	t.Helper()
	var buf bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	ctx := context.WithValue(req.Context(), auth.UserIDKey, "u-1")
	ctx = context.WithValue(ctx, auth.UserRolesKey, []string{auth.RoleStaff})
	req = req.WithContext(ctx)
	c := e.NewContext(req, httptest.NewRecorder())

	_ = Audit(zerolog.New(&buf))(handler)(c)

	if buf.Len() == 0 {
		return nil, false
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode audit line %q: %v", buf.String(), err)
	}
	return entry, true
}

func TestAudit_LogsPatientAccess(t *testing.T) {
	entry, ok := runAudit(t, http.MethodGet, "/api/v1/patients/p1/documents", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if !ok {
		t.Fatal("expected an audit line")
	}
	want := map[string]any{
		"type":       "patient_audit",
		"user_id":    "u-1",
		"patient_id": "p1",
		"resource":   "documents",
		"action":     "read",
		"status":     float64(200),
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}
}

func TestAudit_RecordsErrorStatus(t *testing.T) {
	entry, ok := runAudit(t, http.MethodDelete, "/api/v1/patients/missing", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	})
	if !ok {
		t.Fatal("expected an audit line")
	}
	if entry["status"] != float64(404) || entry["action"] != "delete" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestAudit_IgnoresOtherPaths(t *testing.T) {
	if _, ok := runAudit(t, http.MethodGet, "/api/v1/contacts", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}); ok {
		t.Error("expected no audit line outside the patient collection")
	}
}
