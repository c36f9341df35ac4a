package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicboard/clinicboard/internal/platform/auth"
)

// AuditEntry records one access to patient data: who, which record, what
// action and how it ended.
type AuditEntry struct {
	UserID     string
	UserRoles  []string
	PatientID  string
	Resource   string
	Action     string // read, create, update, delete, search
	IPAddress  string
	Path       string
	Method     string
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

const patientsPrefix = "/api/v1/patients"

// Audit logs every request under /api/v1/patients once the handler has run.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !strings.HasPrefix(req.URL.Path, patientsPrefix) {
				return next(c)
			}

			err := next(c)

			entry := buildAuditEntry(c, err)
			logger.Info().
				Str("type", "patient_audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("patient_id", entry.PatientID).
				Str("resource", entry.Resource).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("patient_access")

			return err
		}
	}
}

func buildAuditEntry(c echo.Context, err error) AuditEntry {
	req := c.Request()
	ctx := req.Context()
	patientID, resource := patientTarget(req.URL.Path)

	status := c.Response().Status
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
	}
	rid, _ := c.Get("request_id").(string)

	return AuditEntry{
		UserID:     auth.UserIDFromContext(ctx),
		UserRoles:  auth.RolesFromContext(ctx),
		PatientID:  patientID,
		Resource:   resource,
		Action:     auditAction(req.Method, patientID),
		IPAddress:  c.RealIP(),
		Path:       req.URL.Path,
		Method:     req.Method,
		Timestamp:  time.Now().UTC(),
		RequestID:  rid,
		StatusCode: status,
	}
}

// patientTarget splits /api/v1/patients/<id>/<resource>/... into the patient
// id and the sub-resource ("patient" when there is none).
func patientTarget(path string) (id, resource string) {
	rest := strings.Trim(strings.TrimPrefix(path, patientsPrefix), "/")
	if rest == "" {
		return "", "patient"
	}
	segments := strings.Split(rest, "/")
	if len(segments) > 1 {
		return segments[0], segments[1]
	}
	return segments[0], "patient"
}

func auditAction(method, patientID string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	}
	if patientID == "" {
		return "search"
	}
	return "read"
}
