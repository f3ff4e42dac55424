package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/heartbeat/heartbeat/internal/platform/auth"
)

// AllPatients is the audit subject of a list that spans every patient.
const AllPatients = "*"

const auditSubjectKey = "audit_subject"

// AuditEntry records one access by a clinician to another user's data.
type AuditEntry struct {
	ActorID    int64
	ActorRole  auth.Role
	SubjectID  string
	Action     string // read, write, delete
	Method     string
	Path       string
	IPAddress  string
	RequestID  string
	StatusCode int
	Timestamp  time.Time
}

// AuditRecorder persists audit entries in addition to the audit log line.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// SetAuditSubject names the user whose data the request touched.
func SetAuditSubject(c echo.Context, userID int64) {
	c.Set(auditSubjectKey, strconv.FormatInt(userID, 10))
}

// SetAuditSubjectAll marks a request that read across all patients.
func SetAuditSubjectAll(c echo.Context) {
	c.Set(auditSubjectKey, AllPatients)
}

// Audit emits an access_audit log line, and hands the entry to recorder when
// one is given, whenever a handler reports a subject other than the caller.
// Patients reading their own scores are not audited.
func Audit(logger zerolog.Logger, recorder AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			subject, _ := c.Get(auditSubjectKey).(string)
			if subject == "" {
				return err
			}
			caller, ok := auth.CallerFromContext(c.Request().Context())
			if !ok || subject == strconv.FormatInt(caller.UserID, 10) {
				return err
			}

			req := c.Request()
			entry := AuditEntry{
				ActorID:    caller.UserID,
				ActorRole:  caller.Role,
				SubjectID:  subject,
				Action:     auditAction(req.Method),
				Method:     req.Method,
				Path:       c.Path(),
				IPAddress:  c.RealIP(),
				RequestID:  requestID(c),
				StatusCode: responseStatus(c, err),
				Timestamp:  time.Now().UTC(),
			}

			if recorder != nil {
				if recErr := recorder.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).Str("request_id", entry.RequestID).Msg("failed to record audit entry")
				}
			}
			logger.Info().
				Str("type", "access_audit").
				Str("request_id", entry.RequestID).
				Int64("actor_id", entry.ActorID).
				Str("actor_role", string(entry.ActorRole)).
				Str("subject_id", entry.SubjectID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("patient data access")
			return err
		}
	}
}

func auditAction(method string) string {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return "write"
	case http.MethodDelete:
		return "delete"
	}
	return "read"
}

// responseStatus is the status the error handler will send for err.
func responseStatus(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return http.StatusInternalServerError
}

func requestID(c echo.Context) string {
	rid, _ := c.Get("request_id").(string)
	return rid
}
