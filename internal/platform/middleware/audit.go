package middleware

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mskdash/mskdash/internal/platform/auth"
)

// AuditEntry records one view of patient data: who looked at which
// patient, through which page, and with what outcome.
type AuditEntry struct {
	ClinicianID string
	Clinician   string
	View        string
	PatientID   string
	PatientName string
	Path        string
	IPAddress   string
	RequestID   string
	StatusCode  int
	Timestamp   time.Time
}

// AuditRecorder persists audit entries. The middleware always logs; a
// recorder is optional.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// auditedViews maps route patterns that expose patient-level data to a
// view name.
var auditedViews = map[string]string{
	"/":                      "overview",
	"/patients":              "roster",
	"/patients/panel":        "panel",
	"/api/v1/overview":       "overview",
	"/api/v1/alerts":         "alerts",
	"/api/v1/patients":       "roster",
	"/api/v1/patients/panel": "panel",
}

// Audit logs a "patient_data_access" event for every request to a view
// that shows patient-level data.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			view, ok := auditedViews[c.Path()]
			if !ok {
				return next(c)
			}

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			cl := auth.ClinicianFromContext(req.Context())
			entry := AuditEntry{
				ClinicianID: cl.ID,
				Clinician:   cl.Name,
				View:        view,
				PatientID:   strings.TrimSpace(c.QueryParam("id")),
				PatientName: strings.TrimSpace(c.QueryParam("name")),
				Path:        req.URL.Path,
				IPAddress:   c.RealIP(),
				StatusCode:  c.Response().Status,
				Timestamp:   time.Now().UTC(),
			}
			entry.RequestID, _ = c.Get("request_id").(string)

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("clinician_id", entry.ClinicianID).
				Str("view", entry.View).
				Str("patient_id", entry.PatientID).
				Bool("by_name", entry.PatientName != "").
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("patient_data_access")

			return nil
		}
	}
}
