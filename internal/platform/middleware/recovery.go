package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mskdash/mskdash/internal/platform/auth"
	"github.com/mskdash/mskdash/internal/platform/telemetry"
)

// Recovery turns a panic in a handler into a 500. The stack is logged
// together with the route and clinician so the failing render can be
// reproduced; the client only sees a generic message.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}

				rid, _ := c.Get("request_id").(string)
				cl := auth.ClinicianFromContext(c.Request().Context())
				logger.Error().
					Str("request_id", rid).
					Str("route", c.Path()).
					Str("uri", c.Request().RequestURI).
					Str("clinician_id", cl.ID).
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				telemetry.RecordAbort(c.Path(), telemetry.AbortPanic)

				err = echo.NewHTTPError(http.StatusInternalServerError, "something went wrong while preparing this page")
			}()
			return next(c)
		}
	}
}
