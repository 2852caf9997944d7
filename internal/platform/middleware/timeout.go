package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/mskdash/mskdash/internal/platform/telemetry"
)

// RequestTimeout sets a context deadline on each request. The handler runs
// on the request goroutine, so panics still reach Recovery and nothing
// writes to the response after the handler returns. Dataset loads observe
// the context; when one gives up with context.DeadlineExceeded the request
// answers 504. A non-positive timeout disables the deadline.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	if timeout <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return echomw.ContextTimeoutWithConfig(echomw.ContextTimeoutConfig{
		Timeout: timeout,
		ErrorHandler: func(err error, c echo.Context) error {
			if !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			telemetry.RecordAbort(c.Path(), telemetry.AbortTimeout)
			return echo.NewHTTPError(http.StatusGatewayTimeout,
				fmt.Sprintf("patient data took longer than %s to prepare, try again shortly", timeout)).SetInternal(err)
		},
	})
}
