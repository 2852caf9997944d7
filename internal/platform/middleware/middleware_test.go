package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mskdash/mskdash/internal/platform/auth"
)

func newContext(target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	rec := httptest.NewRecorder()
	return e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), rec), rec
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		check    func(t *testing.T, got string)
	}{
		{"generated", "", func(t *testing.T, got string) {
			if len(got) != 36 {
				t.Errorf("expected a generated UUID, got %q", got)
			}
		}},
		{"preserved", "my-custom-id", func(t *testing.T, got string) {
			if got != "my-custom-id" {
				t.Errorf("expected my-custom-id, got %q", got)
			}
		}},
		{"oversized", strings.Repeat("x", 200), func(t *testing.T, got string) {
			if len(got) != 36 {
				t.Errorf("expected an oversized id to be replaced, got %q", got)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext("/")
			if tt.incoming != "" {
				c.Request().Header.Set(RequestIDHeader, tt.incoming)
			}

			var seen string
			h := RequestID()(func(c echo.Context) error {
				seen, _ = c.Get("request_id").(string)
				return c.NoContent(http.StatusOK)
			})
			if err := h(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, seen)
			if rec.Header().Get(RequestIDHeader) != seen {
				t.Errorf("response header %q does not match context id %q", rec.Header().Get(RequestIDHeader), seen)
			}
		})
	}
}

func TestLogger_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	c, _ := newContext("/patients?q=lee")
	c.Set("request_id", "req-1")

	h := Logger(zerolog.New(&buf))(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"request_id":"req-1"`, `"status":200`, `"level":"info"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in log, got %s", want, out)
		}
	}
}

func TestLogger_HandlesErrorOnce(t *testing.T) {
	var buf bytes.Buffer
	c, rec := newContext("/api/v1/patients/panel")
	c.Set("request_id", "req-123")

	h := Logger(zerolog.New(&buf))(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "no data for patient")
	})
	if err := h(c); err != nil {
		t.Fatalf("expected error to be handled, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 written, got %d", rec.Code)
	}
	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("expected warn level, got %s", out)
	}
	if !strings.Contains(out, `"request_id":"req-123"`) {
		t.Errorf("expected request id in log, got %s", out)
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	var buf bytes.Buffer
	c, _ := newContext("/patients/panel?name=Ann")
	c.SetPath("/patients/panel")
	c.Set("request_id", "req-9")
	ctx := auth.WithClinician(context.Background(), auth.Clinician{ID: "c-7", Name: "Dr Lee"})
	c.SetRequest(c.Request().WithContext(ctx))

	err := Recovery(zerolog.New(&buf))(func(c echo.Context) error {
		panic("index out of range")
	})(c)

	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", httpErr.Code)
	}
	if msg, _ := httpErr.Message.(string); strings.Contains(msg, "index out of range") {
		t.Error("panic value must not reach the client")
	}

	out := buf.String()
	for _, want := range []string{`"panic":"index out of range"`, `"route":"/patients/panel"`, `"clinician_id":"c-7"`, `"request_id":"req-9"`, `"stack"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in log, got %s", want, out)
		}
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	var buf bytes.Buffer
	c, rec := newContext("/ok")

	err := Recovery(zerolog.New(&buf))(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK || buf.Len() != 0 {
		t.Errorf("expected a clean pass, got status %d and log %q", rec.Code, buf.String())
	}
}

func TestRecovery_RepanicsAbortHandler(t *testing.T) {
	c, _ := newContext("/stream")
	defer func() {
		if r := recover(); r != http.ErrAbortHandler {
			t.Errorf("expected http.ErrAbortHandler to propagate, got %v", r)
		}
	}()
	_ = Recovery(zerolog.Nop())(func(c echo.Context) error {
		panic(http.ErrAbortHandler)
	})(c)
}
