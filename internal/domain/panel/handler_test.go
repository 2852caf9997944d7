package panel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mskdash/mskdash/internal/platform/source"
	"github.com/mskdash/mskdash/internal/platform/view"
)

type failingSource struct{}

func (failingSource) Load(context.Context) (*source.Dataset, error) {
	return nil, errors.New("connection refused")
}
func (failingSource) Ping(context.Context) error { return errors.New("connection refused") }
func (failingSource) Kind() string               { return "postgres" }

func newTestHandler(t *testing.T, src source.Source) (*Handler, *echo.Echo) {
	t.Helper()
	e := echo.New()
	r, err := view.New(nil)
	if err != nil {
		t.Fatalf("parse templates: %v", err)
	}
	e.Renderer = r
	svc := NewService(src, NewAssembler(nil, "", zerolog.Nop()))
	return NewHandler(svc, zerolog.Nop()), e
}

func TestHandler_GetPanel(t *testing.T) {
	h, e := newTestHandler(t, &source.Static{Data: testDataset()})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/panel?name=jane+obrien", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.GetPanel(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got Panel
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Header.ID != "P001" {
		t.Errorf("expected P001, got %q", got.Header.ID)
	}
	if len(got.Readings) != 3 {
		t.Errorf("expected 3 readings, got %d", len(got.Readings))
	}
}

func TestHandler_GetPanel_Errors(t *testing.T) {
	tests := []struct {
		name   string
		src    source.Source
		target string
		code   int
	}{
		{"empty selection", &source.Static{Data: testDataset()}, "/api/v1/patients/panel", http.StatusBadRequest},
		{"unknown patient", &source.Static{Data: testDataset()}, "/api/v1/patients/panel?id=P999", http.StatusNotFound},
		{"source down", failingSource{}, "/api/v1/patients/panel?id=P001", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, e := newTestHandler(t, tt.src)
			c := e.NewContext(httptest.NewRequest(http.MethodGet, tt.target, nil), httptest.NewRecorder())

			err := h.GetPanel(c)
			httpErr, ok := err.(*echo.HTTPError)
			if !ok {
				t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
			}
			if httpErr.Code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, httpErr.Code)
			}
		})
	}
}

func TestHandler_PanelPage(t *testing.T) {
	h, e := newTestHandler(t, &source.Static{Data: testDataset()})

	req := httptest.NewRequest(http.MethodGet, "/patients/panel?name=Jane+O%27Brien&id=P001", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.PanelPage(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Knee OA", "<svg", TitleRecovery, "2/3 weeks", "msg=1"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected page to contain %q", want)
		}
	}
	if strings.Contains(body, "Message draft") {
		t.Error("draft must only show after pressing send message")
	}
}

func TestHandler_PanelPage_MessageDraft(t *testing.T) {
	h, e := newTestHandler(t, &source.Static{Data: testDataset()})

	req := httptest.NewRequest(http.MethodGet, "/patients/panel?id=P002&msg=1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.PanelPage(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "Message draft for Sam Patel") {
		t.Error("expected message draft notice")
	}
}

func TestHandler_PanelPage_NoDataNotice(t *testing.T) {
	h, e := newTestHandler(t, &source.Static{Data: testDataset()})

	req := httptest.NewRequest(http.MethodGet, "/patients/panel?name=Ghost+Row", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.PanelPage(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "no matching weekly rows") {
		t.Error("expected inline no-data notice")
	}
}

func TestHandler_PanelPage_SourceDown(t *testing.T) {
	h, e := newTestHandler(t, failingSource{})

	req := httptest.NewRequest(http.MethodGet, "/patients/panel?id=P001", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.PanelPage(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "patient data is unavailable") {
		t.Error("expected inline error message")
	}
}
