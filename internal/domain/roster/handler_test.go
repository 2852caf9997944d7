package roster

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mskdash/mskdash/internal/platform/source"
	"github.com/mskdash/mskdash/internal/platform/view"
)

func newTestHandler(t *testing.T, src source.Source) (*Handler, *echo.Echo) {
	t.Helper()
	e := echo.New()
	r, err := view.New(nil)
	if err != nil {
		t.Fatalf("parse templates: %v", err)
	}
	e.Renderer = r
	return NewHandler(NewService(src, nil, 2), zerolog.Nop()), e
}

func staticSource() source.Source {
	return &source.Static{Data: &source.Dataset{Demographics: demographics()}}
}

func TestHandler_ListPatients(t *testing.T) {
	h, e := newTestHandler(t, staticSource())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients?sort=Age&page=2", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListPatients(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Data    []Row `json:"data"`
		Total   int   `json:"total"`
		Page    int   `json:"page"`
		Pages   int   `json:"pages"`
		HasMore bool  `json:"has_more"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 4 || body.Page != 2 || body.Pages != 2 || body.HasMore {
		t.Errorf("unexpected envelope: %+v", body)
	}
	if len(body.Data) != 2 || body.Data[0].Name != "Cy Tan" {
		t.Errorf("unexpected rows: %+v", body.Data)
	}
}

func TestHandler_ListPatients_BadParams(t *testing.T) {
	h, e := newTestHandler(t, staticSource())

	for _, target := range []string{"/api/v1/patients?page=two", "/api/v1/patients?sort=Shoe"} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		err := h.ListPatients(c)
		httpErr, ok := err.(*echo.HTTPError)
		if !ok || httpErr.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %v", target, err)
		}
	}
}

func TestHandler_ListPatients_SourceDown(t *testing.T) {
	h, e := newTestHandler(t, &source.Static{})

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil), httptest.NewRecorder())
	err := h.ListPatients(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %v", err)
	}
}

func TestHandler_PatientsPage(t *testing.T) {
	h, e := newTestHandler(t, staticSource())

	req := httptest.NewRequest(http.MethodGet, "/patients?q=knee", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.PatientsPage(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Ann Lee", "Di Oak", "Page 1 of 1", "/patients/panel?id=P001"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected page to contain %q", want)
		}
	}
	if strings.Contains(body, "Cy Tan") {
		t.Error("filtered out patient shown")
	}
}

func TestNewPageData_ColumnsAndPager(t *testing.T) {
	q := Query{Search: "o", Sort: "Age", Page: 1}
	svc := NewService(staticSource(), nil, 2)
	res, err := svc.List(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data := NewPageData(q, res)

	if data.Span != 5 {
		t.Errorf("expected span 5, got %d", data.Span)
	}
	if data.Prev != "" {
		t.Errorf("expected no previous link, got %q", data.Prev)
	}
	if data.Next != "/patients?page=2&q=o&sort=Age" {
		t.Errorf("unexpected next link %q", data.Next)
	}
	var age Column
	for _, col := range data.Columns {
		if col.Header == "Age" {
			age = col
		}
	}
	if !age.Active || age.Desc {
		t.Errorf("unexpected Age column state: %+v", age)
	}
	if age.URL != "/patients?desc=true&q=o&sort=Age" {
		t.Errorf("expected toggle URL, got %q", age.URL)
	}
}
