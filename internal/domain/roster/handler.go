package roster

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mskdash/mskdash/internal/platform/auth"
	"github.com/mskdash/mskdash/internal/platform/source"
	"github.com/mskdash/mskdash/internal/platform/view"
	"github.com/mskdash/mskdash/pkg/pagination"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group, pages *echo.Group) {
	api.GET("/patients", h.ListPatients, auth.RequireRole(auth.RoleClinician))
	pages.GET("/patients", h.PatientsPage, auth.RequireRole(auth.RoleClinician))
}

// Column is one sortable table header.
type Column struct {
	Header string
	URL    string
	Active bool
	Desc   bool
}

// PageData is rendered by the patients template.
type PageData struct {
	Query   Query
	Error   string
	Columns []Column
	Rows    []Row
	// Span is the column count including the action column.
	Span        int
	Prev, Next  string
	Page, Pages int
	Total       int
}

func bindQuery(c echo.Context) (Query, error) {
	var q Query
	err := echo.QueryParamsBinder(c).
		String("q", &q.Search).
		String("sort", &q.Sort).
		Bool("desc", &q.Desc).
		Int("page", &q.Page).
		BindError()
	return q, err
}

func (h *Handler) ListPatients(c echo.Context) error {
	q, err := bindQuery(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.List(c.Request().Context(), q)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(res.Rows, res.Total, res.Params))
}

func (h *Handler) PatientsPage(c echo.Context) error {
	q, err := bindQuery(c)
	if err != nil {
		return c.Render(http.StatusBadRequest, view.PagePatients, PageData{Query: q, Error: err.Error()})
	}
	res, err := h.svc.List(c.Request().Context(), q)
	if err != nil {
		he := h.httpError(err)
		msg, _ := he.Message.(string)
		return c.Render(he.Code, view.PagePatients, PageData{Query: q, Error: msg})
	}
	return c.Render(http.StatusOK, view.PagePatients, NewPageData(q, res))
}

// NewPageData lays a roster result out for the patients template.
func NewPageData(q Query, res *Result) PageData {
	data := PageData{
		Query: q,
		Rows:  res.Rows,
		Span:  len(res.Headers) + 1,
		Page:  res.Params.Page,
		Pages: pagination.Pages(res.Total, res.Params.Limit),
		Total: res.Total,
	}
	for _, hdr := range res.Headers {
		col := Column{Header: hdr, Active: hdr == q.Sort}
		col.Desc = col.Active && q.Desc
		// Clicking the active column flips its direction.
		col.URL = "/patients?" + pageQuery(Query{Search: q.Search, Sort: hdr, Desc: col.Active && !q.Desc}).Encode()
		data.Columns = append(data.Columns, col)
	}
	for _, l := range res.Params.Links("/patients", pageQuery(q), res.Total) {
		switch l.Relation {
		case "previous":
			data.Prev = l.URL
		case "next":
			data.Next = l.URL
		}
	}
	return data
}

func pageQuery(q Query) url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set("q", q.Search)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if q.Desc {
		v.Set("desc", strconv.FormatBool(true))
	}
	return v
}

func (h *Handler) httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrUnknownColumn):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, source.ErrUnavailable):
		h.logger.Error().Err(err).Msg("load dataset for roster")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "patient data is unavailable, try again shortly")
	default:
		h.logger.Error().Err(err).Msg("list patients")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not list patients")
	}
}
