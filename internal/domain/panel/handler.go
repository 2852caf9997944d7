package panel

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mskdash/mskdash/internal/platform/auth"
	"github.com/mskdash/mskdash/internal/platform/source"
	"github.com/mskdash/mskdash/internal/platform/table"
	"github.com/mskdash/mskdash/internal/platform/view"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group, pages *echo.Group) {
	api.GET("/patients/panel", h.GetPanel, auth.RequireRole(auth.RoleClinician))
	pages.GET("/patients/panel", h.PanelPage, auth.RequireRole(auth.RoleClinician))
}

// PageData is rendered by the panel template.
type PageData struct {
	Error  string
	Notice string
	Panel  *Panel
	Charts []view.Chart
	// Draft is set when the clinician pressed "Send message".
	Draft      *Selection
	MessageURL string
}

func bindSelection(c echo.Context) Selection {
	return Selection{
		Name: strings.TrimSpace(c.QueryParam("name")),
		ID:   strings.TrimSpace(c.QueryParam("id")),
	}
}

func (h *Handler) GetPanel(c echo.Context) error {
	sel := bindSelection(c)
	if sel.Empty() {
		return echo.NewHTTPError(http.StatusBadRequest, "name or id is required")
	}
	p, err := h.svc.Panel(c.Request().Context(), sel)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) PanelPage(c echo.Context) error {
	sel := bindSelection(c)
	data := PageData{}
	if sel.Empty() {
		data.Notice = "Select a patient from My Patients to open their panel."
		return c.Render(http.StatusOK, view.PagePanel, data)
	}

	p, err := h.svc.Panel(c.Request().Context(), sel)
	if errors.Is(err, ErrNoData) {
		data.Notice = ErrNoData.Error()
		return c.Render(http.StatusOK, view.PagePanel, data)
	}
	if err != nil {
		he := h.httpError(err)
		data.Error, _ = he.Message.(string)
		return c.Render(he.Code, view.PagePanel, data)
	}

	charts, err := Charts(p)
	if err != nil {
		h.logger.Error().Err(err).Msg("render panel charts")
		data.Error = "Could not draw the patient charts."
		return c.Render(http.StatusInternalServerError, view.PagePanel, data)
	}
	data.Panel = p
	data.Charts = charts
	data.MessageURL = view.PanelURL(sel.Name, sel.ID) + "&msg=1"
	if c.QueryParam("msg") == "1" {
		draft := Selection{Name: p.Header.Name, ID: p.Header.ID}
		data.Draft = &draft
	}
	return c.Render(http.StatusOK, view.PagePanel, data)
}

// httpError maps panel failures to HTTP errors: no data is 404, an
// unreadable dataset 503, unresolvable identity columns 422.
func (h *Handler) httpError(err error) *echo.HTTPError {
	var colErr *table.ColumnError
	switch {
	case errors.Is(err, ErrNoData):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, source.ErrUnavailable):
		h.logger.Error().Err(err).Msg("load dataset for panel")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "patient data is unavailable, try again shortly")
	case errors.As(err, &colErr):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error().Err(err).Msg("assemble panel")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not assemble the patient panel")
	}
}
