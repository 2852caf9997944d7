package dashboard

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mskdash/mskdash/internal/domain/alerts"
	"github.com/mskdash/mskdash/internal/platform/auth"
	"github.com/mskdash/mskdash/internal/platform/source"
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
	api.GET("/overview", h.GetOverview, auth.RequireRole(auth.RoleClinician))
	api.GET("/checkpoints", h.GetCheckpoints, auth.RequireRole(auth.RoleClinician))
	pages.GET("/", h.DashboardPage, auth.RequireRole(auth.RoleClinician))
}

// PageData is rendered by the dashboard template.
type PageData struct {
	Counters    []Counter
	Charts      []view.Chart
	Level       string
	AlertsError string
	AlertRows   []alerts.Row
}

func (h *Handler) GetOverview(c echo.Context) error {
	ov, err := h.svc.Overview(c.Request().Context())
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, ov)
}

func (h *Handler) GetCheckpoints(c echo.Context) error {
	metric := strings.ToLower(strings.TrimSpace(c.QueryParam("metric")))
	if metric == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "metric is required (logins, exercises or recovery)")
	}
	cohort, err := h.svc.Checkpoints(c.Request().Context(), metric)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, cohort)
}

func (h *Handler) DashboardPage(c echo.Context) error {
	level, err := alerts.ParseLevel(c.QueryParam("level"))
	if err != nil {
		level = ""
	}
	ov, err := h.svc.Overview(c.Request().Context())
	if err != nil {
		he := h.httpError(err)
		msg, _ := he.Message.(string)
		return c.Render(he.Code, view.PageError, view.ErrorData{Status: he.Code, Title: "Dashboard unavailable", Message: msg})
	}

	charts, err := Charts(ov.Cohorts)
	if err != nil {
		h.logger.Error().Err(err).Msg("render cohort charts")
		return c.Render(http.StatusInternalServerError, view.PageError, view.ErrorData{
			Status: http.StatusInternalServerError, Title: "Dashboard unavailable", Message: "Could not draw the cohort charts.",
		})
	}

	data := PageData{
		Counters:    ov.Counters,
		Charts:      charts,
		Level:       strings.ToLower(level),
		AlertsError: ov.AlertsError,
	}
	if ov.Alerts != nil {
		data.AlertRows = ov.Alerts.Rows
		if level != "" {
			data.AlertRows = ov.Alerts.WithSeverity(level)
		}
	}
	return c.Render(http.StatusOK, view.PageDashboard, data)
}

func (h *Handler) httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrUnknownMetric):
		return echo.NewHTTPError(http.StatusBadRequest, "metric must be one of logins, exercises, recovery")
	case errors.Is(err, source.ErrUnavailable):
		h.logger.Error().Err(err).Msg("load dataset for overview")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "patient data is unavailable, try again shortly")
	default:
		h.logger.Error().Err(err).Msg("build overview")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not build the overview")
	}
}
