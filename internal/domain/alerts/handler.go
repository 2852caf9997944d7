package alerts

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mskdash/mskdash/internal/platform/auth"
	"github.com/mskdash/mskdash/internal/platform/source"
	"github.com/mskdash/mskdash/internal/platform/telemetry"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/alerts", h.ListAlerts, auth.RequireRole(auth.RoleClinician))
}

// ListResponse is the JSON alert table. Counts covers every row, not
// only the filtered ones.
type ListResponse struct {
	Rows   []Row          `json:"rows"`
	Total  int            `json:"total"`
	Counts map[string]int `json:"counts"`
}

// ParseLevel validates a severity filter. Empty means all rows.
func ParseLevel(level string) (string, error) {
	level = strings.TrimSpace(level)
	if level == "" {
		return "", nil
	}
	want := Tidy(level)
	for _, s := range Severities {
		if s == want {
			return s, nil
		}
	}
	return "", errors.New("level must be one of low, medium, high")
}

func (h *Handler) ListAlerts(c echo.Context) error {
	level, err := ParseLevel(c.QueryParam("level"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	tbl, err := h.svc.Table(c.Request().Context())
	if err != nil {
		return h.httpError(err)
	}
	rows := tbl.Rows
	if level != "" {
		rows = tbl.WithSeverity(level)
	}
	if rows == nil {
		rows = []Row{}
	}
	return c.JSON(http.StatusOK, ListResponse{Rows: rows, Total: len(rows), Counts: tbl.Counts()})
}

func (h *Handler) httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrMissingColumns):
		telemetry.RecordFailure("alerts_table")
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, source.ErrUnavailable):
		h.logger.Error().Err(err).Msg("load dataset for alerts")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "patient data is unavailable, try again shortly")
	default:
		h.logger.Error().Err(err).Msg("build alert table")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not build the alert table")
	}
}
