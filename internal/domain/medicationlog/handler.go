package medicationlog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/heartbeat/heartbeat/internal/domain/scoring"
	"github.com/heartbeat/heartbeat/internal/platform/auth"
	"github.com/heartbeat/heartbeat/internal/platform/middleware"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/medication-adherence", auth.RequireRole(auth.RolePatient, auth.RoleTherapist))
	g.GET("/monthly", h.Monthly)
	g.GET("/calendar", h.Calendar)
	g.GET("/medications", h.Medications)
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, auth.ErrUserIDRequired),
		errors.Is(err, auth.ErrUnauthenticated):
		return echo.NewHTTPError(auth.HTTPStatus(err), err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}

// target reads the caller and the optional userId query parameter.
func target(c echo.Context) (auth.Caller, *int64, error) {
	caller, ok := auth.CallerFromContext(c.Request().Context())
	if !ok {
		return auth.Caller{}, nil, echo.NewHTTPError(http.StatusUnauthorized, auth.ErrUnauthenticated.Error())
	}
	raw := c.QueryParam("userId")
	if raw == "" {
		return caller, nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return auth.Caller{}, nil, echo.NewHTTPError(http.StatusBadRequest, "invalid userId")
	}
	return caller, &id, nil
}

// audit names the patient a clinician's successful read was about.
func audit(c echo.Context, caller auth.Caller, userID *int64) {
	if caller.ActsForOthers() && userID != nil {
		middleware.SetAuditSubject(c, *userID)
	}
}

func (h *Handler) month(c echo.Context) (scoring.Month, error) {
	raw := c.QueryParam("month")
	if raw == "" {
		return h.svc.CurrentMonth(), nil
	}
	m, err := scoring.ParseMonth(raw)
	if err != nil {
		return scoring.Month{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return m, nil
}

func (h *Handler) Monthly(c echo.Context) error {
	caller, userID, err := target(c)
	if err != nil {
		return err
	}
	m, err := h.month(c)
	if err != nil {
		return err
	}
	out, err := h.svc.Monthly(c.Request().Context(), caller, userID, m)
	if err != nil {
		return toHTTPError(err)
	}
	audit(c, caller, userID)
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Calendar(c echo.Context) error {
	caller, userID, err := target(c)
	if err != nil {
		return err
	}
	m, err := h.month(c)
	if err != nil {
		return err
	}
	out, err := h.svc.Calendar(c.Request().Context(), caller, userID, m)
	if err != nil {
		return toHTTPError(err)
	}
	audit(c, caller, userID)
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Medications(c echo.Context) error {
	caller, userID, err := target(c)
	if err != nil {
		return err
	}
	w, err := ParseWindow(c.QueryParam("startDate"), c.QueryParam("endDate"), h.svc.Location())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := h.svc.PerMedication(c.Request().Context(), caller, userID, w)
	if err != nil {
		return toHTTPError(err)
	}
	audit(c, caller, userID)
	return c.JSON(http.StatusOK, map[string]interface{}{"data": out})
}
