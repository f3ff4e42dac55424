package dailyscore

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/heartbeat/heartbeat/internal/domain/scoring"
	"github.com/heartbeat/heartbeat/internal/platform/auth"
	"github.com/heartbeat/heartbeat/internal/platform/middleware"
	"github.com/heartbeat/heartbeat/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/daily-scores", auth.RequireRole(auth.RolePatient, auth.RoleTherapist))
	g.GET("", h.List)
	g.POST("", h.Submit)
	g.GET("/stats", h.Stats)
	g.GET("/trends", h.Trends)
	g.GET("/streak", h.Streak)
	g.GET("/date/:date", h.GetByDate)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Delete)
}

// toHTTPError maps service errors onto status codes. Unknown errors become a
// 500 that keeps the cause for the error handler.
func toHTTPError(err error) error {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve.Message)
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, ErrNotFound.Error())
	case errors.Is(err, scoring.ErrInvalidInterval):
		return echo.NewHTTPError(http.StatusBadRequest, scoring.ErrInvalidInterval.Error())
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, auth.ErrUserIDRequired),
		errors.Is(err, auth.ErrOwnerRequired), errors.Is(err, auth.ErrUnauthenticated):
		return echo.NewHTTPError(auth.HTTPStatus(err), err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}

func callerOf(c echo.Context) (auth.Caller, error) {
	caller, ok := auth.CallerFromContext(c.Request().Context())
	if !ok {
		return auth.Caller{}, echo.NewHTTPError(http.StatusUnauthorized, auth.ErrUnauthenticated.Error())
	}
	return caller, nil
}

// auditRead names the subject of a clinician's read. A missing userId means
// the read spanned every patient.
func auditRead(c echo.Context, caller auth.Caller, userID *int64) {
	if !caller.ActsForOthers() {
		return
	}
	if userID == nil {
		middleware.SetAuditSubjectAll(c)
		return
	}
	middleware.SetAuditSubject(c, *userID)
}

func userIDParam(c echo.Context) (*int64, error) {
	raw := c.QueryParam("userId")
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid userId")
	}
	return &id, nil
}

func floatParam(c echo.Context, name string) (*float64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return &v, nil
}

func idParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func rangeParams(c echo.Context) (Range, error) {
	r, err := ParseRange(c.QueryParam("startDate"), c.QueryParam("endDate"))
	if err != nil {
		return Range{}, toHTTPError(err)
	}
	return r, nil
}

func (h *Handler) Submit(c echo.Context) error {
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	var in ScoreInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	d, created, err := h.svc.Submit(c.Request().Context(), caller, in)
	if err != nil {
		return toHTTPError(err)
	}
	middleware.SetAuditSubject(c, d.UserID)
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, d)
}

func (h *Handler) Get(c echo.Context) error {
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	d, err := h.svc.Get(c.Request().Context(), caller, id)
	if err != nil {
		return toHTTPError(err)
	}
	middleware.SetAuditSubject(c, d.UserID)
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) GetByDate(c echo.Context) error {
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	date, err := ParseDate(c.Param("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	d, err := h.svc.GetByDate(c.Request().Context(), caller, userID, date)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "No daily score found for this date")
	}
	if err != nil {
		return toHTTPError(err)
	}
	middleware.SetAuditSubject(c, d.UserID)
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Delete(c echo.Context) error {
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	owner, err := h.svc.Delete(c.Request().Context(), caller, id)
	if err != nil {
		return toHTTPError(err)
	}
	middleware.SetAuditSubject(c, owner)
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) List(c echo.Context) error {
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	pg, err := pagination.FromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var f Filter
	if f.UserID, err = userIDParam(c); err != nil {
		return err
	}
	if f.Range, err = rangeParams(c); err != nil {
		return err
	}
	if f.MinScore, err = floatParam(c, "minScore"); err != nil {
		return err
	}
	if f.MaxScore, err = floatParam(c, "maxScore"); err != nil {
		return err
	}

	items, total, err := h.svc.List(c.Request().Context(), caller, f, pg.Limit, pg.Offset)
	if err != nil {
		return toHTTPError(err)
	}
	auditRead(c, caller, f.UserID)
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Request().URL))
}

func (h *Handler) Stats(c echo.Context) error {
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	r, err := rangeParams(c)
	if err != nil {
		return err
	}
	st, err := h.svc.Stats(c.Request().Context(), caller, userID, r)
	if err != nil {
		return toHTTPError(err)
	}
	auditRead(c, caller, userID)
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) Trends(c echo.Context) error {
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	r, err := rangeParams(c)
	if err != nil {
		return err
	}
	interval, err := scoring.ParseInterval(c.QueryParam("interval"))
	if err != nil {
		return toHTTPError(err)
	}
	data, err := h.svc.Trends(c.Request().Context(), caller, userID, r, interval)
	if err != nil {
		return toHTTPError(err)
	}
	auditRead(c, caller, userID)
	return c.JSON(http.StatusOK, map[string]interface{}{"data": data})
}

func (h *Handler) Streak(c echo.Context) error {
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	st, err := h.svc.Streak(c.Request().Context(), caller, userID)
	if err != nil {
		return toHTTPError(err)
	}
	auditRead(c, caller, userID)
	return c.JSON(http.StatusOK, st)
}
