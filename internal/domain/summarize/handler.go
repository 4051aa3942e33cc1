package summarize

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients/:id/highlights/generate", h.Generate)
	api.GET("/patients/:id/highlights", h.GetHighlights)
}

func (h *Handler) Generate(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	gen, err := h.svc.Generate(c.Request().Context(), patientID)
	if err != nil {
		if errors.Is(err, ErrRateLimitDeferred) {
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit window full, try again later")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, gen)
}

func (h *Handler) GetHighlights(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	hl, err := h.svc.HighlightForPatient(c.Request().Context(), patientID)
	if err != nil {
		if errors.Is(err, ErrHighlightNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "no highlights for patient")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, hl)
}
