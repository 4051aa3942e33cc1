package report

import (
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
	api.POST("/reports/case-study", h.CaseStudy)
}

type caseStudyRequest struct {
	PatientIDs []string `json:"patient_ids"`
	Title      string   `json:"title"`
}

// CaseStudy renders and returns the PDF as an attachment.
func (h *Handler) CaseStudy(c echo.Context) error {
	var req caseStudyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.PatientIDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_ids is required")
	}

	ids := make([]uuid.UUID, 0, len(req.PatientIDs))
	for _, raw := range req.PatientIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id "+raw)
		}
		ids = append(ids, id)
	}

	pdf, err := h.svc.Generate(c.Request().Context(), ids, req.Title)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="case-study.pdf"`)
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}
