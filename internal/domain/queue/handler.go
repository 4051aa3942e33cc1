package queue

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carehq/carehq/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, internal *echo.Group) {
	api.POST("/patients/:id/files", h.UploadFile)
	api.GET("/patients/:id/files", h.ListPatientFiles)

	internal.GET("/queue/process-next", h.ProcessNext)
	internal.POST("/queue/:fileId/requeue", h.Requeue)
	internal.GET("/queue/items", h.ListItems)
}

// UploadFile accepts a multipart PDF upload, stores it, and enqueues it.
func (h *Handler) UploadFile(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	month, _ := strconv.Atoi(c.FormValue("month"))
	year, _ := strconv.Atoi(c.FormValue("year"))

	f := &PatientFile{
		PatientID:       patientID,
		PatientFullName: c.FormValue("patient_full_name"),
		FileName:        fh.Filename,
		FileType:        c.FormValue("file_type"),
		Month:           month,
		Year:            year,
	}
	item, err := h.svc.RegisterUpload(c.Request().Context(), f, data)
	if err != nil {
		if errors.Is(err, ErrAlreadyQueued) {
			return echo.NewHTTPError(http.StatusConflict, "file already queued")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"file":       f,
		"queue_item": item,
	})
}

func (h *Handler) ListPatientFiles(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	files, err := h.svc.FilesForPatient(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, files)
}

// ProcessNext claims and processes exactly one pending item. 404 when the
// queue is empty.
func (h *Handler) ProcessNext(c echo.Context) error {
	res, err := h.svc.ProcessNext(c.Request().Context())
	if err != nil {
		if errors.Is(err, ErrQueueEmpty) {
			return echo.NewHTTPError(http.StatusNotFound, "queue is empty")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Requeue(c echo.Context) error {
	fileID, err := uuid.Parse(c.Param("fileId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid file id")
	}
	item, err := h.svc.Requeue(c.Request().Context(), fileID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "file not found")
		case errors.Is(err, ErrAlreadyQueued):
			return echo.NewHTTPError(http.StatusConflict, "file already queued")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *Handler) ListItems(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListItems(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
