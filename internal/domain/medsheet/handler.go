package medsheet

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/medpaste/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("admin", "physician", "nurse", "pharmacist"))
	g.POST("/medication-paste/preview", h.Preview)
	g.GET("/patients/:id/medication-sheet", h.GetSheet)
	g.PUT("/patients/:id/medication-sheet", h.PutSheet)
	g.POST("/patients/:id/medication-sheet/paste", h.Paste)
	g.GET("/patients/:id/medication-sheet/view", h.View)
}

type previewRequest struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

type sheetRequest struct {
	Regular string `json:"regular"`
	PRN     string `json:"prn"`
}

type pasteRequest struct {
	Kind           string  `json:"kind"`
	Text           string  `json:"text"`
	SelectionStart int     `json:"selection_start"`
	SelectionEnd   int     `json:"selection_end"`
	CurrentValue   *string `json:"current_value"`
}

func (h *Handler) Preview(c echo.Context) error {
	var req previewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	kind, err := ParseKind(req.Kind)
	if err != nil {
		return httpError(err)
	}
	p, err := h.svc.Preview(kind, req.Text)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetSheet(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	sh, err := h.svc.GetSheet(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sh)
}

func (h *Handler) PutSheet(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	var req sheetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sh := &Sheet{PatientID: id, Regular: req.Regular, PRN: req.PRN}
	if err := h.svc.SaveSheet(c.Request().Context(), sh); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sh)
}

func (h *Handler) Paste(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	var req pasteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	kind, err := ParseKind(req.Kind)
	if err != nil {
		return httpError(err)
	}

	res, err := h.svc.ApplyPaste(c.Request().Context(), PasteInput{
		PatientID: id,
		Kind:      kind,
		Text:      req.Text,
		Start:     req.SelectionStart,
		End:       req.SelectionEnd,
		Current:   req.CurrentValue,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) View(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.View(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func patientID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	return id, nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidKind), errors.Is(err, ErrInvalidSelection):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
