package patient

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicboard/clinicboard/internal/platform/blobstore"
	"github.com/clinicboard/clinicboard/internal/platform/feedback"
	"github.com/clinicboard/clinicboard/internal/platform/form"
	"github.com/clinicboard/clinicboard/internal/platform/listview"
	"github.com/clinicboard/clinicboard/internal/platform/websocket"
	"github.com/clinicboard/clinicboard/pkg/pagination"
)

// Publisher receives record-change events; the websocket hub implements it.
type Publisher interface {
	Publish(ctx context.Context, event websocket.Event) error
}

type Handler struct {
	svc      *Service
	notify   feedback.Sink
	events   Publisher
	pageSize int
	logger   zerolog.Logger
}

func NewHandler(svc *Service, notify feedback.Sink, events Publisher, pageSize int, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, notify: notify, events: events, pageSize: pageSize, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group, mw ...echo.MiddlewareFunc) {
	g := api.Group("/patients", mw...)
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)

	g.GET("/:id/consultations", h.ListConsultations)
	g.POST("/:id/consultations", h.AddConsultation)
	g.PUT("/:id/consultations/:cid", h.UpdateConsultation)

	g.GET("/:id/documents", h.ListDocuments)
	g.POST("/:id/documents", h.UploadDocument)
	g.GET("/:id/documents/:did/content", h.DownloadDocument)
	g.DELETE("/:id/documents/:did", h.DeleteDocument)
}

// Summary is the list row: the record without nested sub-records.
type Summary struct {
	ID string `json:"id"`
	PatientFields
	ConsultationCount int `json:"consultation_count"`
	DocumentCount     int `json:"document_count"`
}

func summarize(p *Patient) Summary {
	return Summary{
		ID:                p.ID,
		PatientFields:     p.PatientFields,
		ConsultationCount: len(p.Consultations),
		DocumentCount:     len(p.Documents),
	}
}

func (h *Handler) List(c echo.Context) error {
	all, err := h.svc.List(c.Request().Context())
	if err != nil {
		return h.respondError(c, err)
	}
	matched := listview.Filter(all, c.QueryParam("search"), func(p *Patient) string { return p.Name })

	pg := pagination.FromContext(c, h.pageSize)
	window := listview.Window(matched, pg.Offset, pg.Limit)
	rows := make([]Summary, 0, len(window))
	for _, p := range window {
		rows = append(rows, summarize(p))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(rows, len(matched), pg))
}

func (h *Handler) Get(c echo.Context) error {
	p, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func bindFields(c echo.Context) (PatientFields, error) {
	var in Patient
	if err := c.Bind(&in); err != nil {
		return PatientFields{}, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	f := in.PatientFields
	f.Name = strings.TrimSpace(f.Name)
	return f, nil
}

func (h *Handler) Create(c echo.Context) error {
	fields, err := bindFields(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Create(c.Request().Context(), fields)
	if err != nil {
		return h.respondError(c, err)
	}
	h.changed(c, "patient.created", p.ID, MsgPatientAdded)
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Update(c echo.Context) error {
	fields, err := bindFields(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Update(c.Request().Context(), c.Param("id"), fields)
	if err != nil {
		return h.respondError(c, err)
	}
	h.changed(c, "patient.updated", p.ID, MsgPatientUpdated)
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Delete(c echo.Context) error {
	id := c.Param("id")
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return h.respondError(c, err)
	}
	h.changed(c, "patient.deleted", id, MsgPatientDeleted)
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListConsultations(c echo.Context) error {
	list, err := h.svc.ListConsultations(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) AddConsultation(c echo.Context) error {
	var in Consultation
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	out, err := h.svc.AddConsultation(c.Request().Context(), c.Param("id"), in.ConsultationFields)
	if err != nil {
		return h.respondError(c, err)
	}
	h.changed(c, "consultation.created", c.Param("id"), MsgConsultationAdded)
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) UpdateConsultation(c echo.Context) error {
	var in Consultation
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	out, err := h.svc.UpdateConsultation(c.Request().Context(), c.Param("id"), c.Param("cid"), in.ConsultationFields)
	if err != nil {
		return h.respondError(c, err)
	}
	h.changed(c, "consultation.updated", c.Param("id"), MsgConsultationUpdated)
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) ListDocuments(c echo.Context) error {
	docs, err := h.svc.ListDocuments(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, docs)
}

// UploadDocument takes a multipart "file" and an optional display "name".
func (h *Handler) UploadDocument(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" {
		name = fh.Filename
	}

	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read uploaded file")
	}
	defer src.Close()

	doc, err := h.svc.UploadDocument(c.Request().Context(), c.Param("id"), name, fh.Header.Get("Content-Type"), src)
	if err != nil {
		return h.respondError(c, err)
	}
	h.changed(c, "document.created", c.Param("id"), MsgDocumentUploaded)
	return c.JSON(http.StatusCreated, doc)
}

func (h *Handler) DownloadDocument(c echo.Context) error {
	rc, doc, err := h.svc.OpenDocument(c.Request().Context(), c.Param("id"), c.Param("did"))
	if err != nil {
		return h.respondError(c, err)
	}
	defer rc.Close()

	c.Response().Header().Set("Content-Disposition", `inline; filename="`+strings.ReplaceAll(doc.Name, `"`, "")+`"`)
	return c.Stream(http.StatusOK, doc.ContentType, rc)
}

func (h *Handler) DeleteDocument(c echo.Context) error {
	if err := h.svc.DeleteDocument(c.Request().Context(), c.Param("id"), c.Param("did")); err != nil {
		return h.respondError(c, err)
	}
	h.changed(c, "document.deleted", c.Param("id"), MsgDocumentDeleted)
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) changed(c echo.Context, eventType, patientID, msg string) {
	h.notify.Notify(msg, feedback.SeveritySuccess)
	if h.events == nil {
		return
	}
	ev := websocket.NewEvent(websocket.TopicPatients, eventType, map[string]string{"patient_id": patientID})
	if err := h.events.Publish(c.Request().Context(), ev); err != nil {
		h.logger.Warn().Err(err).Str("event", eventType).Msg("publish patient event")
	}
}

// ErrorBody is the JSON error shape; Fields is set for validation failures.
type ErrorBody struct {
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

func (h *Handler) respondError(c echo.Context, err error) error {
	var verr *form.ValidationError
	var nf *NotFoundError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, ErrorBody{Message: RequiredFieldsMessage, Fields: verr.Fields})
	case errors.As(err, &nf):
		return echo.NewHTTPError(http.StatusNotFound, nf.Error())
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case IsUploadRejected(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case IsPersistence(err):
		h.logger.Error().Err(err).Msg("persistence failure")
		h.notify.Notify(MsgPersistenceFail, feedback.SeverityError)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "storage unavailable")
	default:
		return err
	}
}
