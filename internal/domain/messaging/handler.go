package messaging

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinicboard/clinicboard/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, mw ...echo.MiddlewareFunc) {
	g := api.Group("/contacts", mw...)
	g.GET("", h.Contacts)
	g.GET("/:id/messages", h.Thread)
	g.POST("/:id/messages", h.Send)
}

func (h *Handler) Contacts(c echo.Context) error {
	ctx := c.Request().Context()
	return c.JSON(http.StatusOK, h.svc.SearchContacts(ctx, auth.UserIDFromContext(ctx), c.QueryParam("search")))
}

func (h *Handler) Thread(c echo.Context) error {
	ctx := c.Request().Context()
	msgs, err := h.svc.Thread(ctx, auth.UserIDFromContext(ctx), c.Param("id"))
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, msgs)
}

type sendRequest struct {
	Text string `json:"text"`
}

func (h *Handler) Send(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	m, err := h.svc.Send(ctx, auth.UserIDFromContext(ctx), c.Param("id"), req.Text)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func toHTTP(err error) error {
	switch {
	case errors.Is(err, ErrContactNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrEmptyMessage):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return err
}
