package feedback

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	notifier *Notifier
}

func NewHandler(n *Notifier) *Handler {
	return &Handler{notifier: n}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/feedback", h.Current)
	g.DELETE("/feedback/:id", h.Dismiss)
}

func (h *Handler) Current(c echo.Context) error {
	notice, ok := h.notifier.Current()
	if !ok {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, notice)
}

func (h *Handler) Dismiss(c echo.Context) error {
	if !h.notifier.Dismiss(c.Param("id")) {
		return echo.NewHTTPError(http.StatusNotFound, "notice not visible")
	}
	return c.NoContent(http.StatusNoContent)
}
