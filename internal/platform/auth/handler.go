package auth

import (
	"errors"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts POST /login publicly, guarded only by loginMW, and
// the session routes behind authMW.
func (h *Handler) RegisterRoutes(api *echo.Group, authMW echo.MiddlewareFunc, loginMW ...echo.MiddlewareFunc) {
	api.POST("/login", h.Login, loginMW...)

	api.POST("/logout", h.Logout, authMW)
	me := api.Group("/me", authMW)
	me.GET("", h.Me)
	me.PATCH("", h.UpdateMe)
	me.POST("/totp", h.EnrollTOTP)
	me.POST("/totp/confirm", h.ConfirmTOTP)

	api.GET("/auth/revocations", h.Revocations, authMW, RequireRole(RoleAdmin))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code,omitempty"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}
	sess, err := h.svc.Login(c.Request().Context(), req.Email, req.Password, req.Code)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) Logout(c echo.Context) error {
	h.svc.Logout(c.Request().Context(), ClaimsFromContext(c.Request().Context()))
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Me(c echo.Context) error {
	userID := UserIDFromContext(c.Request().Context())
	if userID == DevUserID {
		return c.JSON(http.StatusOK, Profile{ID: DevUserID, Name: "Developer", Role: RoleAdmin})
	}
	p, err := h.svc.Profile(c.Request().Context(), userID)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateMe(c echo.Context) error {
	var req ProfileUpdate
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.UpdateProfile(c.Request().Context(), UserIDFromContext(c.Request().Context()), req)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) EnrollTOTP(c echo.Context) error {
	enr, err := h.svc.EnrollTOTP(c.Request().Context(), UserIDFromContext(c.Request().Context()))
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, enr)
}

type confirmRequest struct {
	Code string `json:"code"`
}

func (h *Handler) ConfirmTOTP(c echo.Context) error {
	var req confirmRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.ConfirmTOTP(c.Request().Context(), UserIDFromContext(c.Request().Context()), req.Code)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

type revocationList struct {
	Count   int            `json:"count"`
	Entries []RevokedToken `json:"entries"`
}

func (h *Handler) Revocations(c echo.Context) error {
	entries := h.svc.revocations.Entries()
	sort.Slice(entries, func(i, j int) bool { return entries[i].ExpiresAt.Before(entries[j].ExpiresAt) })
	return c.JSON(http.StatusOK, revocationList{Count: len(entries), Entries: entries})
}

func toHTTP(err error) error {
	switch {
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidTOTP), errors.Is(err, ErrTOTPRequired):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrUserNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrEmailTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrWeakPassword), errors.Is(err, ErrNoPendingTOTP):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return err
}
