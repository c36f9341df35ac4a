package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// RequestTimeout puts a deadline on each request context and answers 504
// when the handler gives up because of it. The handler runs to completion on
// the request goroutine, so it must honour ctx to be cut short. Websocket
// paths and document transfers are exempt.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	if timeout <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return echomw.ContextTimeoutWithConfig(echomw.ContextTimeoutConfig{
		Timeout: timeout,
		Skipper: func(c echo.Context) bool { return exemptFromTimeout(c.Request()) },
		ErrorHandler: func(err error, c echo.Context) error {
			if c.Response().Committed {
				return err
			}
			if errors.Is(err, context.DeadlineExceeded) ||
				errors.Is(c.Request().Context().Err(), context.DeadlineExceeded) {
				return echo.NewHTTPError(http.StatusGatewayTimeout, "request took too long").SetInternal(err)
			}
			return err
		},
	})
}

func exemptFromTimeout(r *http.Request) bool {
	path := r.URL.Path
	return strings.HasSuffix(path, "/ws") || isUpload(r) || strings.HasSuffix(path, "/content")
}
