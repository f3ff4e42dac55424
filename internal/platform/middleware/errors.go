package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HTTPErrorHandler renders errors as ErrorBody. Internal causes are exposed
// under "details" only when showDetails is set; 5xx responses are logged.
func HTTPErrorHandler(logger zerolog.Logger, showDetails bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		body := ErrorBody{Error: "internal server error"}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			switch m := he.Message.(type) {
			case string:
				body.Error = m
			case error:
				body.Error = m.Error()
			default:
				body.Error = http.StatusText(code)
			}
			if he.Internal != nil && showDetails {
				body.Details = he.Internal.Error()
			}
		} else if showDetails {
			body.Details = err.Error()
		}

		if code >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Int("status", code).
				Msg("request failed")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(code)
		} else {
			writeErr = c.JSON(code, body)
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("write error response")
		}
	}
}
