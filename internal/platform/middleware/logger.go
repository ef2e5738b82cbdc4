package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// loggerKey is the Echo context key holding the per-request child logger.
const loggerKey = "logger"

// RequestLogger returns the request-scoped logger stored by Logger, already
// carrying the request id and route. Handlers use it so pipeline events can
// be correlated with the request that triggered them. Returns a no-op
// logger when called outside the middleware chain.
func RequestLogger(c echo.Context) zerolog.Logger {
	if l, ok := c.Get(loggerKey).(zerolog.Logger); ok {
		return l
	}
	return zerolog.Nop()
}

// Logger logs one line per request and stores a request-scoped child logger
// in the context for handlers. 4xx responses log at warn, errors and 5xx at
// error.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid, _ := c.Get("request_id").(string)

			route := c.Path()
			if route == "" {
				route = req.URL.Path
			}
			reqLog := logger.With().
				Str("request_id", rid).
				Str("route", route).
				Logger()
			c.Set(loggerKey, reqLog)

			err := next(c)

			status := c.Response().Status
			var evt *zerolog.Event
			switch {
			case err != nil:
				evt = reqLog.Error().Err(err)
			case status >= 500:
				evt = reqLog.Error()
			case status >= 400:
				evt = reqLog.Warn()
			default:
				evt = reqLog.Info()
			}

			evt.
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", status).
				Int64("bytes_out", c.Response().Size).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")

			return err
		}
	}
}
