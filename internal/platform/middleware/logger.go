package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Logger emits one structured line per request. Pipeline routes scope their
// resources through the :id (patient) and :fileId path params, so those are
// lifted into dedicated fields to make tracing one document through the queue
// trivial.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			err := next(c)

			evt := logger.Info()
			if err != nil {
				evt = logger.Error().Err(err)
			}

			evt.
				Str("request_id", requestIDFrom(c)).
				Str("method", req.Method).
				Str("path", req.URL.Path)
			if pid := c.Param("id"); pid != "" {
				evt.Str("patient_id", pid)
			}
			if fid := c.Param("fileId"); fid != "" {
				evt.Str("file_id", fid)
			}
			evt.
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")

			return err
		}
	}
}
