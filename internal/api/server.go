package api

import (
	"context"
	"net/http"
	"time"

	"github.com/campaignwatch/campaignwatch/internal/errors"
	"github.com/campaignwatch/campaignwatch/internal/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const shutdownTimeout = 10 * time.Second

// NewEcho creates an echo instance with panic recovery and request logging.
func NewEcho(log logger.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	httpLog := log.Module("http")
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				httpLog.Warn("request failed", append(fields, logger.Error(v.Error))...)
				return nil
			}
			httpLog.Debug("request", fields...)
			return nil
		},
	}))
	return e
}

// Serve runs e on addr until ctx is cancelled, then shuts it down
// gracefully.
func Serve(ctx context.Context, e *echo.Echo, addr string, log logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("http api listening", logger.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
