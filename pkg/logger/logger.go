package logger

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kevinjam/farmkeeper-sub001/pkg/config"
)

var log *zap.Logger

// InitLogger builds the process-wide logger. Production gets structured JSON,
// everything else gets the colored development encoder. The level comes from
// LOG_LEVEL and falls back to info when unparseable.
func InitLogger(cfg *config.Config) {
	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if cfg.Server.Env == "production" {
		zapCfg = zap.NewProductionConfig()
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level.SetLevel(level)

	built, err := zapCfg.Build()
	if err != nil {
		panic("logger: " + err.Error())
	}
	log = built
	log.Info("Logger initialized", zap.String("level", level.String()))
}

// GetLogger returns the global logger, building a production fallback if
// InitLogger has not run (tests mostly).
func GetLogger() *zap.Logger {
	if log == nil {
		log = zap.Must(zap.NewProduction())
	}
	return log
}

// Middleware stores a request-scoped logger in the echo context and emits one
// line per completed request with method, path, status and latency.
func Middleware(base *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			requestID := c.Request().Header.Get(RequestIDKey)
			if requestID == "" {
				requestID = c.Response().Header().Get(RequestIDKey)
			}
			reqLog := base.With(zap.String("request_id", requestID))
			c.Set(ContextKey, reqLog)

			err := next(c)

			fields := []zapcore.Field{
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", c.RealIP()),
				zap.String("user_agent", c.Request().UserAgent()),
			}
			if err != nil {
				reqLog.Error("HTTP request failed", append(fields, zap.Error(err))...)
			} else {
				reqLog.Info("HTTP request completed", fields...)
			}

			return err
		}
	}
}
