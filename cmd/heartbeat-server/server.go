package main

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/heartbeat/heartbeat/internal/config"
	"github.com/heartbeat/heartbeat/internal/domain/dailyscore"
	"github.com/heartbeat/heartbeat/internal/domain/medicationlog"
	"github.com/heartbeat/heartbeat/internal/platform/auth"
	"github.com/heartbeat/heartbeat/internal/platform/cache"
	"github.com/heartbeat/heartbeat/internal/platform/db"
	"github.com/heartbeat/heartbeat/internal/platform/middleware"
)

type deps struct {
	cfg    *config.Config
	logger zerolog.Logger
	pool   *pgxpool.Pool
	cache  cache.Store
	loc    *time.Location
}

// newServer builds the echo instance with global middleware, /health and
// the authenticated /api group.
func newServer(d deps) *echo.Echo {
	cfg := d.cfg
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.HTTPErrorHandler(d.logger, !cfg.IsProduction())

	// Global middleware
	e.Use(middleware.Recovery(d.logger))
	e.Use(middleware.RequestID())
	if cfg.OTelEnabled {
		e.Use(otelecho.Middleware("heartbeat"))
	}
	e.Use(middleware.Logger(d.logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, auth.HeaderDevUserID, auth.HeaderDevRole},
	}))
	e.Use(middleware.SecurityHeaders())
	if cfg.BodyLimit != "" {
		e.Use(echomw.BodyLimit(cfg.BodyLimit))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(d.pool, db.PoolStatsFunc(d.pool)))

	api := e.Group("/api")
	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.AuthJWKSURL,
		SigningKey: []byte(cfg.AuthSigningKey),
	}
	if cfg.IsDev() {
		api.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		api.Use(auth.JWTMiddleware(jwtCfg))
	}

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 || rateLimitCfg.BurstSize <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api.Use(middleware.RateLimit(rateLimitCfg))
	api.Use(middleware.Audit(d.logger.With().Str("component", "audit").Logger(), nil))
	api.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	scoreSvc := dailyscore.NewService(dailyscore.NewRepoPG(d.pool), db.NewTxRunner(d.pool))
	scoreSvc.SetCache(d.cache, cfg.CacheTTL)
	scoreSvc.SetLogger(d.logger.With().Str("component", "dailyscore").Logger())
	scoreSvc.SetClock(d.loc, nil)
	dailyscore.NewHandler(scoreSvc).RegisterRoutes(api)

	medSvc := medicationlog.NewService(medicationlog.NewRepoPG(d.pool))
	medSvc.SetLogger(d.logger.With().Str("component", "medicationlog").Logger())
	medSvc.SetClock(d.loc, nil)
	medicationlog.NewHandler(medSvc).RegisterRoutes(api)

	return e
}

func printStatus(w io.Writer, schema string, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "Migration status for schema: %s\n", schema)
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}
