package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/avrportal/tindago-backend/api/responses"
	"github.com/avrportal/tindago-backend/pkg/config"
	"github.com/avrportal/tindago-backend/pkg/logger"
	"github.com/avrportal/tindago-backend/pkg/redis"
)

const readyProbeTimeout = 2 * time.Second

type dbPinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Tindago-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports per-dependency status and degrades to 503 when any
// probe fails.
func HealthReady(cfg *config.Config, logg *logger.Logger, db dbPinger, redisClient redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyProbeTimeout)
		defer cancel()

		checks := map[string]string{}
		healthy := true

		if db != nil {
			checks["database"] = "ok"
			if err := db.Ping(ctx); err != nil {
				checks["database"] = "unreachable"
				healthy = false
				logg.Error(ctx, "readiness database probe failed", err)
			}
		}
		if redisClient != nil {
			checks["redis"] = "ok"
			if err := redisClient.Ping(ctx); err != nil {
				checks["redis"] = "unreachable"
				healthy = false
				logg.Error(ctx, "readiness redis probe failed", err)
			}
		}

		w.Header().Set("X-Tindago-Env", cfg.App.Env)
		status := "ready"
		httpStatus := http.StatusOK
		if !healthy {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}
		responses.WriteSuccessStatus(w, httpStatus, map[string]any{
			"status": status,
			"checks": checks,
		})
	}
}
