package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/feiralivre/marketplace-backend/api/responses"
	"github.com/feiralivre/marketplace-backend/pkg/config"
	pkgerrors "github.com/feiralivre/marketplace-backend/pkg/errors"
	"github.com/feiralivre/marketplace-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthLive reports process liveness without touching dependencies.
func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		responses.WriteSuccess(w, map[string]string{
			"status": "ok",
			"env":    cfg.App.Env,
		})
	}
}

// HealthReady verifies the API can reach its backing services.
func HealthReady(cfg *config.Config, logg *logger.Logger, db pinger, cache pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]string{}
		healthy := true

		for name, dep := range map[string]pinger{"database": db, "redis": cache} {
			if dep == nil {
				checks[name] = "not configured"
				healthy = false
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				checks[name] = err.Error()
				healthy = false
				continue
			}
			checks[name] = "ok"
		}

		if !healthy {
			err := pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(checks)
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"status": "ok",
			"env":    cfg.App.Env,
			"checks": checks,
		})
	}
}
