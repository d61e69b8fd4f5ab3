package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/pelotonhq/peloton-backend/api/responses"
	"github.com/pelotonhq/peloton-backend/pkg/config"
	pkgerrors "github.com/pelotonhq/peloton-backend/pkg/errors"
	"github.com/pelotonhq/peloton-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Peloton-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the backing services. Nil pingers are skipped so partial
// deployments still report on what they run.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP, pubsubP pinger) http.HandlerFunc {
	checks := map[string]pinger{
		"db":     dbP,
		"redis":  redisP,
		"pubsub": pubsubP,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Peloton-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := map[string]string{}
		healthy := true
		for name, p := range checks {
			if p == nil {
				continue
			}
			if err := p.Ping(ctx); err != nil {
				healthy = false
				status[name] = "down"
				if logg != nil {
					logg.Error(logg.WithField(ctx, "dependency", name), "health check failed", err)
				}
				continue
			}
			status[name] = "up"
		}

		if !healthy {
			responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(status))
			return
		}
		responses.WriteSuccess(w, status)
	}
}
