package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/estatehubhq/estatehub-backend/api/responses"
	"github.com/estatehubhq/estatehub-backend/pkg/config"
	pkgerrors "github.com/estatehubhq/estatehub-backend/pkg/errors"
)

type readinessPinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-EstateHub-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, pingers map[string]readinessPinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-EstateHub-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for name, pinger := range pingers {
			if pinger == nil {
				continue
			}
			if err := pinger.Ping(ctx); err != nil {
				responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}

// ReadinessPingers builds the probe set used by HealthReady.
func ReadinessPingers(probes map[string]func(ctx context.Context) error) map[string]readinessPinger {
	out := make(map[string]readinessPinger, len(probes))
	for name, probe := range probes {
		if probe == nil {
			continue
		}
		out[name] = pingFunc(probe)
	}
	return out
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }
