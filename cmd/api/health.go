package main

import (
	"context"
	"net/http"
	"time"
)

// HealthCheck godoc
//
//	@Summary		Health check
//	@Description	Reports the server version and whether the ad store answers
//	@Tags			Ops
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Security		BasicAuth
//	@Router			/health [get]
func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	data := map[string]string{
		"status":  "ok",
		"env":     app.config.env,
		"version": version,
		"store":   "ok",
	}

	if app.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := app.ping(ctx); err != nil {
			app.logger.Warnw("health check: store ping failed", "error", err)
			data["status"] = "degraded"
			data["store"] = "unavailable"
		}
	}

	if err := app.jsonResponse(w, http.StatusOK, data); err != nil {
		app.internalServerError(w, r, err)
	}
}
