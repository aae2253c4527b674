package main

import (
	"errors"
	"net/http"

	"comichub/internal/assets"
	"comichub/internal/domain/ads"
)

func (app *application) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("internal error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusInternalServerError, "the server encountered a problem")
}

func (app *application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("bad request", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusBadRequest, err.Error())
}

func (app *application) notFoundResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("not found error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusNotFound, "not found")
}

func (app *application) serviceUnavailableResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("store unavailable", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	w.Header().Set("Retry-After", "5")
	writeJSONError(w, http.StatusServiceUnavailable, "ad store is temporarily unavailable")
}

func (app *application) unauthorizedErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("unauthorized error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusUnauthorized, "unauthorized")
}

func (app *application) unauthorizedBasicErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("unauthorized basic error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	w.Header().Set("WWW-Authenticate", `Basic realm="restricted", charset="UTF-8"`)
	writeJSONError(w, http.StatusUnauthorized, "unauthorized")
}

func (app *application) forbiddenResponse(w http.ResponseWriter, r *http.Request) {
	app.logger.Warnw("forbidden", "method", r.Method, "path", r.URL.Path)

	writeJSONError(w, http.StatusForbidden, "forbidden")
}

func (app *application) rateLimitExceededResponse(w http.ResponseWriter, r *http.Request, retryAfter string) {
	app.logger.Warnw("rate limit exceeded", "method", r.Method, "path", r.URL.Path)

	w.Header().Set("Retry-After", retryAfter)
	writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded, retry after: "+retryAfter)
}

// storeErrorResponse maps domain errors onto HTTP statuses.
func (app *application) storeErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case ads.IsValidation(err), assets.IsInvalid(err):
		app.badRequestResponse(w, r, err)
	case errors.Is(err, ads.ErrNotFound):
		app.notFoundResponse(w, r, err)
	case errors.Is(err, ads.ErrStoreUnavailable):
		app.serviceUnavailableResponse(w, r, err)
	default:
		app.internalServerError(w, r, err)
	}
}
