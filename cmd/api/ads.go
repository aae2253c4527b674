package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"comichub/internal/domain/ads"

	"github.com/go-chi/chi/v5"
)

func parseAdID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "adID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid ad ID")
	}
	return id, nil
}

// GetActiveAds godoc
//
//	@Summary		Get active ads
//	@Description	Returns every ad that may be shown right now, newest first
//	@Tags			Ads
//	@Produce		json
//	@Success		200	{array}		ads.PublicAd	"Eligible ads"
//	@Failure		503	{object}	error			"Ad store unavailable"
//	@Router			/ads/active [get]
func (app *application) getActiveAdsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	list, err := app.selector.SelectAll(ctx, app.now())
	if err != nil {
		app.metrics.SelectionErrors.WithLabelValues("all").Inc()
		app.storeErrorResponse(w, r, err)
		return
	}
	app.metrics.Selections.WithLabelValues("all").Inc()

	app.jsonResponse(w, http.StatusOK, ads.PublicList(list))
}

// GetAdsByPosition godoc
//
//	@Summary		Get ads for a slot
//	@Description	Returns the eligible ads of one slot in rotation order
//	@Tags			Ads
//	@Produce		json
//	@Param			position	path		string			true	"Slot: top, sidebar or bottom"
//	@Success		200			{array}		ads.PublicAd	"Eligible ads"
//	@Failure		400			{object}	error			"Unknown position"
//	@Failure		503			{object}	error			"Ad store unavailable"
//	@Router			/ads/position/{position} [get]
func (app *application) getAdsByPositionHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	position, err := ads.ParsePosition(chi.URLParam(r, "position"))
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	list, err := app.selector.SelectForPosition(ctx, position, app.now())
	if err != nil {
		app.metrics.SelectionErrors.WithLabelValues(string(position)).Inc()
		app.storeErrorResponse(w, r, err)
		return
	}
	app.metrics.Selections.WithLabelValues(string(position)).Inc()

	app.jsonResponse(w, http.StatusOK, ads.PublicList(list))
}

// RecordView godoc
//
//	@Summary		Record an ad view
//	@Description	Counts one display of an ad. Counting is best effort
//	@Tags			Ads
//	@Produce		json
//	@Param			adID	path		string				true	"Ad ID"
//	@Success		200		{object}	map[string]string	"View recorded"
//	@Failure		400		{object}	error				"Invalid ad ID"
//	@Failure		404		{object}	error				"Ad not found"
//	@Failure		429		{object}	error				"Rate limit exceeded"
//	@Router			/ads/{adID}/view [post]
func (app *application) recordViewHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, err := parseAdID(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := app.recorder.View(ctx, id); err != nil {
		app.notFoundResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, map[string]string{"message": "view recorded"})
}

type clickResponse struct {
	Message         string `json:"message"`
	DestinationLink string `json:"destination_link,omitempty"`
}

// RecordClick godoc
//
//	@Summary		Record an ad click
//	@Description	Counts one click and returns the destination link. A store outage is acknowledged without a link so navigation is not blocked
//	@Tags			Ads
//	@Produce		json
//	@Param			adID	path		string			true	"Ad ID"
//	@Success		200		{object}	clickResponse	"Click recorded"
//	@Failure		400		{object}	error			"Invalid ad ID"
//	@Failure		404		{object}	error			"Ad not found"
//	@Failure		429		{object}	error			"Rate limit exceeded"
//	@Router			/ads/{adID}/click [post]
func (app *application) recordClickHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, err := parseAdID(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ad, err := app.recorder.Click(ctx, id)
	if err != nil {
		if errors.Is(err, ads.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.logger.Warnw("click accepted without lookup", "ad_id", id, "error", err)
		app.jsonResponse(w, http.StatusOK, clickResponse{Message: "click accepted"})
		return
	}

	app.jsonResponse(w, http.StatusOK, clickResponse{Message: "click recorded", DestinationLink: ad.DestinationLink})
}

// RedirectAd godoc
//
//	@Summary		Follow an ad
//	@Description	Counts one click and redirects to the ad destination
//	@Tags			Ads
//	@Param			adID	path	string	true	"Ad ID"
//	@Success		302
//	@Failure		400	{object}	error	"Invalid ad ID"
//	@Failure		404	{object}	error	"Ad not found"
//	@Failure		503	{object}	error	"Ad store unavailable"
//	@Router			/ads/{adID}/go [get]
func (app *application) redirectAdHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, err := parseAdID(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ad, err := app.recorder.Click(ctx, id)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	http.Redirect(w, r, ad.DestinationLink, http.StatusFound)
}
