package main

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"time"

	"comichub/internal/assets"
	"comichub/internal/domain/ads"
	"comichub/internal/params"
)

const (
	bannerField = "banner_image"
	// maxAdFormBytes leaves room for the text fields next to the banner.
	maxAdFormBytes = assets.MaxBannerSize + 1<<20
)

type createAdPayload struct {
	Title           string `form:"title" validate:"required,max=255"`
	BodyText        string `form:"body_text" validate:"required,max=2000"`
	DestinationLink string `form:"destination_link" validate:"required,adlink"`
	Position        string `form:"position" validate:"required,adposition"`
	Status          string `form:"status" validate:"omitempty,oneof=active inactive"`
	IsActive        *bool  `form:"is_active"`
	StartDate       string `form:"start_date" validate:"addate"`
	EndDate         string `form:"end_date" validate:"addate"`
}

// updateAdPayload is accepted as multipart form data or JSON. Absent fields
// are left untouched; an empty date clears that bound.
type updateAdPayload struct {
	Title           *string `form:"title" json:"title" validate:"omitempty,max=255"`
	BodyText        *string `form:"body_text" json:"body_text" validate:"omitempty,max=2000"`
	DestinationLink *string `form:"destination_link" json:"destination_link" validate:"omitempty,adlink"`
	Position        *string `form:"position" json:"position" validate:"omitempty,adposition"`
	Status          *string `form:"status" json:"status" validate:"omitempty,oneof=active inactive"`
	IsActive        *bool   `form:"is_active" json:"is_active"`
	StartDate       *string `form:"start_date" json:"start_date" validate:"omitempty,addate"`
	EndDate         *string `form:"end_date" json:"end_date" validate:"omitempty,addate"`
}

func (p *createAdPayload) toRequest() (ads.CreateAdRequest, error) {
	start, err := parseAdDate(p.StartDate, false)
	if err != nil {
		return ads.CreateAdRequest{}, &ads.ValidationError{Field: "start_date", Reason: "must be a date or RFC 3339 timestamp"}
	}
	end, err := parseAdDate(p.EndDate, true)
	if err != nil {
		return ads.CreateAdRequest{}, &ads.ValidationError{Field: "end_date", Reason: "must be a date or RFC 3339 timestamp"}
	}

	isActive := true
	if p.IsActive != nil {
		isActive = *p.IsActive
	}
	return ads.CreateAdRequest{
		Title:           p.Title,
		BodyText:        p.BodyText,
		DestinationLink: p.DestinationLink,
		Position:        ads.Position(p.Position),
		Status:          ads.Status(p.Status),
		IsActive:        isActive,
		StartDate:       start,
		EndDate:         end,
	}, nil
}

func (p *updateAdPayload) toRequest() (ads.UpdateAdRequest, error) {
	req := ads.UpdateAdRequest{
		Title:           p.Title,
		BodyText:        p.BodyText,
		DestinationLink: p.DestinationLink,
		IsActive:        p.IsActive,
	}
	if p.Position != nil {
		pos := ads.Position(*p.Position)
		req.Position = &pos
	}
	if p.Status != nil {
		status := ads.Status(*p.Status)
		req.Status = &status
	}
	if p.StartDate != nil {
		start, err := parseAdDate(*p.StartDate, false)
		if err != nil {
			return req, &ads.ValidationError{Field: "start_date", Reason: "must be a date or RFC 3339 timestamp"}
		}
		req.StartDate = start
		req.ClearStartDate = start == nil
	}
	if p.EndDate != nil {
		end, err := parseAdDate(*p.EndDate, true)
		if err != nil {
			return req, &ads.ValidationError{Field: "end_date", Reason: "must be a date or RFC 3339 timestamp"}
		}
		req.EndDate = end
		req.ClearEndDate = end == nil
	}
	return req, nil
}

// parseAdForm caps the request body before the multipart parser spools it.
func parseAdForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxAdFormBytes)
	if err := r.ParseMultipartForm(maxAdFormBytes); err != nil {
		return errors.New("unable to parse form, banner size limit is 5MB")
	}
	return nil
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// readBanner validates and stores the uploaded banner, if any. It returns an
// empty ref when the form carries no file.
func (app *application) readBanner(ctx context.Context, r *http.Request) (string, error) {
	file, header, err := r.FormFile(bannerField)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", &ads.ValidationError{Field: bannerField, Reason: "could not read upload"}
	}
	defer file.Close()

	if header.Size > assets.MaxBannerSize {
		return "", assets.ErrBannerTooLarge
	}
	banner, err := assets.Inspect(file)
	if err != nil {
		return "", err
	}
	return app.assets.Save(ctx, banner)
}

// releaseBanner deletes a banner that is no longer referenced. Failures are
// logged; the record change has already happened.
func (app *application) releaseBanner(ctx context.Context, ref string, adID int64) {
	if ref == "" {
		return
	}
	if err := app.assets.Delete(ctx, ref); err != nil {
		app.logger.Errorw("failed to delete banner asset", "ad_id", adID, "banner_image_ref", ref, "error", err)
	}
}

// invalidateCandidates drops cached candidate lists after an admin write.
func (app *application) invalidateCandidates(ctx context.Context) {
	if app.candidates == nil {
		return
	}
	if err := app.candidates.Invalidate(ctx); err != nil {
		app.logger.Warnw("failed to invalidate candidate cache", "error", err)
	}
}

// ListAds godoc
//
//	@Summary		List ads (Admin)
//	@Description	Returns every ad with counters, newest first
//	@Tags			Admin
//	@Produce		json
//	@Param			page		query		int						false	"Page number (default: 1)"
//	@Param			limit		query		int						false	"Page size (default: 20, max: 100)"
//	@Param			position	query		string					false	"Filter by slot"
//	@Success		200			{object}	map[string]interface{}	"Ads with pagination"
//	@Failure		400			{object}	error					"Unknown position"
//	@Failure		401			{object}	error					"Unauthorized"
//	@Failure		403			{object}	error					"Forbidden"
//	@Security		ApiKeyAuth
//	@Router			/admin/ads [get]
func (app *application) listAdsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	p := params.ParsePagination(r.URL.Query())
	filter := ads.ListFilter{Limit: p.Limit, Offset: p.Offset}
	if raw := r.URL.Query().Get("position"); raw != "" {
		pos, err := ads.ParsePosition(raw)
		if err != nil {
			app.badRequestResponse(w, r, err)
			return
		}
		filter.Position = &pos
	}

	list, total, err := app.store.List(ctx, filter)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}
	p.ComputeMeta(total)

	app.jsonResponse(w, http.StatusOK, map[string]any{
		"ads":        list,
		"pagination": p,
	})
}

// GetAd godoc
//
//	@Summary		Get ad by ID (Admin)
//	@Tags			Admin
//	@Produce		json
//	@Param			adID	path		string	true	"Ad ID"
//	@Success		200		{object}	ads.Ad	"Ad details"
//	@Failure		400		{object}	error	"Invalid ad ID"
//	@Failure		404		{object}	error	"Ad not found"
//	@Security		ApiKeyAuth
//	@Router			/admin/ads/{adID} [get]
func (app *application) getAdHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, err := parseAdID(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ad, err := app.store.GetByID(ctx, id)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, ad)
}

// CreateAd godoc
//
//	@Summary		Create a new ad (Admin)
//	@Description	Creates an ad from a multipart form with a banner upload
//	@Tags			Admin
//	@Accept			mpfd
//	@Produce		json
//	@Param			title				formData	string	true	"Ad title"
//	@Param			body_text			formData	string	true	"Ad copy"
//	@Param			destination_link	formData	string	true	"https, http or tg link"
//	@Param			position			formData	string	true	"top, sidebar or bottom"
//	@Param			status				formData	string	false	"active (default) or inactive"
//	@Param			is_active			formData	boolean	false	"Enabled flag (default: true)"
//	@Param			start_date			formData	string	false	"First day shown"
//	@Param			end_date			formData	string	false	"Last day shown"
//	@Param			banner_image		formData	file	true	"Banner image, jpeg, png, gif or webp up to 5MB"
//	@Success		201					{object}	ads.Ad	"Ad created"
//	@Failure		400					{object}	error	"Invalid input"
//	@Failure		503					{object}	error	"Ad store unavailable"
//	@Security		ApiKeyAuth
//	@Router			/admin/ads [post]
func (app *application) createAdHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	if err := parseAdForm(w, r); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload createAdPayload
	if err := formDecoder.Decode(&payload, r.MultipartForm.Value); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(&payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	req, err := payload.toRequest()
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ref, err := app.readBanner(ctx, r)
	if err != nil {
		app.storeErrorResponse(w, r, fmt.Errorf("banner upload: %w", err))
		return
	}
	if ref == "" {
		app.badRequestResponse(w, r, errors.New("banner image is required"))
		return
	}
	req.BannerImageRef = ref
	req.CreatedAt = app.now()

	ad, err := app.store.Create(ctx, req)
	if err != nil {
		app.releaseBanner(ctx, ref, 0)
		app.storeErrorResponse(w, r, err)
		return
	}

	app.recorder.Known(ad.ID)
	app.invalidateCandidates(ctx)
	app.logger.Infow("ad created", "ad_id", ad.ID, "position", ad.Position)

	app.jsonResponse(w, http.StatusCreated, ad)
}

// UpdateAd godoc
//
//	@Summary		Update an ad (Admin)
//	@Description	Partially updates an ad from a multipart form or JSON body. A new banner replaces the old one
//	@Tags			Admin
//	@Accept			mpfd,json
//	@Produce		json
//	@Param			adID				path		string	true	"Ad ID"
//	@Param			title				formData	string	false	"Ad title"
//	@Param			body_text			formData	string	false	"Ad copy"
//	@Param			destination_link	formData	string	false	"https, http or tg link"
//	@Param			position			formData	string	false	"top, sidebar or bottom"
//	@Param			status				formData	string	false	"active or inactive"
//	@Param			is_active			formData	boolean	false	"Enabled flag"
//	@Param			start_date			formData	string	false	"First day shown, empty clears"
//	@Param			end_date			formData	string	false	"Last day shown, empty clears"
//	@Param			banner_image		formData	file	false	"Replacement banner"
//	@Success		200					{object}	ads.Ad	"Ad updated"
//	@Failure		400					{object}	error	"Invalid input"
//	@Failure		404					{object}	error	"Ad not found"
//	@Security		ApiKeyAuth
//	@Router			/admin/ads/{adID} [put]
//	@Router			/admin/ads/{adID} [patch]
func (app *application) updateAdHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	id, err := parseAdID(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	current, err := app.store.GetByID(ctx, id)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	var (
		payload updateAdPayload
		newRef  string
	)
	if isMultipart(r) {
		if err := parseAdForm(w, r); err != nil {
			app.badRequestResponse(w, r, err)
			return
		}
		if err := formDecoder.Decode(&payload, r.MultipartForm.Value); err != nil {
			app.badRequestResponse(w, r, err)
			return
		}
	} else if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(&payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	req, err := payload.toRequest()
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if isMultipart(r) {
		newRef, err = app.readBanner(ctx, r)
		if err != nil {
			app.storeErrorResponse(w, r, fmt.Errorf("banner upload: %w", err))
			return
		}
		if newRef != "" {
			req.BannerImageRef = &newRef
		}
	}

	ad, err := app.store.Update(ctx, id, req)
	if err != nil {
		app.releaseBanner(ctx, newRef, id)
		app.storeErrorResponse(w, r, err)
		return
	}

	if newRef != "" && current.BannerImageRef != newRef {
		app.releaseBanner(ctx, current.BannerImageRef, id)
	}
	app.invalidateCandidates(ctx)

	app.jsonResponse(w, http.StatusOK, ad)
}

// DeleteAd godoc
//
//	@Summary		Delete an ad (Admin)
//	@Description	Deletes the record, then its banner. A banner that cannot be deleted is logged and left behind
//	@Tags			Admin
//	@Produce		json
//	@Param			adID	path		string				true	"Ad ID"
//	@Success		200		{object}	map[string]string	"Ad deleted"
//	@Failure		400		{object}	error				"Invalid ad ID"
//	@Failure		404		{object}	error				"Ad not found"
//	@Security		ApiKeyAuth
//	@Router			/admin/ads/{adID} [delete]
func (app *application) deleteAdHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	id, err := parseAdID(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ad, err := app.store.Delete(ctx, id)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.releaseBanner(ctx, ad.BannerImageRef, id)
	app.invalidateCandidates(ctx)
	app.logger.Infow("ad deleted", "ad_id", id)

	app.jsonResponse(w, http.StatusOK, map[string]string{"message": "ad deleted successfully"})
}

// ToggleAdStatus godoc
//
//	@Summary		Toggle ad status (Admin)
//	@Description	Flips status between active and inactive
//	@Tags			Admin
//	@Produce		json
//	@Param			adID	path		string	true	"Ad ID"
//	@Success		200		{object}	ads.Ad	"Ad with its new status"
//	@Failure		400		{object}	error	"Invalid ad ID"
//	@Failure		404		{object}	error	"Ad not found"
//	@Security		ApiKeyAuth
//	@Router			/admin/ads/{adID}/toggle-status [patch]
func (app *application) toggleAdStatusHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, err := parseAdID(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ad, err := app.store.ToggleStatus(ctx, id)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}
	app.invalidateCandidates(ctx)

	app.jsonResponse(w, http.StatusOK, ad)
}

// AdsAnalytics godoc
//
//	@Summary		Ads analytics (Admin)
//	@Description	Totals, average click-through rate and the best performing ads
//	@Tags			Admin
//	@Produce		json
//	@Success		200	{object}	ads.Analytics	"Analytics"
//	@Security		ApiKeyAuth
//	@Router			/admin/ads/analytics [get]
func (app *application) adsAnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	stats, err := app.store.Analytics(ctx)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, stats)
}
