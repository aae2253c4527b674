package ads

import (
	"net/url"
	"strings"
	"time"
)

const (
	MaxTitleLength    = 255
	MaxBodyTextLength = 2000
)

// LinkSchemes are the destination schemes an ad may point at.
// tg covers Telegram deep links such as tg://resolve?domain=channel.
var LinkSchemes = map[string]bool{
	"https": true,
	"http":  true,
	"tg":    true,
}

// ValidateLink checks that raw is an absolute URL with an allowed scheme.
func ValidateLink(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return invalid("destination_link", "is required")
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return invalid("destination_link", "must be an absolute URL")
	}
	scheme := strings.ToLower(u.Scheme)
	if !LinkSchemes[scheme] {
		return invalid("destination_link", "scheme "+u.Scheme+" is not allowed")
	}
	if u.Host == "" && u.Opaque == "" {
		return invalid("destination_link", "must include a host")
	}
	return nil
}

func validateWindow(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return invalid("end_date", "must not be before start_date")
	}
	return nil
}

func validateText(field, value string, max int) error {
	if strings.TrimSpace(value) == "" {
		return invalid(field, "is required")
	}
	if len(value) > max {
		return invalid(field, "is too long")
	}
	return nil
}

// Validate normalizes and checks a create request.
func (r *CreateAdRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	r.BodyText = strings.TrimSpace(r.BodyText)
	r.DestinationLink = strings.TrimSpace(r.DestinationLink)

	if err := validateText("title", r.Title, MaxTitleLength); err != nil {
		return err
	}
	if err := validateText("body_text", r.BodyText, MaxBodyTextLength); err != nil {
		return err
	}
	if err := ValidateLink(r.DestinationLink); err != nil {
		return err
	}
	if r.BannerImageRef == "" {
		return invalid("banner_image", "is required")
	}
	pos, err := ParsePosition(string(r.Position))
	if err != nil {
		return err
	}
	r.Position = pos
	if r.Status == "" {
		r.Status = StatusActive
	}
	status, err := ParseStatus(string(r.Status))
	if err != nil {
		return err
	}
	r.Status = status
	return validateWindow(r.StartDate, r.EndDate)
}

// Validate checks the fields present on a partial update.
// The combined activation window is checked by the store against the current row.
func (u *UpdateAdRequest) Validate() error {
	if u.IsEmpty() {
		return invalid("body", "no fields to update")
	}
	if u.Title != nil {
		t := strings.TrimSpace(*u.Title)
		u.Title = &t
		if err := validateText("title", t, MaxTitleLength); err != nil {
			return err
		}
	}
	if u.BodyText != nil {
		b := strings.TrimSpace(*u.BodyText)
		u.BodyText = &b
		if err := validateText("body_text", b, MaxBodyTextLength); err != nil {
			return err
		}
	}
	if u.DestinationLink != nil {
		l := strings.TrimSpace(*u.DestinationLink)
		u.DestinationLink = &l
		if err := ValidateLink(l); err != nil {
			return err
		}
	}
	if u.Position != nil {
		pos, err := ParsePosition(string(*u.Position))
		if err != nil {
			return err
		}
		u.Position = &pos
	}
	if u.Status != nil {
		status, err := ParseStatus(string(*u.Status))
		if err != nil {
			return err
		}
		u.Status = &status
	}
	return nil
}
