package ads

import (
	"strconv"
	"strings"
	"time"
)

// Position is the placement slot an ad is eligible for.
type Position string

const (
	PositionTop     Position = "top"
	PositionSidebar Position = "sidebar"
	PositionBottom  Position = "bottom"
)

// Positions lists every slot in display order.
var Positions = []Position{PositionTop, PositionSidebar, PositionBottom}

// ParsePosition normalizes a slot name. "premium" is the legacy name of the bottom slot.
func ParsePosition(s string) (Position, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "top":
		return PositionTop, nil
	case "sidebar":
		return PositionSidebar, nil
	case "bottom", "premium":
		return PositionBottom, nil
	}
	return "", invalid("position", "must be one of top, sidebar, bottom")
}

// Status is the administrative kill switch of an ad.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return StatusActive, nil
	case "inactive":
		return StatusInactive, nil
	}
	return "", invalid("status", "must be active or inactive")
}

// Ad represents the ads table structure
type Ad struct {
	ID              int64      `json:"id,string"`
	Title           string     `json:"title"`
	BodyText        string     `json:"body_text"`
	DestinationLink string     `json:"destination_link"`
	BannerImageRef  string     `json:"banner_image_ref"`
	Position        Position   `json:"position"`
	Status          Status     `json:"status"`
	IsActive        bool       `json:"is_active"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	ViewCount       int64      `json:"view_count"`
	ClickCount      int64      `json:"click_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// PublicAd is the shape served to viewers; counters and admin fields are omitted.
type PublicAd struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	BodyText        string   `json:"body_text"`
	BannerImageRef  string   `json:"banner_image_ref"`
	DestinationLink string   `json:"destination_link"`
	Position        Position `json:"position"`
}

func (a Ad) Public() PublicAd {
	return PublicAd{
		ID:              strconv.FormatInt(a.ID, 10),
		Title:           a.Title,
		BodyText:        a.BodyText,
		BannerImageRef:  a.BannerImageRef,
		DestinationLink: a.DestinationLink,
		Position:        a.Position,
	}
}

func PublicList(list []Ad) []PublicAd {
	out := make([]PublicAd, 0, len(list))
	for _, a := range list {
		out = append(out, a.Public())
	}
	return out
}

// CreateAdRequest represents the fields needed to insert an ad.
// BannerImageRef is filled in after the asset has been stored.
type CreateAdRequest struct {
	Title           string
	BodyText        string
	DestinationLink string
	BannerImageRef  string
	Position        Position
	Status          Status
	IsActive        bool
	StartDate       *time.Time
	EndDate         *time.Time
	CreatedAt       time.Time
}

// UpdateAdRequest is a partial update; nil fields are left untouched.
type UpdateAdRequest struct {
	Title           *string
	BodyText        *string
	DestinationLink *string
	BannerImageRef  *string
	Position        *Position
	Status          *Status
	IsActive        *bool
	StartDate       *time.Time
	EndDate         *time.Time
	ClearStartDate  bool
	ClearEndDate    bool
}

func (u UpdateAdRequest) IsEmpty() bool {
	return u.Title == nil && u.BodyText == nil && u.DestinationLink == nil &&
		u.BannerImageRef == nil && u.Position == nil && u.Status == nil &&
		u.IsActive == nil && u.StartDate == nil && u.EndDate == nil &&
		!u.ClearStartDate && !u.ClearEndDate
}

// Apply returns a copy of ad with the update applied. Stores use it to
// validate the resulting activation window before writing.
func (u UpdateAdRequest) Apply(ad Ad) Ad {
	if u.Title != nil {
		ad.Title = *u.Title
	}
	if u.BodyText != nil {
		ad.BodyText = *u.BodyText
	}
	if u.DestinationLink != nil {
		ad.DestinationLink = *u.DestinationLink
	}
	if u.BannerImageRef != nil {
		ad.BannerImageRef = *u.BannerImageRef
	}
	if u.Position != nil {
		ad.Position = *u.Position
	}
	if u.Status != nil {
		ad.Status = *u.Status
	}
	if u.IsActive != nil {
		ad.IsActive = *u.IsActive
	}
	if u.ClearStartDate {
		ad.StartDate = nil
	} else if u.StartDate != nil {
		ad.StartDate = u.StartDate
	}
	if u.ClearEndDate {
		ad.EndDate = nil
	} else if u.EndDate != nil {
		ad.EndDate = u.EndDate
	}
	return ad
}

// ListFilter drives the admin listing.
type ListFilter struct {
	Limit    int
	Offset   int
	Position *Position
}

// Analytics represents ads analytics data
type Analytics struct {
	TotalAds         int     `json:"total_ads"`
	EnabledAds       int     `json:"enabled_ads"`
	TotalViews       int64   `json:"total_views"`
	TotalClicks      int64   `json:"total_clicks"`
	AverageCTR       float64 `json:"average_ctr"`
	TopPerformingAds []Ad    `json:"top_performing_ads"`
}
