package ads

import "time"

// IsEligible reports whether ad may be shown at instant now.
// Both the status flag and the enabled flag must be on, and now must fall
// inside [StartDate, EndDate] with missing bounds treated as unbounded.
func IsEligible(ad Ad, now time.Time) bool {
	if ad.Status != StatusActive || !ad.IsActive {
		return false
	}
	if ad.StartDate != nil && now.Before(*ad.StartDate) {
		return false
	}
	if ad.EndDate != nil && now.After(*ad.EndDate) {
		return false
	}
	return true
}

// FilterEligible keeps the eligible ads of list, preserving order.
func FilterEligible(list []Ad, now time.Time) []Ad {
	out := make([]Ad, 0, len(list))
	for _, ad := range list {
		if IsEligible(ad, now) {
			out = append(out, ad)
		}
	}
	return out
}
