package model

import "time"

const (
	DefaultFreeViewsPerMonth    = 5
	DefaultMaxAdWatchesPerMonth = 3
	DefaultUploadBonusViews     = 5
	DefaultAdBonusViews         = 3
)

// AccessPolicy parameterises the monthly view economy.
type AccessPolicy struct {
	Enabled              bool
	BaseMonthlyAllowance int            `validate:"gte=0"`
	MaxAdWatches         int            `validate:"gte=0"`
	UploadBonusViews     int            `validate:"gt=0"`
	AdBonusViews         int            `validate:"gt=0"`
	Location             *time.Location `validate:"required"`
}

func DefaultAccessPolicy() AccessPolicy {
	return AccessPolicy{
		Enabled:              true,
		BaseMonthlyAllowance: DefaultFreeViewsPerMonth,
		MaxAdWatches:         DefaultMaxAdWatchesPerMonth,
		UploadBonusViews:     DefaultUploadBonusViews,
		AdBonusViews:         DefaultAdBonusViews,
		Location:             time.UTC,
	}
}

func (p AccessPolicy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// MonthAnchor returns the first instant of t's calendar month in the policy location.
func (p AccessPolicy) MonthAnchor(t time.Time) time.Time {
	loc := p.location()
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
}

// NextReset returns the first instant of the calendar month after t.
func (p AccessPolicy) NextReset(t time.Time) time.Time {
	return p.MonthAnchor(t).AddDate(0, 1, 0)
}

// MonthKey is the storage key for the month containing anchor, e.g. "2024-11".
func MonthKey(anchor time.Time) string {
	return anchor.Format("2006-01")
}

// CanWatchAd reports whether another ad-watch grant fits under the monthly cap.
func (p AccessPolicy) CanWatchAd(a *AccessAccount) bool {
	return a.AdWatches < p.MaxAdWatches
}

// ActionOptions lists the unlock actions still available on a. Upload is always offered.
func (p AccessPolicy) ActionOptions(a *AccessAccount) []ActionOption {
	opts := []ActionOption{ActionUpload}
	if p.CanWatchAd(a) {
		opts = append(opts, ActionAd)
	}
	return opts
}

// Info summarises a for display at instant now.
func (p AccessPolicy) Info(a *AccessAccount, now time.Time) AccessInfo {
	remaining := a.Remaining(p.BaseMonthlyAllowance)
	info := AccessInfo{
		Enabled:            p.Enabled,
		ViewsThisMonth:     a.ViewsConsumed,
		MaxViewsThisMonth:  a.MaxViews(p.BaseMonthlyAllowance),
		AdWatchesThisMonth: a.AdWatches,
		Remaining:          remaining,
		CanView:            remaining > 0,
		CanWatchAd:         p.CanWatchAd(a),
		ResetTime:          p.NextReset(now),
		ActionOptions:      []ActionOption{},
	}
	if !info.CanView {
		info.RequiresAction = true
		info.ActionOptions = p.ActionOptions(a)
	}
	return info
}

// Decide builds the decision for a resource that is neither owned nor previously unlocked.
// consumed reports whether a unit was just spent on it.
func (p AccessPolicy) Decide(a *AccessAccount, consumed bool, now time.Time) AccessDecision {
	d := AccessDecision{
		CanView:           consumed,
		Reason:            DecisionConsumed,
		ViewsThisMonth:    a.ViewsConsumed,
		MaxViewsThisMonth: a.MaxViews(p.BaseMonthlyAllowance),
		Remaining:         a.Remaining(p.BaseMonthlyAllowance),
		ResetTime:         p.NextReset(now),
	}
	if !consumed {
		d.Reason = DecisionLimitReached
		d.ActionOptions = p.ActionOptions(a)
	}
	return d
}

// Free builds an allow decision that spent nothing.
func (p AccessPolicy) Free(a *AccessAccount, reason DecisionReason, now time.Time) AccessDecision {
	return AccessDecision{
		CanView:           true,
		Reason:            reason,
		ViewsThisMonth:    a.ViewsConsumed,
		MaxViewsThisMonth: a.MaxViews(p.BaseMonthlyAllowance),
		Remaining:         a.Remaining(p.BaseMonthlyAllowance),
		ResetTime:         p.NextReset(now),
	}
}
