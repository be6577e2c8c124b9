package model

import "time"

// GrantReason tags a bonus grant with the action that earned it.
type GrantReason string

const (
	GrantReasonUpload  GrantReason = "upload"
	GrantReasonAdWatch GrantReason = "ad_watch"
)

// ActionOption is an unlock action the presentation layer may offer at the limit.
type ActionOption string

const (
	ActionUpload ActionOption = "upload"
	ActionAd     ActionOption = "ad"
)

// DecisionReason explains why an AccessDecision came out the way it did.
type DecisionReason string

const (
	DecisionOwner            DecisionReason = "owner"
	DecisionPreviouslyViewed DecisionReason = "previously_viewed"
	DecisionConsumed         DecisionReason = "consumed"
	DecisionLimitReached     DecisionReason = "limit_reached"
	DecisionGateDisabled     DecisionReason = "gate_disabled"
	DecisionUnavailable      DecisionReason = "unavailable"
)

// BonusGrant is one monthly-scoped addition to a user's allowance.
type BonusGrant struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	MonthKey  string      `json:"month_year"`
	Reason    GrantReason `json:"reason"`
	Magnitude int         `json:"magnitude"`
	CreatedAt time.Time   `json:"created_at"`
}

// AccessAccount holds a user's counters for a single calendar month.
type AccessAccount struct {
	UserID        string       `json:"user_id"`
	MonthAnchor   time.Time    `json:"month_anchor"`
	ViewsConsumed int          `json:"views_used"`
	AdWatches     int          `json:"ads_watched"`
	BonusGrants   []BonusGrant `json:"bonus_grants"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// BonusViews sums the magnitude of every grant earned this month.
func (a *AccessAccount) BonusViews() int {
	total := 0
	for _, g := range a.BonusGrants {
		total += g.Magnitude
	}
	return total
}

// MaxViews is the month's capacity: the base allowance plus earned bonuses.
func (a *AccessAccount) MaxViews(baseAllowance int) int {
	return baseAllowance + a.BonusViews()
}

// Remaining never goes below zero.
func (a *AccessAccount) Remaining(baseAllowance int) int {
	r := a.MaxViews(baseAllowance) - a.ViewsConsumed
	if r < 0 {
		return 0
	}
	return r
}

// ViewedResource records a permanent unlock of one resource by one user.
type ViewedResource struct {
	UserID     string    `json:"user_id"`
	ResourceID string    `json:"resource_id"`
	MonthKey   string    `json:"month_year"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

// AccessDecision is the answer to "may this user view this resource".
type AccessDecision struct {
	CanView           bool
	Reason            DecisionReason
	ViewsThisMonth    int
	MaxViewsThisMonth int
	Remaining         int
	ResetTime         time.Time
	ActionOptions     []ActionOption
}

// AccessInfo is a read-only snapshot of the current month for progress display.
type AccessInfo struct {
	Enabled            bool
	ViewsThisMonth     int
	MaxViewsThisMonth  int
	AdWatchesThisMonth int
	Remaining          int
	CanView            bool
	CanWatchAd         bool
	RequiresAction     bool
	ResetTime          time.Time
	ActionOptions      []ActionOption
}
