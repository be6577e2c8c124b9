package dto

import (
	"time"

	"studyshare/internal/model"
)

// ResourcePathDTO carries the resource ID taken from the URL path.
type ResourcePathDTO struct {
	ResourceID string `validate:"required,uuid"`
}

// PaginationDTO holds limit/offset query parameters.
type PaginationDTO struct {
	Limit  int `validate:"gte=1,lte=100"`
	Offset int `validate:"gte=0"`
}

// AccessDecisionResponseDTO is returned by the access check.
type AccessDecisionResponseDTO struct {
	CanView           bool                 `json:"can_view"`
	Reason            model.DecisionReason `json:"reason"`
	ViewsThisMonth    int                  `json:"views_this_month"`
	MaxViewsThisMonth int                  `json:"max_views_this_month"`
	Remaining         int                  `json:"remaining"`
	ResetTime         time.Time            `json:"reset_time"`
	ActionOptions     []model.ActionOption `json:"action_options"`
}

func NewAccessDecisionResponse(d model.AccessDecision) AccessDecisionResponseDTO {
	opts := d.ActionOptions
	if opts == nil {
		opts = []model.ActionOption{}
	}
	return AccessDecisionResponseDTO{
		CanView:           d.CanView,
		Reason:            d.Reason,
		ViewsThisMonth:    d.ViewsThisMonth,
		MaxViewsThisMonth: d.MaxViewsThisMonth,
		Remaining:         d.Remaining,
		ResetTime:         d.ResetTime,
		ActionOptions:     opts,
	}
}

// AccessInfoResponseDTO drives the monthly progress display.
type AccessInfoResponseDTO struct {
	Enabled            bool                 `json:"enabled"`
	ViewsThisMonth     int                  `json:"views_this_month"`
	MaxViewsThisMonth  int                  `json:"max_views_this_month"`
	AdWatchesThisMonth int                  `json:"ad_watches_this_month"`
	Remaining          int                  `json:"remaining"`
	CanView            bool                 `json:"can_view"`
	CanWatchAd         bool                 `json:"can_watch_ad"`
	RequiresAction     bool                 `json:"requires_action"`
	ResetTime          time.Time            `json:"reset_time"`
	ActionOptions      []model.ActionOption `json:"action_options"`
}

func NewAccessInfoResponse(i model.AccessInfo) AccessInfoResponseDTO {
	opts := i.ActionOptions
	if opts == nil {
		opts = []model.ActionOption{}
	}
	return AccessInfoResponseDTO{
		Enabled:            i.Enabled,
		ViewsThisMonth:     i.ViewsThisMonth,
		MaxViewsThisMonth:  i.MaxViewsThisMonth,
		AdWatchesThisMonth: i.AdWatchesThisMonth,
		Remaining:          i.Remaining,
		CanView:            i.CanView,
		CanWatchAd:         i.CanWatchAd,
		RequiresAction:     i.RequiresAction,
		ResetTime:          i.ResetTime,
		ActionOptions:      opts,
	}
}

// ViewedResponseDTO answers whether a resource was already unlocked.
type ViewedResponseDTO struct {
	ResourceID string `json:"resource_id"`
	Viewed     bool   `json:"viewed"`
}

// ViewedResourceDTO is one entry of the viewed-resources list.
type ViewedResourceDTO struct {
	ResourceID string    `json:"resource_id"`
	MonthYear  string    `json:"month_year"`
	UnlockedAt time.Time `json:"unlocked_at"`
}
