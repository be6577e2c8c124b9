package handler

import (
	"net/http"

	"studyshare/internal/api/v1/dto"
	"studyshare/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// AccessHandler exposes the monthly access gate.
type AccessHandler struct {
	accessService service.AccessService
	validate      *validator.Validate
	logger        zerolog.Logger
}

func NewAccessHandler(accessService service.AccessService, validate *validator.Validate, logger zerolog.Logger) *AccessHandler {
	return &AccessHandler{accessService: accessService, validate: validate, logger: logger}
}

// RegisterRoutes mounts access routes
func (h *AccessHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("POST /resources/{resourceId}/access", authMw(http.HandlerFunc(h.checkAccess)))
	mux.Handle("GET /resources/{resourceId}/viewed", authMw(http.HandlerFunc(h.hasViewed)))
	mux.Handle("GET /users/me/access", authMw(http.HandlerFunc(h.getAccessInfo)))
	mux.Handle("GET /users/me/viewed-resources", authMw(http.HandlerFunc(h.listViewedResources)))
	mux.Handle("POST /users/me/access/ad-watches", authMw(http.HandlerFunc(h.recordAdWatch)))
}

// checkAccess godoc
// @Summary Check and consume access to a resource
// @Description Unlocks the resource for the caller if it is theirs, already unlocked, or the month has views left.
// @Tags access
// @Produce json
// @Param resourceId path string true "Resource ID"
// @Success 200 {object} dto.AccessDecisionResponseDTO
// @Failure 400 {string} string "Invalid resource ID"
// @Failure 401 {string} string "Unauthorized"
// @Failure 409 {object} dto.AccessDecisionResponseDTO
// @Failure 503 {object} dto.AccessDecisionResponseDTO
// @Router /resources/{resourceId}/access [post]
func (h *AccessHandler) checkAccess(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	resourceID, ok := resourceIDFromPath(w, r, h.validate)
	if !ok {
		return
	}

	decision, err := h.accessService.CheckAccess(r.Context(), userID, resourceID)
	if err != nil {
		h.logger.Error().Err(err).Str("resource_id", resourceID).Msg("Access check failed")
		writeJSON(w, gateErrorStatus(err), dto.NewAccessDecisionResponse(decision))
		return
	}
	writeJSON(w, http.StatusOK, dto.NewAccessDecisionResponse(decision))
}

// hasViewed godoc
// @Summary Whether the caller already unlocked a resource
// @Tags access
// @Produce json
// @Param resourceId path string true "Resource ID"
// @Success 200 {object} dto.ViewedResponseDTO
// @Router /resources/{resourceId}/viewed [get]
func (h *AccessHandler) hasViewed(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	resourceID, ok := resourceIDFromPath(w, r, h.validate)
	if !ok {
		return
	}
	viewed, err := h.accessService.HasViewed(r.Context(), userID, resourceID)
	if err != nil {
		h.logger.Error().Err(err).Str("resource_id", resourceID).Msg("Viewed lookup failed")
		http.Error(w, "Failed to check viewed status", gateErrorStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, dto.ViewedResponseDTO{ResourceID: resourceID, Viewed: viewed})
}

// getAccessInfo godoc
// @Summary Current month's access summary
// @Tags access
// @Produce json
// @Success 200 {object} dto.AccessInfoResponseDTO
// @Router /users/me/access [get]
func (h *AccessHandler) getAccessInfo(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	info, err := h.accessService.GetAccessInfo(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("Access info lookup failed")
		http.Error(w, "Failed to load access info", gateErrorStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, dto.NewAccessInfoResponse(info))
}

func (h *AccessHandler) listViewedResources(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	page, ok := paginationFromQuery(w, r, h.validate)
	if !ok {
		return
	}
	viewed, err := h.accessService.ListViewedResources(r.Context(), userID, page.Limit, page.Offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("Listing viewed resources failed")
		http.Error(w, "Failed to list viewed resources", gateErrorStatus(err))
		return
	}
	resp := make([]dto.ViewedResourceDTO, 0, len(viewed))
	for _, v := range viewed {
		resp = append(resp, dto.ViewedResourceDTO{
			ResourceID: v.ResourceID,
			MonthYear:  v.MonthKey,
			UnlockedAt: v.UnlockedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// recordAdWatch godoc
// @Summary Record a completed ad watch
// @Description Grants the ad bonus for this month. Once the monthly ad cap is reached the call changes nothing.
// @Tags access
// @Produce json
// @Success 200 {object} dto.AccessInfoResponseDTO
// @Router /users/me/access/ad-watches [post]
func (h *AccessHandler) recordAdWatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	info, err := h.accessService.GrantBonusForAdWatch(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("Ad watch grant failed")
		http.Error(w, "Failed to record ad watch", gateErrorStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, dto.NewAccessInfoResponse(info))
}
