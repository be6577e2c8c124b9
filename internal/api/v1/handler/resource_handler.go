package handler

import (
	"errors"
	"net/http"

	"studyshare/internal/api/v1/dto"
	"studyshare/internal/repository"
	"studyshare/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type ResourceHandler struct {
	resourceService service.ResourceService
	validate        *validator.Validate
	logger          zerolog.Logger
}

func NewResourceHandler(resourceService service.ResourceService, validate *validator.Validate, logger zerolog.Logger) *ResourceHandler {
	return &ResourceHandler{resourceService: resourceService, validate: validate, logger: logger}
}

func (h *ResourceHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("GET /resources/{resourceId}/content", authMw(http.HandlerFunc(h.getContent)))
}

// getContent godoc
// @Summary Signed download URLs for a resource
// @Description Runs the access gate and, when allowed, returns short-lived URLs for every file.
// @Tags resources
// @Produce json
// @Param resourceId path string true "Resource ID"
// @Success 200 {object} dto.ResourceContentResponseDTO
// @Failure 403 {object} dto.AccessDecisionResponseDTO
// @Failure 404 {string} string "Resource not found"
// @Router /resources/{resourceId}/content [get]
func (h *ResourceHandler) getContent(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	resourceID, ok := resourceIDFromPath(w, r, h.validate)
	if !ok {
		return
	}

	urls, decision, err := h.resourceService.GetContentURLs(r.Context(), userID, resourceID)
	switch {
	case errors.Is(err, service.ErrResourceNotFound):
		http.Error(w, "Resource not found", http.StatusNotFound)
		return
	case errors.Is(err, service.ErrAccessDenied):
		writeJSON(w, http.StatusForbidden, dto.NewAccessDecisionResponse(decision))
		return
	case errors.Is(err, service.ErrAccountLookup), errors.Is(err, repository.ErrConcurrentUpdate):
		h.logger.Error().Err(err).Str("resource_id", resourceID).Msg("Access check failed")
		writeJSON(w, gateErrorStatus(err), dto.NewAccessDecisionResponse(decision))
		return
	case err != nil:
		h.logger.Error().Err(err).Str("resource_id", resourceID).Msg("Failed to sign resource content")
		http.Error(w, "Failed to generate content URLs", http.StatusInternalServerError)
		return
	}

	files := make([]dto.ContentFileDTO, 0, len(urls))
	for _, u := range urls {
		files = append(files, dto.ContentFileDTO{
			FileID:           u.FileID,
			OriginalFilename: u.OriginalFilename,
			Mime:             u.Mime,
			URL:              u.URL,
			ExpiresAt:        u.ExpiresAt,
		})
	}
	writeJSON(w, http.StatusOK, dto.ResourceContentResponseDTO{
		ResourceID: resourceID,
		Access:     dto.NewAccessDecisionResponse(decision),
		Files:      files,
	})
}
