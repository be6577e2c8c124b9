package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"studyshare/internal/api/v1/dto"
	"studyshare/internal/middleware"
	"studyshare/internal/repository"
	"studyshare/internal/service"

	"github.com/go-playground/validator/v10"
)

const defaultPageSize = 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
	}
	return userID, ok
}

func resourceIDFromPath(w http.ResponseWriter, r *http.Request, validate *validator.Validate) (string, bool) {
	p := dto.ResourcePathDTO{ResourceID: r.PathValue("resourceId")}
	if err := validate.Struct(&p); err != nil {
		http.Error(w, "Invalid resource ID", http.StatusBadRequest)
		return "", false
	}
	return p.ResourceID, true
}

func paginationFromQuery(w http.ResponseWriter, r *http.Request, validate *validator.Validate) (dto.PaginationDTO, bool) {
	p := dto.PaginationDTO{Limit: defaultPageSize}
	q := r.URL.Query()
	for name, dst := range map[string]*int{"limit": &p.Limit, "offset": &p.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "Invalid "+name+" parameter", http.StatusBadRequest)
			return p, false
		}
		*dst = n
	}
	if err := validate.Struct(&p); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return p, false
	}
	return p, true
}

// gateErrorStatus maps access gate failures to HTTP status codes.
func gateErrorStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrConcurrentUpdate):
		return http.StatusConflict
	case errors.Is(err, service.ErrAccountLookup):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
