package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"studyshare/internal/api/v1/dto"
	"studyshare/internal/middleware"
	"studyshare/internal/model"
	"studyshare/internal/repository"
	"studyshare/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	readerID   = "0b7c1c52-8f55-4c7e-9a3e-0d6f3f1a2b01"
	ownerID    = "5d2f8e0a-1b3c-4d5e-8f70-9a1b2c3d4e5f"
	resourceID = "9f8e7d6c-5b4a-4392-8170-6f5e4d3c2b1a"
)

// fakeAuth trusts the X-User header so tests can skip JWT minting.
func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := r.Header.Get("X-User")
		if user == "" {
			http.Error(w, "Authorization header missing", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), middleware.UserContextKey, user)))
	})
}

type staticSigner struct{}

func (staticSigner) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://storage.test/" + key, nil
}

type testServer struct {
	mux    *http.ServeMux
	access service.AccessService
}

func newTestServer(t *testing.T, accessRepo repository.AccessRepository) *testServer {
	t.Helper()
	resources := repository.NewMemoryResourceRepo(model.Resource{
		ID:         resourceID,
		UploaderID: ownerID,
		Title:      "Past paper",
		Files: []model.ResourceFile{
			{ID: "f1", ResourceID: resourceID, StoragePath: ownerID + "/paper.pdf", OriginalFilename: "paper.pdf", Mime: "application/pdf"},
		},
	})
	validate := validator.New(validator.WithRequiredStructEnabled())
	access := service.NewAccessService(accessRepo, resources, model.DefaultAccessPolicy(), nil, "", zerolog.Nop())
	content := service.NewResourceService(resources, access, staticSigner{}, 15*time.Minute, zerolog.Nop())

	mux := http.NewServeMux()
	NewAccessHandler(access, validate, zerolog.Nop()).RegisterRoutes(mux, fakeAuth)
	NewResourceHandler(content, validate, zerolog.Nop()).RegisterRoutes(mux, fakeAuth)
	return &testServer{mux: mux, access: access}
}

func (s *testServer) do(t *testing.T, method, path, user string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if user != "" {
		req.Header.Set("X-User", user)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func resourcePath(i int) string {
	return fmt.Sprintf("/resources/00000000-0000-4000-8000-%012d/access", i)
}

func TestCheckAccessEndpoint(t *testing.T) {
	srv := newTestServer(t, repository.NewMemoryAccessRepo())

	for i := 0; i < 5; i++ {
		rec := srv.do(t, http.MethodPost, resourcePath(i), readerID)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[dto.AccessDecisionResponseDTO](t, rec)
		assert.True(t, body.CanView)
		assert.Equal(t, model.DecisionConsumed, body.Reason)
		assert.Equal(t, i+1, body.ViewsThisMonth)
	}

	rec := srv.do(t, http.MethodPost, resourcePath(5), readerID)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[dto.AccessDecisionResponseDTO](t, rec)
	assert.False(t, body.CanView)
	assert.Equal(t, model.DecisionLimitReached, body.Reason)
	assert.ElementsMatch(t, []model.ActionOption{model.ActionUpload, model.ActionAd}, body.ActionOptions)

	rec = srv.do(t, http.MethodPost, "/resources/"+resourceID+"/access", ownerID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.DecisionOwner, decode[dto.AccessDecisionResponseDTO](t, rec).Reason)
}

func TestCheckAccessEndpointRejects(t *testing.T) {
	srv := newTestServer(t, repository.NewMemoryAccessRepo())

	assert.Equal(t, http.StatusUnauthorized, srv.do(t, http.MethodPost, resourcePath(1), "").Code)
	assert.Equal(t, http.StatusBadRequest, srv.do(t, http.MethodPost, "/resources/not-a-uuid/access", readerID).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, srv.do(t, http.MethodGet, resourcePath(1), readerID).Code)
}

type failingRepo struct {
	repository.AccessRepository
}

func (failingRepo) ConsumeView(context.Context, string, string, time.Time, int) (repository.UnlockOutcome, *model.AccessAccount, error) {
	return "", nil, errors.New("connection reset")
}

func (failingRepo) GetOrCreateAccount(context.Context, string, time.Time) (*model.AccessAccount, error) {
	return nil, errors.New("connection reset")
}

func TestCheckAccessEndpointFailsClosed(t *testing.T) {
	srv := newTestServer(t, failingRepo{})

	rec := srv.do(t, http.MethodPost, resourcePath(1), readerID)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[dto.AccessDecisionResponseDTO](t, rec)
	assert.False(t, body.CanView)
	assert.Equal(t, model.DecisionUnavailable, body.Reason)

	assert.Equal(t, http.StatusServiceUnavailable, srv.do(t, http.MethodGet, "/users/me/access", readerID).Code)
}

func TestAdWatchEndpoint(t *testing.T) {
	srv := newTestServer(t, repository.NewMemoryAccessRepo())

	for i := 1; i <= 4; i++ {
		rec := srv.do(t, http.MethodPost, "/users/me/access/ad-watches", readerID)
		require.Equal(t, http.StatusOK, rec.Code)
		info := decode[dto.AccessInfoResponseDTO](t, rec)
		want := min(i, 3)
		assert.Equal(t, want, info.AdWatchesThisMonth)
		assert.Equal(t, 5+3*want, info.MaxViewsThisMonth)
	}

	info := decode[dto.AccessInfoResponseDTO](t, srv.do(t, http.MethodGet, "/users/me/access", readerID))
	assert.False(t, info.CanWatchAd)
	assert.True(t, info.Enabled)
	assert.Empty(t, info.ActionOptions)
}

func TestViewedEndpoints(t *testing.T) {
	srv := newTestServer(t, repository.NewMemoryAccessRepo())

	viewed := decode[dto.ViewedResponseDTO](t, srv.do(t, http.MethodGet, "/resources/"+resourceID+"/viewed", readerID))
	assert.False(t, viewed.Viewed)

	require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, "/resources/"+resourceID+"/access", readerID).Code)

	viewed = decode[dto.ViewedResponseDTO](t, srv.do(t, http.MethodGet, "/resources/"+resourceID+"/viewed", readerID))
	assert.True(t, viewed.Viewed)

	list := decode[[]dto.ViewedResourceDTO](t, srv.do(t, http.MethodGet, "/users/me/viewed-resources?limit=5", readerID))
	require.Len(t, list, 1)
	assert.Equal(t, resourceID, list[0].ResourceID)

	assert.Equal(t, http.StatusBadRequest, srv.do(t, http.MethodGet, "/users/me/viewed-resources?limit=0", readerID).Code)
	assert.Equal(t, http.StatusBadRequest, srv.do(t, http.MethodGet, "/users/me/viewed-resources?offset=x", readerID).Code)
}

func TestContentEndpoint(t *testing.T) {
	srv := newTestServer(t, repository.NewMemoryAccessRepo())

	rec := srv.do(t, http.MethodGet, "/resources/"+resourceID+"/content", readerID)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[dto.ResourceContentResponseDTO](t, rec)
	require.Len(t, body.Files, 1)
	assert.Equal(t, "https://storage.test/"+ownerID+"/paper.pdf", body.Files[0].URL)
	assert.True(t, body.Access.CanView)

	missing := srv.do(t, http.MethodGet, "/resources/11111111-1111-4111-8111-111111111111/content", readerID)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestContentEndpointAtLimit(t *testing.T) {
	srv := newTestServer(t, repository.NewMemoryAccessRepo())
	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, resourcePath(i), readerID).Code)
	}

	rec := srv.do(t, http.MethodGet, "/resources/"+resourceID+"/content", readerID)
	require.Equal(t, http.StatusForbidden, rec.Code)
	body := decode[dto.AccessDecisionResponseDTO](t, rec)
	assert.False(t, body.CanView)
	assert.Contains(t, body.ActionOptions, model.ActionUpload)
}

type recordingDLQService struct {
	got *dto.PubSubPushRequest
	err error
}

func (s *recordingDLQService) ProcessAndSave(_ context.Context, req *dto.PubSubPushRequest) error {
	s.got = req
	return s.err
}

func TestDLQEndpoint(t *testing.T) {
	passthrough := func(next http.Handler) http.Handler { return next }
	validate := validator.New(validator.WithRequiredStructEnabled())

	tests := []struct {
		name       string
		body       string
		svcErr     error
		wantStatus int
	}{
		{"saved", `{"message":{"data":"e30=","messageId":"1"},"subscription":"s"}`, nil, http.StatusNoContent},
		{"save failure still acks", `{"message":{"data":"e30=","messageId":"2"},"subscription":"s"}`, errors.New("db down"), http.StatusNoContent},
		{"missing message id", `{"message":{"data":"e30="},"subscription":"s"}`, nil, http.StatusBadRequest},
		{"bad json", `{`, nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &recordingDLQService{err: tt.svcErr}
			mux := http.NewServeMux()
			NewDLQHandler(svc, validate, zerolog.Nop()).RegisterRoutes(mux, passthrough)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/dlq/record", strings.NewReader(tt.body)))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
