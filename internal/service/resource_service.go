package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"studyshare/internal/model"
	"studyshare/internal/repository"

	"github.com/rs/zerolog"
)

var (
	ErrResourceNotFound = errors.New("resource not found")
	ErrAccessDenied     = errors.New("monthly view limit reached")
)

// URLSigner issues time-limited download URLs for stored objects.
type URLSigner interface {
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
}

// FileURL is a signed download link for one file of a resource.
type FileURL struct {
	FileID           string    `json:"file_id"`
	OriginalFilename string    `json:"original_filename"`
	Mime             string    `json:"mime"`
	URL              string    `json:"url"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// ResourceService serves resource content behind the access gate.
type ResourceService interface {
	// GetContentURLs runs the gate for userID and, if it allows the view, signs every
	// file of the resource. The decision is returned alongside ErrAccessDenied when locked.
	GetContentURLs(ctx context.Context, userID, resourceID string) ([]FileURL, model.AccessDecision, error)
}

type resourceService struct {
	resources repository.ResourceRepository
	gate      AccessService
	signer    URLSigner
	expiry    time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

func NewResourceService(
	resources repository.ResourceRepository,
	gate AccessService,
	signer URLSigner,
	expiry time.Duration,
	logger zerolog.Logger,
) ResourceService {
	return &resourceService{
		resources: resources,
		gate:      gate,
		signer:    signer,
		expiry:    expiry,
		now:       time.Now,
		logger:    logger.With().Str("service", "ResourceService").Logger(),
	}
}

func (s *resourceService) GetContentURLs(ctx context.Context, userID, resourceID string) ([]FileURL, model.AccessDecision, error) {
	res, err := s.resources.GetResource(ctx, resourceID)
	if err != nil {
		return nil, model.AccessDecision{Reason: model.DecisionUnavailable}, fmt.Errorf("%w: %w", ErrAccountLookup, err)
	}
	if res == nil {
		return nil, model.AccessDecision{}, ErrResourceNotFound
	}

	decision, err := s.gate.CheckAccess(ctx, userID, resourceID)
	if err != nil {
		return nil, decision, err
	}
	if !decision.CanView {
		return nil, decision, ErrAccessDenied
	}

	expiresAt := s.now().Add(s.expiry)
	urls := make([]FileURL, 0, len(res.Files))
	for _, f := range res.Files {
		url, err := s.signer.PresignGet(ctx, f.StoragePath, s.expiry)
		if err != nil {
			s.logger.Error().Err(err).
				Str("resource_id", resourceID).
				Str("storage_path", f.StoragePath).
				Msg("Failed to generate presigned URL")
			return nil, decision, fmt.Errorf("failed to generate presigned URL: %w", err)
		}
		urls = append(urls, FileURL{
			FileID:           f.ID,
			OriginalFilename: f.OriginalFilename,
			Mime:             f.Mime,
			URL:              url,
			ExpiresAt:        expiresAt,
		})
	}
	return urls, decision, nil
}
