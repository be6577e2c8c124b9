package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"studyshare/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ResourceRepository reads the resources written by the upload flow.
type ResourceRepository interface {
	// GetResource returns the resource with its files, or nil if it does not exist.
	GetResource(ctx context.Context, resourceID string) (*model.Resource, error)
}

type resourceRepo struct {
	pool *pgxpool.Pool
}

func NewResourceRepo(pool *pgxpool.Pool) ResourceRepository {
	return &resourceRepo{pool: pool}
}

func (r *resourceRepo) GetResource(ctx context.Context, resourceID string) (*model.Resource, error) {
	const resourceQ = `
		SELECT id, uploader_id, title, created_at
		FROM resources
		WHERE id = $1
	`
	var res model.Resource
	err := r.pool.QueryRow(ctx, resourceQ, resourceID).Scan(
		&res.ID,
		&res.UploaderID,
		&res.Title,
		&res.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resource %s: %w", resourceID, err)
	}

	const filesQ = `
		SELECT id, resource_id, storage_path, original_filename, mime
		FROM files
		WHERE resource_id = $1
		ORDER BY original_filename, id
	`
	rows, err := r.pool.Query(ctx, filesQ, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query files for resource %s: %w", resourceID, err)
	}
	files, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.ResourceFile])
	if err != nil {
		return nil, fmt.Errorf("failed to scan files for resource %s: %w", resourceID, err)
	}
	res.Files = files
	return &res, nil
}

// MemoryResourceRepo is a map-backed ResourceRepository for local runs and tests.
type MemoryResourceRepo struct {
	mu        sync.RWMutex
	resources map[string]model.Resource
}

func NewMemoryResourceRepo(resources ...model.Resource) *MemoryResourceRepo {
	r := &MemoryResourceRepo{resources: make(map[string]model.Resource)}
	for _, res := range resources {
		r.resources[res.ID] = res
	}
	return r
}

func (r *MemoryResourceRepo) Put(res model.Resource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources[res.ID] = res
}

func (r *MemoryResourceRepo) GetResource(_ context.Context, resourceID string) (*model.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resources[resourceID]
	if !ok {
		return nil, nil
	}
	res.Files = append([]model.ResourceFile(nil), res.Files...)
	return &res, nil
}
