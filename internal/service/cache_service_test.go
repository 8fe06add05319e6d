package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-seating-api/internal/models"
	appErrors "github.com/noah-isme/exam-seating-api/pkg/errors"
)

type memoryCacheRepo struct {
	values  map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
	deleted []string
}

func (r *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if r.getErr != nil {
		return r.getErr
	}
	raw, ok := r.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if r.values == nil {
		r.values = make(map[string][]byte)
		r.ttls = make(map[string]time.Duration)
	}
	r.values[key] = raw
	r.ttls[key] = ttl
	return nil
}

func (r *memoryCacheRepo) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		r.deleted = append(r.deleted, key)
		delete(r.values, key)
	}
	return nil
}

func TestCacheServiceRoundTripsPlans(t *testing.T) {
	repo := &memoryCacheRepo{}
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, 0, nil, true)
	ctx := context.Background()

	var plan models.SeatingPlan
	hit, err := svc.Get(ctx, planCacheKey("p1"), &plan)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, planCacheKey("p1"), &models.SeatingPlan{ID: "p1", Status: models.SeatingPlanStatusDraft}, 0))
	assert.Equal(t, 10*time.Minute, repo.ttls[planCacheKey("p1")], "default ttl applies")

	hit, err = svc.Get(ctx, planCacheKey("p1"), &plan)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "p1", plan.ID)

	require.NoError(t, svc.Invalidate(ctx, planCacheKey("p1")))
	assert.Equal(t, []string{"seating_plan:p1"}, repo.deleted)
	hit, err = svc.Get(ctx, planCacheKey("p1"), &plan)
	require.NoError(t, err)
	assert.False(t, hit)
	require.NoError(t, svc.Invalidate(ctx))

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.CacheHits)
	assert.Equal(t, uint64(2), snapshot.CacheMisses)
}

func TestCacheServiceDisabledAndErrors(t *testing.T) {
	repo := &memoryCacheRepo{}
	disabled := NewCacheService(repo, nil, time.Minute, nil, false)
	require.NoError(t, disabled.Set(context.Background(), "k", 1, 0))
	assert.Empty(t, repo.values)
	hit, err := disabled.Get(context.Background(), "k", new(int))
	require.NoError(t, err)
	assert.False(t, hit)

	repo.getErr = errors.New("redis down")
	svc := NewCacheService(repo, nil, time.Minute, nil, true)
	_, err = svc.Get(context.Background(), "k", new(int))
	assert.Error(t, err)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
}
