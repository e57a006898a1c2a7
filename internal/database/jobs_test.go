package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/zigen/pipeline"
	"github.com/BaSui01/zigen/types"
)

func newTestRepository(t *testing.T, opts ...RepositoryOption) *JobRepository {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Driver = "sqlite"
	cfg.DSN = filepath.Join(t.TempDir(), "jobs.db")

	db, err := Open(cfg, zap.NewNop())
	require.NoError(t, err)

	pm, err := NewPoolManager(db, PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pm.Close() })

	repo := NewJobRepository(pm, zap.NewNop(), opts...)
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

type queryRecorder struct {
	mu  sync.Mutex
	ops []string
}

func (q *queryRecorder) RecordDBQuery(database, operation string, _ time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ops = append(q.ops, database+":"+operation)
}

func TestJobRepository_SaveAndGet(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	rec := &JobRecord{ID: "job-1", Prompt: "a red fox", Status: "completed", ImageCount: 2, Upscaled: true, DurationMS: 1500}
	require.NoError(t, repo.Save(ctx, rec))
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := repo.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "a red fox", got.Prompt)
	assert.Equal(t, 2, got.ImageCount)
	assert.True(t, got.Upscaled)
	assert.Equal(t, int64(1500), got.DurationMS)

	_, err = repo.Get(ctx, "missing")
	assert.True(t, types.HasCode(err, types.ErrNotFound))

	assert.Error(t, repo.Save(ctx, &JobRecord{ID: "job-1"}), "duplicate primary key")
}

func TestJobRepository_RecentNewestFirst(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, repo.Save(ctx, &JobRecord{ID: id, Status: "completed", CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}

	recs, err := repo.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"d", "c", "b"}, []string{recs[0].ID, recs[1].ID, recs[2].ID})

	all, err := repo.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestJobRepository_HistoryLimit(t *testing.T) {
	obs := &queryRecorder{}
	repo := newTestRepository(t, WithHistoryLimit(3), WithQueryObserver(obs))
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, repo.Save(ctx, &JobRecord{ID: id, Status: "failed", CreatedAt: base.Add(time.Duration(i) * time.Second)}))
	}

	recs, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "e", recs[0].ID)
	assert.Equal(t, "c", recs[2].ID)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Contains(t, obs.ops, "sqlite:insert")
	assert.Contains(t, obs.ops, "sqlite:delete")
}

func TestJobRepository_Prune(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	n, err := repo.Prune(ctx, 5)
	require.NoError(t, err)
	assert.Zero(t, n, "empty table")

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Save(ctx, &JobRecord{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Second)}))
	}

	n, err = repo.Prune(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.Prune(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestJobRepository_PruneAfterPoolClosed(t *testing.T) {
	repo := newTestRepository(t)
	require.NoError(t, repo.pool.Close())

	_, err := repo.Prune(context.Background(), 1)
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestJobRepository_RecordSummary(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	var recorder pipeline.Recorder = repo
	require.NoError(t, recorder.Record(ctx, pipeline.Summary{
		JobID:     "ok",
		Prompt:    "castle",
		State:     pipeline.StateCompleted,
		Images:    1,
		StartedAt: started,
		Duration:  250 * time.Millisecond,
	}))
	require.NoError(t, recorder.Record(ctx, pipeline.Summary{
		JobID:     "bad",
		Prompt:    "castle",
		State:     pipeline.StateFailed,
		Err:       types.NewUpstreamError(500, "boom"),
		StartedAt: started.Add(time.Second),
	}))

	ok, err := repo.Get(ctx, "ok")
	require.NoError(t, err)
	assert.Equal(t, "completed", ok.Status)
	assert.Equal(t, int64(250), ok.DurationMS)
	assert.Empty(t, ok.Error)

	bad, err := repo.Get(ctx, "bad")
	require.NoError(t, err)
	assert.Equal(t, "failed", bad.Status)
	assert.Equal(t, string(types.ErrUpstreamError), bad.ErrorCode)
	assert.Contains(t, bad.Error, "status=500")
}

func TestOpen_Unconfigured(t *testing.T) {
	_, err := Open(DefaultConfig(), nil)
	assert.Error(t, err)

	_, err = Open(Config{Driver: "oracle", DSN: "x"}, nil)
	assert.ErrorContains(t, err, "unsupported")
}
