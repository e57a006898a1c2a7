package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/zigen/api"
	"github.com/BaSui01/zigen/internal/database"
)

type fakeJobs struct {
	records  []database.JobRecord
	err      error
	gotLimit int
}

func (f *fakeJobs) Recent(_ context.Context, limit int) ([]database.JobRecord, error) {
	f.gotLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func TestJobHandler_List(t *testing.T) {
	created := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	jobs := &fakeJobs{records: []database.JobRecord{
		{ID: "b", Prompt: "dog", Status: "failed", ErrorCode: "UPSTREAM_ERROR", Error: "status=500 body=trace", DurationMS: 40, CreatedAt: created},
		{ID: "a", Prompt: "cat", Status: "completed", ImageCount: 2, Upscaled: true, DurationMS: 900, CreatedAt: created.Add(-time.Minute)},
	}}
	h := NewJobHandler(jobs, zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleList(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, defaultJobsLimit, jobs.gotLimit)
	assert.NotContains(t, w.Body.String(), "body=trace")

	var resp struct {
		Data api.JobsResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Data.Jobs, 2)
	assert.Equal(t, api.JobView{
		ID: "b", Prompt: "dog", Status: "failed", ErrorCode: "UPSTREAM_ERROR", DurationMS: 40, CreatedAt: created,
	}, resp.Data.Jobs[0])
	assert.Equal(t, 2, resp.Data.Jobs[1].ImageCount)
	assert.True(t, resp.Data.Jobs[1].Upscaled)
}

func TestJobHandler_List_Limit(t *testing.T) {
	tests := []struct {
		query      string
		wantStatus int
		wantLimit  int
	}{
		{"?limit=1", http.StatusOK, 1},
		{"?limit=200", http.StatusOK, 200},
		{"?limit=0", http.StatusBadRequest, 0},
		{"?limit=201", http.StatusBadRequest, 0},
		{"?limit=abc", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			jobs := &fakeJobs{}
			h := NewJobHandler(jobs, nil)

			w := httptest.NewRecorder()
			h.HandleList(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs"+tt.query, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantLimit, jobs.gotLimit)
		})
	}
}

func TestJobHandler_List_StoreError(t *testing.T) {
	h := NewJobHandler(&fakeJobs{err: errors.New("database is locked")}, zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleList(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "locked")
}
