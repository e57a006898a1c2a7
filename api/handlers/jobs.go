package handlers

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/BaSui01/zigen/api"
	"github.com/BaSui01/zigen/internal/database"
	"github.com/BaSui01/zigen/types"
)

const (
	defaultJobsLimit = 20
	maxJobsLimit     = 200
)

// JobLister 查询最近的任务
type JobLister interface {
	Recent(ctx context.Context, limit int) ([]database.JobRecord, error)
}

// JobHandler 任务历史
type JobHandler struct {
	jobs   JobLister
	logger *zap.Logger
}

// NewJobHandler 创建任务历史处理器
func NewJobHandler(jobs JobLister, logger *zap.Logger) *JobHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobHandler{jobs: jobs, logger: logger.With(zap.String("component", "job_handler"))}
}

// HandleList 最近任务，按创建时间倒序
// @Summary 任务历史
// @Tags 任务
// @Produce json
// @Param limit query int false "条数（1-200，默认 20）"
// @Success 200 {object} api.JobsResponse "任务列表"
// @Security ApiKeyAuth
// @Router /api/v1/jobs [get]
func (h *JobHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := defaultJobsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxJobsLimit {
			WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "limit must be an integer between 1 and 200", h.logger)
			return
		}
		limit = n
	}

	records, err := h.jobs.Recent(r.Context(), limit)
	if err != nil {
		WriteError(w, r, types.NewError(types.ErrInternalError, "failed to load job history").WithCause(err), h.logger)
		return
	}

	views := make([]api.JobView, len(records))
	for i, rec := range records {
		views[i] = api.JobView{
			ID:         rec.ID,
			Prompt:     rec.Prompt,
			Status:     rec.Status,
			ImageCount: rec.ImageCount,
			Upscaled:   rec.Upscaled,
			ErrorCode:  rec.ErrorCode,
			DurationMS: rec.DurationMS,
			CreatedAt:  rec.CreatedAt,
		}
	}
	WriteSuccess(w, r, api.JobsResponse{Jobs: views})
}
