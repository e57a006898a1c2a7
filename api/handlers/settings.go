package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/zigen/api"
	"github.com/BaSui01/zigen/internal/settings"
	"github.com/BaSui01/zigen/types"
)

// =============================================================================
// ⚙️ 运行时配置 Handler
// =============================================================================

// SettingsStore 可读写的配置存储
type SettingsStore interface {
	Snapshot(ctx context.Context) (settings.Settings, error)
	Update(ctx context.Context, fn settings.Mutation) (settings.Settings, error)
}

// SettingsMetrics 记录配置修改结果
type SettingsMetrics interface {
	RecordSettingsUpdate(result string)
}

// SettingsHandler 配置查看与修改
type SettingsHandler struct {
	store   SettingsStore
	metrics SettingsMetrics
	logger  *zap.Logger
}

// NewSettingsHandler 创建配置处理器，metrics 可为 nil
func NewSettingsHandler(store SettingsStore, metrics SettingsMetrics, logger *zap.Logger) *SettingsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsHandler{
		store:   store,
		metrics: metrics,
		logger:  logger.With(zap.String("component", "settings_handler")),
	}
}

// HandleGet 返回当前配置
// @Summary 查看配置
// @Tags 配置
// @Produce json
// @Success 200 {object} api.SettingsResponse "当前配置"
// @Security BearerAuth
// @Router /api/v1/settings [get]
func (h *SettingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	s, err := h.store.Snapshot(r.Context())
	if err != nil {
		WriteError(w, r, types.NewError(types.ErrInternalError, "failed to read settings").WithCause(err), h.logger)
		return
	}
	WriteSuccess(w, r, api.SettingsResponse{Settings: s, Rendered: settings.Render(s)})
}

// HandlePatch 部分更新配置；任一字段校验失败则整体不生效
// @Summary 修改配置
// @Tags 配置
// @Accept json
// @Produce json
// @Param request body api.SettingsPatch true "要修改的字段"
// @Success 200 {object} api.SettingsResponse "修改后的配置"
// @Failure 400 {object} Response "字段超出范围"
// @Security BearerAuth
// @Router /api/v1/settings [patch]
func (h *SettingsHandler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var patch api.SettingsPatch
	if err := DecodeJSONBody(w, r, &patch, h.logger); err != nil {
		return
	}

	muts := patch.Mutations()
	if len(muts) == 0 {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "no settings to update", h.logger)
		return
	}

	s, err := h.store.Update(r.Context(), settings.Apply(muts...))
	if err != nil {
		if e, ok := types.AsError(err); ok && e.Code == types.ErrInvalidSetting {
			h.record("rejected")
			WriteError(w, r, types.NewError(types.ErrInvalidSetting, e.Message).WithCause(err), h.logger)
			return
		}
		h.record("error")
		WriteError(w, r, types.NewError(types.ErrInternalError, "failed to update settings").WithCause(err), h.logger)
		return
	}

	h.record("ok")
	fields := []zap.Field{zap.Int("fields", len(muts)), zap.String("service_url", s.ServiceURL)}
	if sub, ok := types.Subject(r.Context()); ok {
		fields = append(fields, zap.String("subject", sub))
	}
	h.logger.Info("settings updated", fields...)
	WriteSuccess(w, r, api.SettingsResponse{Settings: s, Rendered: settings.Render(s)})
}

func (h *SettingsHandler) record(result string) {
	if h.metrics != nil {
		h.metrics.RecordSettingsUpdate(result)
	}
}
