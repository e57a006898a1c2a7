package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/zigen/api"
	"github.com/BaSui01/zigen/internal/settings"
	"github.com/BaSui01/zigen/pipeline"
	"github.com/BaSui01/zigen/types"
)

// =============================================================================
// 🎨 图像生成 Handler
// =============================================================================

// Runner 执行一个生成任务
type Runner interface {
	Run(ctx context.Context, prompt string, snap settings.Settings, sink pipeline.Sink) ([]types.EncodedImage, error)
	Messages() pipeline.Messages
}

// SettingsSource 提供任务开始时的配置快照
type SettingsSource interface {
	Snapshot(ctx context.Context) (settings.Settings, error)
}

// wsReadTimeout 等待客户端发送提示词的时间
const wsReadTimeout = 30 * time.Second

// ImageHandler 图像生成处理器
type ImageHandler struct {
	runner         Runner
	settings       SettingsSource
	originPatterns []string
	logger         *zap.Logger
}

// ImageHandlerOption 可选配置
type ImageHandlerOption func(*ImageHandler)

// WithOriginPatterns 允许的 WebSocket 跨域来源（host 通配模式）
func WithOriginPatterns(patterns ...string) ImageHandlerOption {
	return func(h *ImageHandler) { h.originPatterns = patterns }
}

// NewImageHandler 创建图像生成处理器
func NewImageHandler(runner Runner, source SettingsSource, logger *zap.Logger, opts ...ImageHandlerOption) *ImageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &ImageHandler{
		runner:   runner,
		settings: source,
		logger:   logger.With(zap.String("component", "image_handler")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleGenerate 同步生成
// @Summary 生成图像
// @Tags 图像
// @Accept json
// @Produce json
// @Param request body api.GenerateRequest true "生成请求"
// @Success 200 {object} api.GenerateResponse "生成结果"
// @Failure 400 {object} Response "提示词为空或请求无效"
// @Failure 502 {object} Response "生成失败"
// @Security ApiKeyAuth
// @Router /api/v1/images/generations [post]
func (h *ImageHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.GenerateRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	jobID := uuid.NewString()
	ctx := types.WithJobID(r.Context(), jobID)
	sink := &collectSink{}

	images, err := h.runner.Run(ctx, req.Prompt, snap, sink)
	if err != nil {
		h.writeRunError(w, r, err)
		return
	}

	WriteSuccess(w, r, api.GenerateResponse{
		JobID:    jobID,
		Images:   encodeImages(images),
		Messages: sink.statuses(),
	})
}

// HandleStream 以 SSE 推送任务过程
// @Summary 流式生成图像
// @Tags 图像
// @Accept json
// @Produce text/event-stream
// @Param request body api.GenerateRequest true "生成请求"
// @Success 200 {string} string "SSE 流"
// @Failure 400 {object} Response "无效请求"
// @Security ApiKeyAuth
// @Router /api/v1/images/generations/stream [post]
func (h *ImageHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.GenerateRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteErrorMessage(w, r, http.StatusInternalServerError, types.ErrInternalError, "streaming not supported", h.logger)
		return
	}

	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // 禁用 nginx 缓冲
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	jobID := uuid.NewString()
	ctx := types.WithJobID(r.Context(), jobID)
	sink := &sseSink{w: w, flusher: flusher, jobID: jobID}

	if _, err := h.runner.Run(ctx, req.Prompt, snap, sink); err != nil {
		h.logRunError(jobID, err)
	}

	sink.done()
}

// HandleWebSocket 通过 WebSocket 接收一个提示词并推送任务过程，结束后正常关闭
// @Summary WebSocket 生成图像
// @Tags 图像
// @Success 101 {string} string "协议升级"
// @Security ApiKeyAuth
// @Router /api/v1/images/ws [get]
func (h *ImageHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		// Accept 已写出错误响应
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	readCtx, cancel := context.WithTimeout(r.Context(), wsReadTimeout)
	_, data, err := conn.Read(readCtx)
	cancel()
	if err != nil {
		h.logger.Warn("websocket read failed", zap.Error(err))
		return
	}

	// 解码失败以 1003 关闭
	var req api.GenerateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.logger.Warn("invalid websocket request", zap.Error(err))
		conn.Close(websocket.StatusUnsupportedData, "expected {\"prompt\": ...}")
		return
	}

	jobID := uuid.NewString()
	// 之后客户端不应再发消息；对端断开时 ctx 被取消
	ctx := conn.CloseRead(types.WithJobID(r.Context(), jobID))

	snap, err := h.settings.Snapshot(ctx)
	if err != nil {
		h.logger.Error("failed to read settings", zap.Error(err))
		conn.Close(websocket.StatusInternalError, "settings unavailable")
		return
	}

	sink := &wsSink{conn: conn, jobID: jobID}
	if _, err := h.runner.Run(ctx, req.Prompt, snap, sink); err != nil {
		h.logRunError(jobID, err)
	}

	conn.Close(websocket.StatusNormalClosure, "done")
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

func (h *ImageHandler) snapshot(w http.ResponseWriter, r *http.Request) (settings.Settings, bool) {
	snap, err := h.settings.Snapshot(r.Context())
	if err != nil {
		WriteError(w, r, types.NewError(types.ErrInternalError, "settings unavailable").
			WithCause(err).
			WithHTTPStatus(http.StatusServiceUnavailable), h.logger)
		return settings.Settings{}, false
	}
	return snap, true
}

// writeRunError 空提示词返回提醒文案，其余失败只返回通用文案
func (h *ImageHandler) writeRunError(w http.ResponseWriter, r *http.Request, err error) {
	msgs := h.runner.Messages()

	switch {
	case types.HasCode(err, types.ErrEmptyPrompt):
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrEmptyPrompt, msgs.EmptyPrompt, nil)
	case errors.Is(err, context.Canceled):
		// 客户端已断开
		h.logger.Debug("client went away before job finished")
	default:
		code := types.GetErrorCode(err)
		if code == "" {
			code = types.ErrInternalError
		}
		WriteError(w, r, types.NewError(code, msgs.Failure).WithHTTPStatus(http.StatusBadGateway), nil)
	}
}

// logRunError 流水线已记录失败细节，这里只留关联信息
func (h *ImageHandler) logRunError(jobID string, err error) {
	h.logger.Debug("streamed job ended with error",
		zap.String("job_id", jobID),
		zap.String("code", string(types.GetErrorCode(err))),
	)
}

func encodeImages(images []types.EncodedImage) []string {
	out := make([]string, len(images))
	for i, img := range images {
		out[i] = string(img)
	}
	return out
}

// =============================================================================
// 📮 Sink 实现
// =============================================================================

// collectSink 同步接口只需要状态消息，图像与失败由返回值给出
type collectSink struct {
	mu   sync.Mutex
	msgs []string
}

func (s *collectSink) Status(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, text)
	return nil
}

func (s *collectSink) Images(context.Context, []types.EncodedImage) error { return nil }
func (s *collectSink) Failure(context.Context, string) error              { return nil }

func (s *collectSink) statuses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.msgs...)
}

// sseSink 每条消息写成一个 SSE 事件
type sseSink struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	jobID   string
}

func (s *sseSink) Status(_ context.Context, text string) error {
	return s.event(api.StreamEvent{Type: api.EventStatus, JobID: s.jobID, Text: text})
}

func (s *sseSink) Images(_ context.Context, images []types.EncodedImage) error {
	return s.event(api.StreamEvent{Type: api.EventImages, JobID: s.jobID, Images: encodeImages(images)})
}

func (s *sseSink) Failure(_ context.Context, text string) error {
	return s.event(api.StreamEvent{Type: api.EventFailure, JobID: s.jobID, Text: text})
}

func (s *sseSink) event(ev api.StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseSink) done() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.w.Write([]byte("data: [DONE]\n\n"))
	s.flusher.Flush()
}

// wsSink 每条消息写成一个 JSON 文本帧；WebSocket 不支持并发写
type wsSink struct {
	mu    sync.Mutex
	conn  *websocket.Conn
	jobID string
}

func (s *wsSink) Status(ctx context.Context, text string) error {
	return s.write(ctx, api.StreamEvent{Type: api.EventStatus, JobID: s.jobID, Text: text})
}

func (s *wsSink) Images(ctx context.Context, images []types.EncodedImage) error {
	return s.write(ctx, api.StreamEvent{Type: api.EventImages, JobID: s.jobID, Images: encodeImages(images)})
}

func (s *wsSink) Failure(ctx context.Context, text string) error {
	return s.write(ctx, api.StreamEvent{Type: api.EventFailure, JobID: s.jobID, Text: text})
}

func (s *wsSink) write(ctx context.Context, ev api.StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return wsjson.Write(ctx, s.conn, ev)
}
