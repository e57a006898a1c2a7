package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/zigen/image"
	"github.com/BaSui01/zigen/internal/pool"
	"github.com/BaSui01/zigen/internal/settings"
	"github.com/BaSui01/zigen/types"
)

const instrumentationName = "github.com/BaSui01/zigen/pipeline"

// =============================================================================
// 🔌 协作接口
// =============================================================================

// Sink 接收一个任务的状态消息与最终结果
type Sink interface {
	Status(ctx context.Context, text string) error
	Images(ctx context.Context, images []types.EncodedImage) error
	Failure(ctx context.Context, text string) error
}

// Generator 生成服务
type Generator interface {
	Generate(ctx context.Context, serviceURL string, payload *image.Payload) ([]types.EncodedImage, error)
}

// Upscaler 超分服务
type Upscaler interface {
	Upscale(ctx context.Context, serviceURL string, images []types.EncodedImage, scale float64) ([]types.EncodedImage, error)
}

// Metrics 任务指标
type Metrics interface {
	RecordJob(status string, duration time.Duration, images int)
	RecordStateTransition(fromState, toState string)
}

// Recorder 持久化已结束的任务
type Recorder interface {
	Record(ctx context.Context, s Summary) error
}

// Summary 任务结束时的摘要
type Summary struct {
	JobID     string
	Prompt    string
	State     State
	Images    int
	Upscaled  bool
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// Job status labels used for metrics.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRejected  = "rejected"
)

// =============================================================================
// 🎯 Pipeline
// =============================================================================

// Pipeline 闸门 → 构建请求 → 生成 → 可选超分
type Pipeline struct {
	gate      *pool.Gate
	generator Generator
	upscaler  Upscaler

	metrics      Metrics
	recorder     Recorder
	onTransition func(Transition)
	messages     Messages
	tracer       trace.Tracer
	logger       *zap.Logger
}

// Option 可选配置
type Option func(*Pipeline)

// WithMetrics 记录任务与状态转换指标
func WithMetrics(m Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithRecorder 任务结束后写入历史
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithOnTransition 注册状态转换钩子，钩子在任务 goroutine 中同步调用
func WithOnTransition(fn func(Transition)) Option {
	return func(p *Pipeline) { p.onTransition = fn }
}

// WithMessages 覆盖用户文案，空字段使用默认值
func WithMessages(m Messages) Option {
	return func(p *Pipeline) { p.messages = m.withDefaults() }
}

// WithTracer 指定 tracer，默认使用全局 TracerProvider
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// New 创建流水线
func New(gate *pool.Gate, generator Generator, upscaler Upscaler, logger *zap.Logger, opts ...Option) *Pipeline {
	if gate == nil {
		gate = pool.NewGate(pool.DefaultGateCapacity)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		gate:      gate,
		generator: generator,
		upscaler:  upscaler,
		messages:  DefaultMessages(),
		tracer:    otel.Tracer(instrumentationName),
		logger:    logger.With(zap.String("component", "pipeline")),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Gate 返回并发闸门
func (p *Pipeline) Gate() *pool.Gate { return p.gate }

// Messages 返回生效的用户文案
func (p *Pipeline) Messages() Messages { return p.messages }

// Run 执行一个任务。snap 为任务开始时的配置快照。
// 失败时 sink 只收到一条通用失败文案（空提示词除外），返回的错误保留原因。
func (p *Pipeline) Run(ctx context.Context, prompt string, snap settings.Settings, sink Sink) ([]types.EncodedImage, error) {
	if sink == nil {
		sink = DiscardSink{}
	}

	jobID, ok := types.JobID(ctx)
	if !ok {
		jobID = uuid.NewString()
		ctx = types.WithJobID(ctx, jobID)
	}

	ctx, span := p.tracer.Start(ctx, "zigen.job",
		trace.WithAttributes(
			attribute.String("job.id", jobID),
			attribute.Bool("job.upscale", snap.Upscale.Enabled),
			attribute.Int("job.prompt_length", len(prompt)),
		))
	defer span.End()

	j := &job{
		id:      jobID,
		prompt:  strings.TrimSpace(prompt),
		state:   StateQueued,
		started: time.Now(),
		p:       p,
		sink:    sink,
		logger:  p.logger.With(zap.String("job_id", jobID)),
	}

	images, err := j.run(ctx, snap)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(types.GetErrorCode(err)))
	} else {
		span.SetAttributes(attribute.Int("job.images", len(images)))
		span.SetStatus(codes.Ok, "")
	}

	p.finish(ctx, j, len(images), snap.Upscale.Enabled && err == nil, err)
	return images, err
}

func (p *Pipeline) finish(ctx context.Context, j *job, n int, upscaled bool, err error) {
	duration := time.Since(j.started)

	if p.metrics != nil {
		status := StatusCompleted
		switch {
		case types.HasCode(err, types.ErrEmptyPrompt):
			status = StatusRejected
		case err != nil:
			status = StatusFailed
		}
		p.metrics.RecordJob(status, duration, n)
	}

	if p.recorder != nil {
		s := Summary{
			JobID:     j.id,
			Prompt:    j.prompt,
			State:     j.current(),
			Images:    n,
			Upscaled:  upscaled,
			Err:       err,
			StartedAt: j.started,
			Duration:  duration,
		}
		if rerr := p.recorder.Record(context.WithoutCancel(ctx), s); rerr != nil {
			j.logger.Warn("failed to record job", zap.Error(rerr))
		}
	}
}

// =============================================================================
// 🧩 单个任务
// =============================================================================

type job struct {
	id      string
	prompt  string
	started time.Time
	p       *Pipeline
	sink    Sink
	logger  *zap.Logger

	mu    sync.Mutex
	state State
}

func (j *job) current() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// to 状态转换（带校验），非法转换只记录日志
func (j *job) to(next State) {
	j.mu.Lock()
	from := j.state
	if !CanTransition(from, next) {
		j.mu.Unlock()
		j.logger.Error("rejected state transition", zap.Error(ErrInvalidTransition{From: from, To: next}))
		return
	}
	j.state = next
	j.mu.Unlock()

	j.logger.Debug("state transition", zap.String("from", from.String()), zap.String("to", next.String()))
	if j.p.metrics != nil {
		j.p.metrics.RecordStateTransition(from.String(), next.String())
	}
	if j.p.onTransition != nil {
		j.p.onTransition(Transition{JobID: j.id, From: from, To: next, At: time.Now()})
	}
}

func (j *job) run(ctx context.Context, snap settings.Settings) ([]types.EncodedImage, error) {
	var (
		images   []types.EncodedImage
		admitted bool
	)
	err := j.p.gate.Do(ctx, func(ctx context.Context) error {
		admitted = true
		var err error
		images, err = j.execute(ctx, snap)
		return err
	})
	if err != nil && !admitted {
		// 排队期间被取消
		return nil, j.fail(ctx, err)
	}
	return images, err
}

// execute 在持有闸门槽位时运行任务主体
func (j *job) execute(ctx context.Context, snap settings.Settings) ([]types.EncodedImage, error) {
	j.to(StateAdmitted)

	if j.prompt == "" {
		j.to(StateFailed)
		j.deliver("failure", j.sink.Failure(ctx, j.p.messages.EmptyPrompt))
		return nil, types.NewError(types.ErrEmptyPrompt, "a prompt is required")
	}

	if snap.Verbose {
		j.deliver("status", j.sink.Status(ctx, j.p.messages.Working))
	}

	j.to(StateBuilding)
	payload, err := image.BuildPayload(j.prompt, snap.Defaults)
	if err != nil {
		return nil, j.fail(ctx, err)
	}

	j.to(StateGenerating)
	images, err := j.p.generator.Generate(ctx, snap.ServiceURL, payload)
	if err != nil {
		return nil, j.fail(ctx, err)
	}

	if snap.Upscale.Enabled {
		j.to(StateUpscaling)
		images, err = j.p.upscaler.Upscale(ctx, snap.ServiceURL, images, snap.Upscale.Scale)
		if err != nil {
			return nil, j.fail(ctx, err)
		}
	}

	j.to(StateCompleted)
	j.deliver("images", j.sink.Images(ctx, images))
	if snap.Verbose {
		j.deliver("status", j.sink.Status(ctx, j.p.messages.Done))
	}

	j.logger.Info("job completed",
		zap.Int("images", len(images)),
		zap.Bool("upscaled", snap.Upscale.Enabled),
		zap.Duration("elapsed", time.Since(j.started)),
	)
	return images, nil
}

// fail 记录完整原因，用户只看到通用失败文案
func (j *job) fail(ctx context.Context, err error) error {
	from := j.current()
	j.to(StateFailed)

	fields := []zap.Field{
		zap.String("state", from.String()),
		zap.String("code", string(types.GetErrorCode(err))),
		zap.Error(err),
	}
	if e, ok := types.AsError(err); ok && e.Code == types.ErrUpstreamError {
		fields = append(fields, zap.Int("upstream_status", e.HTTPStatus), zap.String("upstream_body", e.Body))
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		j.logger.Warn("job aborted", fields...)
	} else {
		j.logger.Error("job failed", fields...)
	}

	j.deliver("failure", j.sink.Failure(ctx, j.p.messages.Failure))
	return err
}

func (j *job) deliver(kind string, err error) {
	if err != nil {
		j.logger.Warn("sink delivery failed", zap.String("kind", kind), zap.Error(err))
	}
}

// DiscardSink 丢弃所有消息
type DiscardSink struct{}

func (DiscardSink) Status(context.Context, string) error                { return nil }
func (DiscardSink) Images(context.Context, []types.EncodedImage) error { return nil }
func (DiscardSink) Failure(context.Context, string) error               { return nil }
