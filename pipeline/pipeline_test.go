package pipeline

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/BaSui01/zigen/image"
	"github.com/BaSui01/zigen/internal/pool"
	"github.com/BaSui01/zigen/internal/settings"
	"github.com/BaSui01/zigen/testutil"
	"github.com/BaSui01/zigen/types"
)

// =============================================================================
// 🧪 测试替身
// =============================================================================

type metricsRecorder struct {
	mu          sync.Mutex
	jobs        []string
	images      []int
	transitions []string
}

func (m *metricsRecorder) RecordJob(status string, _ time.Duration, images int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, status)
	m.images = append(m.images, images)
}

func (m *metricsRecorder) RecordStateTransition(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, from+"->"+to)
}

func (m *metricsRecorder) statuses() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.jobs...)
}

type summaryRecorder struct {
	mu   sync.Mutex
	got  []Summary
	fail error
}

func (r *summaryRecorder) Record(_ context.Context, s Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, s)
	return r.fail
}

func (r *summaryRecorder) summaries() []Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Summary(nil), r.got...)
}

type transitionLog struct {
	mu  sync.Mutex
	got []Transition
}

func (l *transitionLog) hook(t Transition) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.got = append(l.got, t)
}

func (l *transitionLog) states(jobID string) []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []State
	for _, t := range l.got {
		if jobID == "" || t.JobID == jobID {
			if len(out) == 0 {
				out = append(out, t.From)
			}
			out = append(out, t.To)
		}
	}
	return out
}

type generatorFunc func(ctx context.Context, url string, p *image.Payload) ([]types.EncodedImage, error)

func (f generatorFunc) Generate(ctx context.Context, url string, p *image.Payload) ([]types.EncodedImage, error) {
	return f(ctx, url, p)
}

type failingSink struct{ testutil.RecordingSink }

func (s *failingSink) Images(ctx context.Context, images []types.EncodedImage) error {
	_ = s.RecordingSink.Images(ctx, images)
	return errors.New("connection closed")
}

type harness struct {
	upstream    *testutil.FakeUpstream
	pipeline    *Pipeline
	sink        *testutil.RecordingSink
	metrics     *metricsRecorder
	recorder    *summaryRecorder
	transitions *transitionLog
	logs        *observer.ObservedLogs
	snap        settings.Settings
}

func newHarness(t *testing.T, capacity int) *harness {
	t.Helper()

	up := testutil.NewFakeUpstream(t)
	client := image.NewClient(image.ClientConfig{Timeout: 5 * time.Second}, zap.NewNop())
	t.Cleanup(client.Close)

	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	h := &harness{
		upstream:    up,
		sink:        testutil.NewRecordingSink(),
		metrics:     &metricsRecorder{},
		recorder:    &summaryRecorder{},
		transitions: &transitionLog{},
		logs:        logs,
	}
	h.pipeline = New(pool.NewGate(capacity),
		image.NewGenerator(client, logger),
		image.NewUpscaler(client, 1, logger),
		logger,
		WithMetrics(h.metrics),
		WithRecorder(h.recorder),
		WithOnTransition(h.transitions.hook),
	)

	h.snap = settings.DefaultSettings()
	h.snap.ServiceURL = up.GenerateURL()
	return h
}

// =============================================================================
// 🎯 Run
// =============================================================================

func TestRun_Success(t *testing.T) {
	h := newHarness(t, 1)
	ctx := types.WithJobID(testutil.TestContext(t), "job-42")

	images, err := h.pipeline.Run(ctx, "  a lighthouse at dusk ", h.snap, h.sink)
	require.NoError(t, err)
	testutil.AssertImagesEqual(t, []string{"AAAA"}, images)

	msgs := DefaultMessages()
	assert.Equal(t, []string{msgs.Working, msgs.Done}, h.sink.Statuses())
	require.Len(t, h.sink.Deliveries(), 1)
	testutil.AssertImagesEqual(t, []string{"AAAA"}, h.sink.Deliveries()[0])
	assert.Empty(t, h.sink.Failures())

	assert.Equal(t,
		[]State{StateQueued, StateAdmitted, StateBuilding, StateGenerating, StateCompleted},
		h.transitions.states("job-42"))

	reqs := h.upstream.Requests("/generate")
	require.Len(t, reqs, 1)
	assert.Equal(t, "a lighthouse at dusk", reqs[0].Body["prompt"])
	assert.NotContains(t, reqs[0].Body, "seed")
	assert.Empty(t, h.upstream.Requests("/upscale"))

	assert.Equal(t, []string{StatusCompleted}, h.metrics.statuses())
	sums := h.recorder.summaries()
	require.Len(t, sums, 1)
	assert.Equal(t, "job-42", sums[0].JobID)
	assert.Equal(t, StateCompleted, sums[0].State)
	assert.Equal(t, 1, sums[0].Images)
	assert.False(t, sums[0].Upscaled)
	assert.NoError(t, sums[0].Err)

	assert.Zero(t, h.pipeline.Gate().Stats().InFlight)
}

func TestRun_VerboseOff(t *testing.T) {
	h := newHarness(t, 1)
	h.snap.Verbose = false

	_, err := h.pipeline.Run(testutil.TestContext(t), "cat", h.snap, h.sink)
	require.NoError(t, err)
	assert.Empty(t, h.sink.Statuses())
	assert.Len(t, h.sink.Deliveries(), 1)
}

func TestRun_UpscaleEnabled(t *testing.T) {
	h := newHarness(t, 1)
	h.upstream.OnGenerate(testutil.JSONResponse(http.StatusOK, map[string]any{"images": []string{"A1", "B2"}}))
	h.snap.Upscale = types.UpscaleParams{Enabled: true, Scale: 3}

	images, err := h.pipeline.Run(testutil.TestContext(t), "cat", h.snap, h.sink)
	require.NoError(t, err)
	testutil.AssertImagesEqual(t, []string{"up-A1", "up-B2"}, images)

	reqs := h.upstream.Requests("/upscale")
	require.Len(t, reqs, 2)
	assert.Equal(t, 3.0, reqs[0].Body["scale"])

	states := h.transitions.states("")
	assert.Contains(t, states, StateUpscaling)
	assert.True(t, h.recorder.summaries()[0].Upscaled)
}

func TestRun_UpscaleDisabledReturnsGenerationOutput(t *testing.T) {
	h := newHarness(t, 1)
	h.upstream.OnGenerate(testutil.JSONResponse(http.StatusOK, map[string]any{"images": []string{"data:image/png;base64,QQ==", "Qg=="}}))
	h.snap.Upscale = types.UpscaleParams{Enabled: false, Scale: 4}

	images, err := h.pipeline.Run(testutil.TestContext(t), "cat", h.snap, h.sink)
	require.NoError(t, err)
	testutil.AssertImagesEqual(t, []string{"QQ==", "Qg=="}, images)
	assert.Empty(t, h.upstream.Requests("/upscale"))
	assert.NotContains(t, h.transitions.states(""), StateUpscaling)
}

func TestRun_EmptyPrompt(t *testing.T) {
	h := newHarness(t, 1)

	images, err := h.pipeline.Run(testutil.TestContext(t), "   \t", h.snap, h.sink)
	assert.Nil(t, images)
	testutil.AssertErrorCode(t, err, types.ErrEmptyPrompt)

	assert.Equal(t, []string{DefaultMessages().EmptyPrompt}, h.sink.Failures())
	assert.Empty(t, h.sink.Statuses(), "no working status before the prompt check")
	assert.Empty(t, h.upstream.Requests("/generate"))
	assert.Equal(t, []State{StateQueued, StateAdmitted, StateFailed}, h.transitions.states(""))
	assert.Equal(t, []string{StatusRejected}, h.metrics.statuses())
	assert.Zero(t, h.pipeline.Gate().Stats().InFlight)
}

func TestRun_UpstreamFailureIsGeneric(t *testing.T) {
	h := newHarness(t, 1)
	h.upstream.OnGenerate(testutil.RawResponse(http.StatusInternalServerError, "text/plain", []byte("boom")))

	images, err := h.pipeline.Run(testutil.TestContext(t), "cat", h.snap, h.sink)
	assert.Nil(t, images)
	testutil.AssertErrorCode(t, err, types.ErrUpstreamError)

	failures := h.sink.Failures()
	require.Equal(t, []string{DefaultMessages().Failure}, failures)
	assert.NotContains(t, failures[0], "boom")
	assert.Empty(t, h.sink.Deliveries())
	assert.Equal(t, []string{DefaultMessages().Working}, h.sink.Statuses())

	logged := h.logs.FilterMessage("job failed").All()
	require.Len(t, logged, 1)
	fields := logged[0].ContextMap()
	assert.Equal(t, "boom", fields["upstream_body"])
	assert.Equal(t, int64(500), fields["upstream_status"])
	assert.Equal(t, "generating", fields["state"])

	assert.Equal(t, []string{StatusFailed}, h.metrics.statuses())
	assert.Equal(t, StateFailed, h.recorder.summaries()[0].State)
}

func TestRun_PartialUpscaleFailureFailsBatch(t *testing.T) {
	h := newHarness(t, 1)
	h.upstream.OnGenerate(testutil.JSONResponse(http.StatusOK, map[string]any{"images": []string{"A", "B", "C"}}))

	var mu sync.Mutex
	calls := 0
	echo := testutil.EchoUpscale("up-")
	h.upstream.OnUpscale(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 2 {
			http.Error(w, "out of memory", http.StatusInternalServerError)
			return
		}
		echo(w, r)
	})
	h.snap.Upscale = types.UpscaleParams{Enabled: true, Scale: 2}

	images, err := h.pipeline.Run(testutil.TestContext(t), "cat", h.snap, h.sink)
	assert.Nil(t, images)
	testutil.AssertErrorCode(t, err, types.ErrUpstreamError)
	assert.Empty(t, h.sink.Deliveries(), "no partial upscaled list")
	assert.Equal(t, []string{DefaultMessages().Failure}, h.sink.Failures())
	assert.Len(t, h.upstream.Requests("/upscale"), 2, "sequential upscale stops at the first failure")
}

func TestRun_SinkErrorDoesNotFailJob(t *testing.T) {
	h := newHarness(t, 1)
	sink := &failingSink{}

	images, err := h.pipeline.Run(testutil.TestContext(t), "cat", h.snap, sink)
	require.NoError(t, err)
	assert.Len(t, images, 1)
	assert.Len(t, sink.Deliveries(), 1)
	assert.Equal(t, 1, h.logs.FilterMessage("sink delivery failed").Len())
}

func TestRun_RecorderErrorIsLogged(t *testing.T) {
	h := newHarness(t, 1)
	h.recorder.fail = errors.New("disk full")

	_, err := h.pipeline.Run(testutil.TestContext(t), "cat", h.snap, h.sink)
	require.NoError(t, err)
	assert.Equal(t, 1, h.logs.FilterMessage("failed to record job").Len())
}

func TestRun_NilSink(t *testing.T) {
	h := newHarness(t, 1)
	images, err := h.pipeline.Run(testutil.TestContext(t), "cat", h.snap, nil)
	require.NoError(t, err)
	assert.Len(t, images, 1)
}

func TestRun_AssignsJobID(t *testing.T) {
	h := newHarness(t, 2)

	_, err := h.pipeline.Run(testutil.TestContext(t), "cat", h.snap, h.sink)
	require.NoError(t, err)
	_, err = h.pipeline.Run(testutil.TestContext(t), "dog", h.snap, h.sink)
	require.NoError(t, err)

	sums := h.recorder.summaries()
	require.Len(t, sums, 2)
	assert.NotEmpty(t, sums[0].JobID)
	assert.NotEqual(t, sums[0].JobID, sums[1].JobID)
}

func TestRun_CancelledWhileQueued(t *testing.T) {
	h := newHarness(t, 1)
	require.NoError(t, h.pipeline.Gate().Acquire(context.Background()))
	defer h.pipeline.Gate().Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := h.pipeline.Run(ctx, "cat", h.snap, h.sink)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []State{StateQueued, StateFailed}, h.transitions.states(""))
	assert.Equal(t, []string{DefaultMessages().Failure}, h.sink.Failures())
	assert.Empty(t, h.upstream.Requests("/generate"))
}

func TestRun_FailedJobReleasesSlot(t *testing.T) {
	h := newHarness(t, 1)
	h.upstream.OnGenerate(testutil.RawResponse(http.StatusInternalServerError, "text/plain", []byte("boom")))

	_, err := h.pipeline.Run(testutil.TestContext(t), "cat", h.snap, h.sink)
	require.Error(t, err)
	assert.Zero(t, h.pipeline.Gate().Stats().InFlight)

	h.upstream.OnGenerate(testutil.JSONResponse(http.StatusOK, map[string]any{"images": []string{"QQ=="}}))
	_, err = h.pipeline.Run(testutil.TestContext(t), "cat", h.snap, h.sink)
	require.NoError(t, err)
	assert.Equal(t, int64(2), h.pipeline.Gate().Stats().Admitted)
}

func TestRun_GeneratorPanicReleasesSlot(t *testing.T) {
	gate := pool.NewGate(1)
	p := New(gate, generatorFunc(func(context.Context, string, *image.Payload) ([]types.EncodedImage, error) {
		panic("boom")
	}), nil, zap.NewNop())

	snap := settings.DefaultSettings()
	snap.Upscale.Enabled = false
	assert.Panics(t, func() {
		_, _ = p.Run(context.Background(), "cat", snap, nil)
	})
	assert.Zero(t, gate.Stats().InFlight)
}

// With capacity 1 the second job only starts generating after the first finished.
func TestRun_CapacityOneSerializesJobs(t *testing.T) {
	var (
		mu     sync.Mutex
		events []string
	)
	record := func(e string) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	}

	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	gen := generatorFunc(func(ctx context.Context, _ string, p *image.Payload) ([]types.EncodedImage, error) {
		record("start:" + p.Prompt)
		if p.Prompt == "first" {
			close(firstStarted)
			<-releaseFirst
		}
		record("end:" + p.Prompt)
		return []types.EncodedImage{types.EncodedImage(p.Prompt)}, nil
	})

	gate := pool.NewGate(1)
	p := New(gate, gen, nil, zap.NewNop())
	snap := settings.DefaultSettings()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := p.Run(context.Background(), "first", snap, nil)
		assert.NoError(t, err)
	}()
	<-firstStarted

	go func() {
		defer wg.Done()
		_, err := p.Run(context.Background(), "second", snap, nil)
		assert.NoError(t, err)
	}()

	require.Eventually(t, func() bool { return gate.Stats().Waiting == 1 }, 2*time.Second, time.Millisecond)
	close(releaseFirst)
	wg.Wait()

	assert.Equal(t, []string{"start:first", "end:first", "start:second", "end:second"}, events)
	assert.Zero(t, gate.Stats().InFlight)
}

func TestRun_ConcurrentJobsRespectCapacity(t *testing.T) {
	h := newHarness(t, 3)

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.pipeline.Run(context.Background(), "cat", h.snap, h.sink)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, h.upstream.Requests("/generate"), 12)
	assert.Len(t, h.sink.Deliveries(), 12)
	assert.Equal(t, int64(12), h.pipeline.Gate().Stats().Admitted)
	assert.Zero(t, h.pipeline.Gate().Stats().InFlight)
}

func TestWithMessages_FillsDefaults(t *testing.T) {
	p := New(nil, nil, nil, nil, WithMessages(Messages{Failure: "nope"}))
	m := p.Messages()
	assert.Equal(t, "nope", m.Failure)
	assert.Equal(t, DefaultMessages().Working, m.Working)
	assert.Equal(t, pool.DefaultGateCapacity, p.Gate().Capacity())
}
