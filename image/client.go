package image

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/zigen/internal/pool"
	"github.com/BaSui01/zigen/internal/tlsutil"
	"github.com/BaSui01/zigen/types"
)

// Stage labels for upstream calls.
const (
	StageGenerate = "generate"
	StageUpscale  = "upscale"
)

// Call outcomes reported to a CallObserver.
const (
	OutcomeOK            = "ok"
	OutcomeUpstreamError = "upstream_error"
	OutcomeNetworkError  = "network_error"
)

// DefaultTimeout is the client-wide request timeout.
const DefaultTimeout = 120 * time.Second

// CallObserver receives one event per upstream HTTP call.
type CallObserver interface {
	ObserveUpstreamCall(stage, outcome string, duration time.Duration)
}

// ClientConfig configures the shared upstream client.
type ClientConfig struct {
	// Timeout bounds every request end to end; expiry surfaces as a network error.
	Timeout   time.Duration
	Transport tlsutil.TransportConfig
}

// Response is a fully read 200 answer from an upstream service.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// IsJSON reports whether the upstream declared a JSON body.
func (r *Response) IsJSON() bool {
	mediaType, _, err := mime.ParseMediaType(r.ContentType)
	if err != nil {
		return strings.Contains(r.ContentType, "application/json")
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// Client is a lazily created, shared keep-alive HTTP client.
// It is safe for concurrent use; Close may be followed by another Ensure.
type Client struct {
	cfg      ClientConfig
	logger   *zap.Logger
	observer CallObserver

	mu      sync.Mutex
	current atomic.Pointer[http.Client]
	builds  atomic.Int64
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithCallObserver reports every upstream call to o.
func WithCallObserver(o CallObserver) ClientOption {
	return func(c *Client) { c.observer = o }
}

// NewClient creates a Client. No connection is made until first use.
func NewClient(cfg ClientConfig, logger *zap.Logger, opts ...ClientOption) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "upstream_client")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ensure returns the shared *http.Client, creating it on first use.
func (c *Client) Ensure() *http.Client {
	if hc := c.current.Load(); hc != nil {
		return hc
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if hc := c.current.Load(); hc != nil {
		return hc
	}

	tr, err := tlsutil.SecureTransport(c.cfg.Transport)
	if err != nil {
		c.logger.Warn("http2 not enabled on upstream transport", zap.Error(err))
	}
	hc := &http.Client{Timeout: c.cfg.Timeout, Transport: tr}
	c.current.Store(hc)
	c.builds.Add(1)
	c.logger.Debug("upstream client created", zap.Duration("timeout", c.cfg.Timeout))
	return hc
}

// Close releases idle connections and drops the client. It is idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	hc := c.current.Swap(nil)
	c.mu.Unlock()

	if hc != nil {
		hc.CloseIdleConnections()
		c.logger.Debug("upstream client closed")
	}
}

// Timeout returns the configured client-wide timeout.
func (c *Client) Timeout() time.Duration { return c.cfg.Timeout }

// PostJSON sends body as JSON to url and reads the whole answer.
// A non-200 status yields an UPSTREAM_ERROR carrying status and body text;
// transport failures and timeouts yield NETWORK_ERROR.
func (c *Client) PostJSON(ctx context.Context, stage, url string, body any) (*Response, error) {
	buf := pool.ByteBufferPool.Get()
	defer pool.ByteBufferPool.Put(buf)

	if err := json.NewEncoder(buf).Encode(body); err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to encode request body").
			WithCause(err).WithStage(stage)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, types.NewError(types.ErrNetwork, "invalid upstream request").
			WithCause(err).WithStage(stage)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.Ensure().Do(req)
	if err != nil {
		c.observe(stage, OutcomeNetworkError, start)
		return nil, types.NewError(types.ErrNetwork, "upstream request failed").
			WithCause(err).WithStage(stage)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe(stage, OutcomeNetworkError, start)
		return nil, types.NewError(types.ErrNetwork, "failed to read upstream response").
			WithCause(err).WithStage(stage)
	}

	if resp.StatusCode != http.StatusOK {
		c.observe(stage, OutcomeUpstreamError, start)
		c.logger.Debug("upstream returned non-200",
			zap.String("stage", stage),
			zap.Int("status", resp.StatusCode),
			zap.Int("body_bytes", len(data)))
		return nil, types.NewUpstreamError(resp.StatusCode, string(data)).WithStage(stage)
	}

	c.observe(stage, OutcomeOK, start)
	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

func (c *Client) observe(stage, outcome string, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveUpstreamCall(stage, outcome, time.Since(start))
	}
}
