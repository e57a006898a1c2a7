package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// RecordedRequest 是假上游收到的一次请求
type RecordedRequest struct {
	Path string
	Body map[string]any
}

// FakeUpstream 是可编排的 ZIGen 假服务，提供 /generate 与 /upscale 两个端点
type FakeUpstream struct {
	Server *httptest.Server

	mu       sync.Mutex
	generate http.HandlerFunc
	upscale  http.HandlerFunc
	requests []RecordedRequest
}

// NewFakeUpstream 启动假上游并在测试结束时关闭。
// 默认 /generate 返回 {"images":["AAAA"]}，/upscale 返回 {"image":"up-"+输入}。
func NewFakeUpstream(t testing.TB) *FakeUpstream {
	t.Helper()

	f := &FakeUpstream{
		generate: JSONResponse(http.StatusOK, map[string]any{"images": []string{"AAAA"}}),
		upscale:  EchoUpscale("up-"),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/generate", f.serve(func() http.HandlerFunc { return f.generate }))
	mux.HandleFunc("/upscale", f.serve(func() http.HandlerFunc { return f.upscale }))
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// GenerateURL 返回生成端点地址
func (f *FakeUpstream) GenerateURL() string { return f.Server.URL + "/generate" }

// OnGenerate 替换 /generate 的处理函数
func (f *FakeUpstream) OnGenerate(h http.HandlerFunc) {
	f.mu.Lock()
	f.generate = h
	f.mu.Unlock()
}

// OnUpscale 替换 /upscale 的处理函数
func (f *FakeUpstream) OnUpscale(h http.HandlerFunc) {
	f.mu.Lock()
	f.upscale = h
	f.mu.Unlock()
}

// Requests 返回指定路径上收到的请求（按到达顺序）
func (f *FakeUpstream) Requests(path string) []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []RecordedRequest
	for _, r := range f.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (f *FakeUpstream) serve(current func() http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)

		f.mu.Lock()
		f.requests = append(f.requests, RecordedRequest{Path: r.URL.Path, Body: body})
		h := current()
		f.mu.Unlock()

		r.Body = io.NopCloser(bytes.NewReader(raw))
		h(w, r)
	}
}

// JSONResponse 返回固定 JSON 响应
func JSONResponse(status int, body any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

// RawResponse 返回固定原始响应
func RawResponse(status int, contentType string, body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}
}

// EchoUpscale 把请求中的 image 加上前缀后以 {"image": ...} 返回
func EchoUpscale(prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Image string  `json:"image"`
			Scale float64 `json:"scale"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"image": prefix + req.Image})
	}
}
