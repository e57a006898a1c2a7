package api

import (
	"time"

	"github.com/BaSui01/zigen/internal/settings"
)

// =============================================================================
// 图像生成类型
// =============================================================================

// GenerateRequest 表示一次图像生成请求。
// @Description 图像生成请求结构
type GenerateRequest struct {
	// 提示词（去除首尾空白后不能为空）
	Prompt string `json:"prompt" example:"a lighthouse at dusk, oil painting"`
}

// GenerateResponse 表示同步生成的结果。
// @Description 图像生成响应结构
type GenerateResponse struct {
	// 任务 ID
	JobID string `json:"job_id" example:"2b1f6c1e-4f0e-4c52-9a9e-0c1f7d3b9d11"`
	// base64 编码的图像，顺序与上游返回一致
	Images []string `json:"images"`
	// 任务过程中推送的状态消息（verbose 关闭时为空）
	Messages []string `json:"messages,omitempty"`
}

// 流式事件类型，SSE 的 event 字段与 WebSocket 消息的 type 字段共用
const (
	EventStatus  = "status"
	EventImages  = "images"
	EventFailure = "failure"
)

// StreamEvent 是 SSE data 与 WebSocket 消息的负载。
// @Description 流式事件结构
type StreamEvent struct {
	// 事件类型：status / images / failure
	Type string `json:"type" example:"status"`
	// 任务 ID
	JobID string `json:"job_id,omitempty"`
	// status / failure 的文本
	Text string `json:"text,omitempty"`
	// images 事件的图像
	Images []string `json:"images,omitempty"`
}

// =============================================================================
// 配置类型
// =============================================================================

// SettingsResponse 当前配置，同时给出结构化数据和可读清单。
// @Description 配置响应结构
type SettingsResponse struct {
	Settings settings.Settings `json:"settings"`
	// 管理员可读的配置清单
	Rendered string `json:"rendered"`
}

// SettingsPatch 部分更新，未出现的字段保持不变。
// Width 与 Height 可只给其一，另一个沿用当前值。
// @Description 配置部分更新请求
type SettingsPatch struct {
	ServiceURL     *string  `json:"service_url,omitempty" example:"http://127.0.0.1:8000/generate"`
	Width          *int     `json:"width,omitempty" example:"1024"`
	Height         *int     `json:"height,omitempty" example:"1024"`
	Steps          *int     `json:"steps,omitempty" example:"8"`
	Guidance       *float64 `json:"guidance,omitempty" example:"0"`
	Seed           *int64   `json:"seed,omitempty" example:"-1"`
	NegativePrompt *string  `json:"negative_prompt,omitempty"`
	Upscale        *bool    `json:"upscale,omitempty"`
	UpscaleScale   *float64 `json:"upscale_scale,omitempty" example:"2"`
	Verbose        *bool    `json:"verbose,omitempty"`
}

// Empty 没有任何字段需要修改
func (p SettingsPatch) Empty() bool {
	return len(p.Mutations()) == 0
}

// Mutations 把补丁转换为带校验的配置修改
func (p SettingsPatch) Mutations() []settings.Mutation {
	var muts []settings.Mutation

	if p.ServiceURL != nil {
		muts = append(muts, settings.SetServiceURL(*p.ServiceURL))
	}
	if p.Width != nil || p.Height != nil {
		width, height := p.Width, p.Height
		muts = append(muts, func(s *settings.Settings) error {
			w, h := s.Defaults.Width, s.Defaults.Height
			if width != nil {
				w = *width
			}
			if height != nil {
				h = *height
			}
			return settings.SetSize(w, h)(s)
		})
	}
	if p.Steps != nil {
		muts = append(muts, settings.SetSteps(*p.Steps))
	}
	if p.Guidance != nil {
		muts = append(muts, settings.SetGuidance(*p.Guidance))
	}
	if p.Seed != nil {
		muts = append(muts, settings.SetSeed(*p.Seed))
	}
	if p.NegativePrompt != nil {
		muts = append(muts, settings.SetNegativePrompt(*p.NegativePrompt))
	}
	if p.Upscale != nil || p.UpscaleScale != nil {
		enabled, scale := p.Upscale, p.UpscaleScale
		muts = append(muts, func(s *settings.Settings) error {
			e, f := s.Upscale.Enabled, s.Upscale.Scale
			if enabled != nil {
				e = *enabled
			}
			if scale != nil {
				f = *scale
			}
			return settings.SetUpscale(e, f)(s)
		})
	}
	if p.Verbose != nil {
		muts = append(muts, settings.SetVerbose(*p.Verbose))
	}
	return muts
}

// =============================================================================
// 任务历史类型
// =============================================================================

// JobView 历史任务条目，不包含内部错误详情
// @Description 历史任务
type JobView struct {
	ID         string    `json:"id"`
	Prompt     string    `json:"prompt"`
	Status     string    `json:"status"`
	ImageCount int       `json:"image_count"`
	Upscaled   bool      `json:"upscaled"`
	ErrorCode  string    `json:"error_code,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// JobsResponse 最近任务列表
type JobsResponse struct {
	Jobs []JobView `json:"jobs"`
}
