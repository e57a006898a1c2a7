// Copyright (c) zigen Authors.
// Licensed under the MIT License.

/*
包 pipeline 编排一次图像生成任务：并发闸门 → 构建请求 → 生成 → 可选超分。

# 状态机

	queued → admitted → building → generating → (upscaling) → completed
	                 任意非终态 → failed

空提示词在进入 building 之前被拦截，用户收到明确的提示文案；其余失败
统一记录完整原因（zap），用户只收到一条通用失败文案，Run 返回的错误
保留原始 *types.Error 供程序化调用方区分。

# 协作接口

  - Sink：接收状态消息、最终图像或失败文案（HTTP、SSE、WebSocket、CLI 各自实现）。
  - Generator / Upscaler：由 image 包实现。
  - Metrics / Recorder：可选，分别对接 Prometheus 指标与任务历史数据库。

每个任务拥有一个 job id（优先取 context 中已有的），并创建一个
OpenTelemetry span "zigen.job"。
*/
package pipeline
