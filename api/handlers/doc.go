// Copyright (c) zigen Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 zigen HTTP API 的请求处理器实现。

# 核心类型

  - ImageHandler     — 图像生成：同步 JSON、SSE 流式、WebSocket
  - SettingsHandler  — 运行时配置查看与部分更新
  - JobHandler       — 任务历史查询
  - HealthHandler    — /health, /healthz, /ready, /version
  - Response         — 统一 JSON 响应结构（success + data + error + timestamp）
  - ResponseWriter   — 捕获状态码与字节数，透传 Flush / Hijack

# 错误约定

生成失败时客户端只收到通用失败文案（HTTP 502 或 failure 事件），
具体原因由流水线写入日志。空提示词返回 400 与提醒文案。
*/
package handlers
