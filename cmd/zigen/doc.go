// Copyright (c) zigen Authors.
// Licensed under the MIT License.

/*
Package main 提供 zigen 服务端与命令行入口。

# 概述

cmd/zigen 把提示词转发给 ZIGen 文生图服务，可选地对结果做超分，
并通过 JSON、SSE 或 WebSocket 把任务进度推送给调用方。
同一个二进制也可以在终端里执行一次性生成。

# 核心类型

  - Server      — 主服务器，管理 API 与 Metrics 双端口及优雅关闭
  - runtime     — serve 与 gen 共用的设置存储、任务历史与流水线
  - Middleware  — HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve、gen（写出图像文件，失败时退出码为 1）、health、version
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、
    OTelTracing、MetricsMiddleware、RateLimiter（基于 IP）、APIKeyAuth
  - 配置接口：配置了 jwt.secret 或 jwt.public_key 时需要 Bearer token
  - 配置热更新：Watcher 轮询配置文件，变更后调整日志级别
  - 优雅关闭：信号监听 → 停止监听 → 关闭 HTTP → 关闭 Metrics → 释放连接 → 刷新遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
