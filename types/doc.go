// Copyright (c) zigen Authors.
// Licensed under the MIT License.

/*
Package types 提供 zigen 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 image、pipeline、
internal/settings、api 等上层模块提供统一的类型契约。

# 核心类型

  - EncodedImage      — 无 data-URI 前缀的 base64 图像数据，永不为空
  - GenerationParams  — 生成请求的默认参数（steps / guidance / size / seed）
  - UpscaleParams     — 可选的放大阶段参数（enabled + scale）
  - Error / ErrorCode — 结构化错误体系，上游错误携带 HTTP 状态码与响应体

# 主要能力

  - Context 传播：WithTraceID / WithRequestID / WithJobID / WithSubject
  - 错误工具链：GetErrorCode / HasCode / AsError
  - 参数校验：GenerationParams.Validate / UpscaleParams.Validate
*/
package types
