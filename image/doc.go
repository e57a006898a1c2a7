// Copyright (c) zigen Authors.
// Licensed under the MIT License.

/*
包 image 实现与外部 ZIGen 图像服务之间的 HTTP 协议：请求体构建、
响应形态归一化，以及可选的放大（upscale）二阶段调用。

# 概述

上游服务的响应形态并不统一：可能是带 image / images / data 字段的
JSON，也可能直接返回二进制图片。本包把这些形态统一归一化为
types.EncodedImage（无 data-URI 前缀的 base64 字符串）。

# 核心组件

  - StripDataPrefix / Normalize：去除 data:image 前缀，按 image → data →
    base64 的固定顺序从对象中取出图像数据。
  - BuildPayload：将 prompt 与存储的默认参数合并为请求体；空
    negative_prompt 与负数 seed 不会出现在请求中。
  - Client：懒加载、可复用的 keep-alive HTTP 客户端（支持 HTTP/2），
    Close 后再次 Ensure 会重新创建。
  - Generator：调用生成接口，单数 image 字段优先于 images / data。
  - Upscaler：由生成地址推导放大地址（/generate → /upscale），逐图调用，
    可配置有界并行度，首个失败即终止整批。

# 错误

所有失败均以 *types.Error 返回：非 200 为 UPSTREAM_ERROR（携带状态码与
响应体），连接失败与超时为 NETWORK_ERROR，响应契约违例为
MISSING_IMAGE_FIELD / INVALID_RESPONSE_SHAPE / EMPTY_IMAGE_DATA。
*/
package image
