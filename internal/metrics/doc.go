// Copyright (c) zigen Authors.
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖 HTTP、
生成作业、上游调用、准入门、配置与数据库六个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制（可通过 NewCollectorWithRegistry 指定 registry）。
所有指标按 namespace 隔离。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、请求/响应体大小，
    状态码归类为 2xx/3xx/4xx/5xx。
  - 作业指标：按 status 统计的作业数与耗时、交付图像数、
    流水线状态转换计数（from_state/to_state）。
  - 上游指标：按 stage（generate/upscale）与 outcome 统计调用次数与耗时，
    Collector 直接实现 image.CallObserver。
  - 准入门指标：容量、在途与排队数量（GaugeFunc）。
  - 配置与数据库指标：配置修改结果计数、连接池 Gauge、查询耗时。
*/
package metrics
