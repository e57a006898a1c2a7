// Copyright (c) zigen Authors.
// Licensed under the MIT License.

/*
包 database 提供基于 GORM 的任务历史存储与连接池管理。

# 概述

数据库是可选组件：配置了 driver 时，每个完成或失败的生成任务都会
通过 JobRepository 写入 zigen_jobs 表，供 /api/v1/jobs 查询。
支持 postgres、mysql 与 sqlite（纯 Go 实现，无需 cgo）。

# 核心类型

  - Config：驱动、DSN、历史保留条数与连接池配置。
  - PoolManager：持有 GORM DB 与底层 sql.DB，负责连接池参数、
    后台健康检查（可上报连接数指标）与事务。
  - JobRecord / JobRepository：任务记录及其 Save、Get、Recent、Prune，
    JobRepository 同时实现 pipeline.Recorder。
*/
package database
