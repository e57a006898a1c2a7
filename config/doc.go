// Copyright (c) zigen Authors.
// Licensed under the MIT License.

// Package config 提供 zigen 的配置加载：默认值 → YAML 文件 → ZIGEN_ 前缀环境变量，
// 以及配置文件变更后的重新加载。
package config
