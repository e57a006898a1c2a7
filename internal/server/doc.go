// Copyright (c) zigen Authors.
// Licensed under the MIT License.

/*
包 server 提供 HTTP 服务器生命周期管理：非阻塞启动、优雅关闭与系统信号监听。

Manager 封装 net/http.Server。所有请求的 context 派生自 Manager 持有的根
context：优雅关闭超时后根 context 被取消，仍在等待上游生成服务的请求会
随之结束，随后强制关闭连接。API 服务与 metrics 服务各使用一个 Manager。
*/
package server
