// Copyright (c) VeriFlow Authors.
// Licensed under the MIT License.

/*
包 server 管理 API 与 Metrics 监听器的生命周期。

# 概述

Manager 把 net/http.Server 的启动、关闭与错误传播收拢为一个
一次性对象：Start/StartTLS 非阻塞启动，Shutdown 幂等排空，
WaitForShutdown 阻塞等待 SIGINT/SIGTERM 或服务异常退出。
serve 命令用它分别承载 API 端口与 Prometheus 指标端口。

# 行为约定

  - 启动仅一次：重复 Start 返回 already started；关闭后的实例
    拒绝再启动。
  - 连接上限：MaxConnections > 0 时以 netutil.LimitListener 包装
    监听器，超限连接在 Accept 前排队而不是被拒绝。
  - TLS 基线：NewManager 统一安装 tlsutil.ServerTLSConfig()，
    StartTLS 在该基线上挂载证书对。
  - 异步错误：serve goroutine 的非正常退出写入 Errors() 通道
    （容量 1，溢出丢弃），WaitForShutdown 同时监听该通道。
  - 端口探测：Addr() 在启动后返回监听器实际地址，":0" 配置下
    可取得内核分配的端口，测试依赖此行为。
*/
package server
