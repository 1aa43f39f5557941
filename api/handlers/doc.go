// Copyright (c) VeriFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 VeriFlow HTTP API 的请求处理器实现。

# 概述

handlers 包实现了 VeriFlow 所有 HTTP 端点的请求处理逻辑，
包括内容核查提交、历史决策查询、代理与健康监控、告警处置
以及统一的响应/错误处理。所有 Handler 均遵循标准 net/http
接口，路由模式使用 Go 1.22 的方法+路径语法（含 {id} 路径参数）。

# 核心类型

  - VerifyHandler   — 内容核查提交与历史决策查询
  - AgentHandler    — 代理列表、单代理/全体健康、系统健康摘要
  - AlertHandler    — 健康告警列表与手动解决
  - EventsHandler   — WebSocket 编排事件流（/api/v1/events/ws）
  - ProbeHandler    — 服务探针（/healthz, /ready, /version）
  - Response        — 统一 JSON 响应结构（success + data + error + timestamp + request_id）
  - ErrorInfo       — 结构化错误信息，含 code、message、agent_id、retryable 标记
  - ResponseWriter  — 包装 http.ResponseWriter 以捕获状态码
  - HealthCheck     — 可插拔就绪检查接口（历史库、缓存等）

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteJSON 辅助函数
  - 请求验证：DecodeJSONBody（1 MB 限制 + 严格模式）、ValidateContentType
  - ErrorCode → HTTP 状态码自动映射（4xx/5xx）
  - X-Request-ID 透传：请求头回显到响应体与响应头
  - 事件推送：EventsHandler 将事件总线桥接为 WebSocket 文本帧
  - 可扩展就绪检查：RegisterCheck 注册自定义 HealthCheck 实现
*/
package handlers
