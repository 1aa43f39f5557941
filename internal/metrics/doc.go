// Copyright (c) VeriFlow Authors.
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的全链路指标采集能力，覆盖
HTTP、工作流、Agent、决策、缓存与告警六大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
支持多维度 label 分组，便于 Grafana 等工具进行可视化与告警。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 向量指标，按业务域分组管理。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、请求/响应体大小，
    按 method/path/status 分组，状态码归类为 2xx/3xx/4xx/5xx。
  - 工作流指标：按终态分组的执行总数与耗时、每次执行选用的
    Agent 数量、在途工作流 Gauge。
  - Agent 指标：调用总数（success/failure）、分析延迟直方图、
    综合健康分 Gauge，按 agent_id 分组。
  - 决策指标：按 verdict/certainty 分组的核验总数、端到端
    管线耗时直方图。
  - 缓存指标：决策缓存命中与未命中计数。
  - 告警指标：健康告警计数，按 type/severity 分组。
*/
package metrics
