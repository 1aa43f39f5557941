// Copyright (c) VeriFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 VeriFlow 核验引擎的全局共享类型定义。

# 概述

types 是引擎最底层的公共包，不依赖任何内部包，为 router、workflow、
aggregate、decision、health、api 等上层模块提供统一的类型契约。所有
跨包共享的结构体、枚举和错误码均定义于此，以避免循环依赖。

# 核心类型

  - VerificationRequest — 不可变的核验请求（内容、类别、元数据、优先级）
  - AgentResponse       — 单个 Agent 的裁定结果（Verdict、Confidence、Evidence）
  - Verdict             — 六值裁定枚举，附加权聚合使用的 Score 映射
  - Evidence            — 证据条目（类型、标题、可靠度、时间戳）
  - WorkflowExecution   — 工作流执行记录（波次调度的结果与错误映射）
  - AggregationResult   — 加权共识聚合结果（共识裁定、归一化置信度、合并证据）
  - DecisionResult      — 最终决策（裁定、确定性等级、风险评估、建议）
  - AgentHealth / HealthAlert — 健康监控快照与去重告警
  - Event               — 编排生命周期事件（workflow_started 等五类）
  - Error / ErrorCode   — 结构化错误体系，含 Retryable 标记与错误链

# 主要能力

  - 错误工具链：NewError / WithCause / WithRetryable / IsRetryable / IsErrorCode
  - 优先级乘数：Priority.TimeoutMultiplier / Priority.EstimateMultiplier
  - 裁定打分：Verdict.Score（verified_true=+1、verified_false=-1、misleading=-0.7）
*/
package types
