// Copyright (c) VeriFlow Authors.
// Licensed under the MIT License.

/*
Package workflow 提供核验工作流的编排与执行引擎。

# 概述

workflow 包将路由器选出的 agent 集合与执行顺序转换为波次（wave）调度计划，
按波次并发调用 agent，并负责每一步的超时竞速、有界重试与指数退避。单个
agent 的失败只记录、不中断其余 agent；所有 agent 落定（成功或重试耗尽）
之后工作流才进入终态。

# 核心类型

  - Manager    — 工作流管理器（Execute / Get / Cancel / Active / Close）
  - Config     — 基础步骤超时、重试上限、退避参数与保留时长
  - 波次调度    — linearDependencies + buildWaves（停滞即环，致命错误）

# 执行语义

  - 依赖模型：executionOrder 视为严格线性链，后序 agent 依赖全部前序 agent
  - 波内并发、波间串行；结果仅在任务落定后合并进 Results / Errors
  - 每次尝试以 goroutine + 带缓冲结果通道与超时计时器竞速，计时器触发后
    迟到的成功结果作废
  - 取消是协作式的：置状态为 cancelled 并停止调度后续波次，已派发的调用
    不被强制终止，其迟到结果被丢弃
*/
package workflow
