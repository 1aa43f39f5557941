// Copyright (c) VeriFlow Authors.
// Licensed under the MIT License.

/*
Package persistence 提供核验结论与工作流执行记录的持久化存储。

# 概述

核验流水线每完成一次裁决，都会产出一份 DecisionResult 与对应的
WorkflowExecution。本包通过统一的 Store 接口将两者落盘，供历史查询
接口（GET /api/v1/verifications）与事后审计使用。上层通过工厂函数
NewStore 按配置选择后端，业务代码不感知存储细节。

# 后端

  - memory：进程内存储，默认后端，适合开发与测试，重启即失。
  - redis：JSON 值 + 有序集合索引，按裁决时间倒序列出，支持 TTL。
  - mongo：文档存储，request_id 唯一索引，timestamp 倒序索引。
  - sql：GORM 关系存储（postgres/mysql/sqlite），表结构由
    internal/migration 管理，完整结论以 JSON 负载列保存。

# 语义

所有后端遵循同一套语义：SaveDecision 以 request_id 为键幂等覆盖；
GetDecision 未命中返回 ErrNotFound；ListDecisions 按裁决时间从新到旧
返回，limit 非正时采用配置的默认页大小。
*/
package persistence
