// Copyright (c) VeriFlow Authors.
// Licensed under the MIT License.

/*
包 cache 提供基于 Redis 的决策缓存：同一内容在 TTL 内重复提交时
直接返回缓存的最终决策，跳过整条编排管线。

# 概述

缓存键是内容摘要 sha256(content|kind)，与请求 ID 无关，因此语义上
等价的请求共享缓存条目。条目以 JSON 序列化的 DecisionResult 存储，
损坏条目按未命中处理并被清除。

# 核心类型

  - DecisionCache：决策缓存，持有 go-redis 客户端，提供
    Get/Set/Invalidate/Ping/Close。
  - Key：摘要键构造函数，确定性且与请求 ID 无关。

# 错误语义

未命中返回 ErrCacheMiss 哨兵错误，用 IsCacheMiss 判断。引擎将所有
缓存错误视为可忽略：读失败回落到完整管线，写失败只记日志。
*/
package cache
