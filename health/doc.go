// Copyright (c) VeriFlow Authors.
// Licensed under the MIT License.

/*
Package health 提供 agent 健康监控、告警与可用性熔断。

# 概述

health 包按 agent 维护一个有界滚动指标窗口（超过容量丢弃最旧条目），
在每次记录指标后增量更新成功率、平均时延与平均置信度，并据此推导健康
评分与健康状态。评分同时作为聚合器的权重折扣输入。

	healthScore = 0.3×responseTimeScore + 0.5×uptime + 0.2×meanConfidence
	responseTimeScore = max(0, 1 − meanLatency/threshold)

# 告警

每条指标落盘后评估四类告警条件：响应时间、错误率、可用性与连续失败
（≥3 次为 critical）。同一 (agent, type) 组合在冷却窗口内存在未解决
告警时不会重复告警。新告警通过事件总线以 health_update 事件发布。

# 后台探活

Start 启动的轮询循环周期性地调用每个已注册 agent 的 IsAvailable，并把
探测结果作为一条合成指标记录下来，保证无真实流量时健康数据仍然新鲜。
探测经过按 agent 的三态熔断器（closed/open/half-open）：熔断打开期间
跳过真实探测，agent 维持不可用标记，直到恢复窗口放行试探。
*/
package health
