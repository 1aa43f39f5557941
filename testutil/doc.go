// Copyright 2026 VeriFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 VeriFlow 测试的共享工具和辅助函数。

# 概述

testutil 包为整个项目的单元测试与属性测试提供统一的辅助能力，
避免各包重复实现相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 异步断言: AssertEventuallyTrue，支持超时轮询等待条件满足

# 子包

  - testutil/mocks: MockAgent —— Agent 接口的可编程模拟实现，
    支持 Builder 模式、错误注入、延迟模拟与调用计数
  - testutil/fixtures: 测试数据工厂，提供预置核验请求、
    Agent 响应、证据与工作流执行记录等样例
*/
package testutil
