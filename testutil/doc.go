// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供测试共享的工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 异步断言: AssertEventuallyTrue、WaitForChannel、Collect
  - 节奏控制: NoSleep 用于把配置的延迟压缩为零
  - 日志观测: ObservedLogger 基于 zaptest/observer

# 子包

  - testutil/mocks: MockTransport（llm.Transport 的脚本化实现）
*/
package testutil
