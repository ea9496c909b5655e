// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集，覆盖 HTTP、LLM、
会话编排、结构化讨论、长时任务与工具调用。

# 概述

Collector 使用 promauto 注册到默认 Registry，所有指标按 namespace 隔离。
它实现各业务包定义的小接口（llm.Recorder、conversation.Metrics 等），
业务包本身不依赖 Prometheus。

# 主要能力

  - HTTP 指标：请求总数、耗时、响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - LLM 指标：按 model/mode 统计请求、耗时与 Token 用量。
  - 会话指标：会话创建、消息类型、任务分解结果。
  - 协作与任务指标：讨论结果、长时任务终态、工具调用状态。
*/
package metrics
