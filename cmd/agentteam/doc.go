// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 agentteam 服务端程序入口。

# 概述

cmd/agentteam 组装会话编排器、结构化讨论引擎、长时任务跟踪器、
记忆账本与工具注册表，对外提供 HTTP API。配置来自 YAML 文件与
AGENTTEAM_* 环境变量，日志使用 zap，指标由 Prometheus 暴露，
追踪通过 OTLP 导出。

# 核心类型

  - Server: 构建全部组件，管理 API 与 Metrics 双端口及优雅关闭
  - Middleware: HTTP 中间件函数签名 func(http.Handler) http.Handler
  - HTTPRecorder: 接收 HTTP 请求指标的接口

# 主要能力

  - 子命令：serve（启动服务）、version、health
  - LLM 调用链：HTTP → 限流/熔断/重试 → 指标与追踪
  - 中间件链：Recovery、RequestID、OTelTracing、MetricsMiddleware、
    SecurityHeaders、RequestLogger
  - 就绪检查关联熔断器状态，熔断打开时 /ready 返回 503
  - 优雅关闭：SIGINT/SIGTERM → 停止两个服务 → 取消后台任务 → 刷新遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
