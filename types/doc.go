// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供编排引擎共享的错误体系。

# 概述

types 是最底层的公共包，不依赖任何内部包。所有跨包返回的结构化错误
都使用 [Error]，调用方通过 [GetErrorCode] / [IsCode] 判断类别，
HTTP 层通过 [HTTPStatusOf] 映射状态码。

# 错误分类

  - NOT_FOUND: 未知的会话、任务、模板或工具
  - CONFIGURATION: 空团队、无效任务配置
  - TRANSPORT: LLM 调用失败（HTTP 状态或网络）
  - PARSE: 流式 JSON 片段无法解析（可恢复，跳过）
  - INVALID_TRANSITION: 任务状态机不允许的迁移
  - TOOL_VALIDATION: 工具参数未通过 JSON Schema 校验
*/
package types
