// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package handlers 提供 agentteam HTTP API 的请求处理器实现。

# 概述

每个 Handler 持有一个领域组件，并通过 Register 把路由挂到
http.ServeMux 上（Go 1.22 方法路由）。所有 JSON 响应都使用统一信封：

	{"success": true, "data": ..., "timestamp": "..."}
	{"success": false, "error": {"code": "NOT_FOUND", "message": "..."}, "timestamp": "..."}

错误码与状态码来自 types.Error，未知错误按 500 INTERNAL_ERROR 返回。

# 核心类型

  - SessionHandler: 团队创建、会话查询、消息收发（JSON / SSE / WebSocket）
  - CollaborationHandler: 结构化讨论的启动与查询
  - TaskHandler: 长时任务的创建、启动、暂停、恢复与统计
  - CatalogHandler: 角色、模板与智能体记忆视图
  - ToolHandler: 工具列表与调用
  - HealthHandler: /health、/healthz、/ready、/version

# 流式输出

请求头 Accept 含 text/event-stream 时，消息、讨论与任务执行以 SSE 推送，
事件名即事件类型，流以 "data: [DONE]" 结束。WebSocket 通道按帧收发
消息，每轮回复结束后推送 done 帧。
*/
package handlers
