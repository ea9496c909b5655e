// Package api 定义 agentteam HTTP API 的请求结构与路由说明。
//
// # 路由概览
//
//	GET    /health, /healthz, /ready, /version
//	GET    /v1/templates, /v1/templates/{id}, /v1/personas
//	GET    /v1/agents/{id}/memory
//	POST   /v1/sessions                      创建团队
//	POST   /v1/sessions/from-template        按模板建队
//	GET    /v1/sessions, /v1/sessions/{id}
//	DELETE /v1/sessions/{id}
//	POST   /v1/sessions/{id}/messages        JSON 或 SSE（Accept: text/event-stream）
//	GET    /v1/sessions/{id}/ws              WebSocket 实时事件
//	POST   /v1/collaborations                结构化讨论（可 SSE）
//	GET    /v1/collaborations, /v1/collaborations/{id}
//	POST   /v1/tasks, GET /v1/tasks, GET /v1/tasks/stats, GET /v1/tasks/{id}
//	POST   /v1/tasks/{id}/start|pause|resume|complete
//	DELETE /v1/tasks/{id}
//	GET    /v1/tools, POST /v1/tools/{name}
//
// Prometheus 指标在独立端口的 /metrics 上暴露。
//
// # 响应格式
//
// 除 SSE 与 WebSocket 外，所有接口返回统一信封：
//
//	{"success": true, "data": ..., "timestamp": "..."}
//	{"success": false, "error": {"code": "NOT_FOUND", "message": "..."}, "timestamp": "..."}
package api
