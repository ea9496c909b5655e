// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package telemetry 负责 OpenTelemetry SDK 的初始化与关闭。
// LLM 传输层与 HTTP 中间件通过全局 provider 创建 span，
// 遥测禁用时这些调用落到 noop 实现上。
package telemetry
