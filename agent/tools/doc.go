// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package tools 提供智能体可调用工具的注册表。
//
// 注册时编译参数的 JSON Schema，调用时先校验参数再执行。
// 内置 knowledge_search 工具基于 memory.Ledger 检索智能体记忆。
package tools
