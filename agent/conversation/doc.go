// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 conversation 提供多智能体会话的编排能力。

# 概述

一个 Session 由若干角色智能体组成，人类消息进入会话后，Orchestrator
先评估消息复杂度：达到阈值时交给协调员做任务分解，否则按会话的
工作流策略调度智能体应答。

# 工作流策略

  - round_robin：助手按名单轮流发言，turnCount 在生成前递增
  - group_chat：按关键词与能力评分选出一个助手，无人得分时取第一个
  - sequential：所有助手按名单顺序依次发言，相邻发言之间可配置延迟

# 流式应答

每次应答先向会话追加一条空的占位消息（metadata.streaming=true），
片段按到达顺序追加到内容并触发 content_update 事件，完成后
streaming 置为 false。生成失败时错误说明作为最后一个片段写入。
事件中携带的是快照，调用方可以安全持有。

# 并发

同一会话上的 SendMessage 与 Respond 串行执行；不同会话互不阻塞。
Store 中的会话只通过 Orchestrator 修改，对外返回深拷贝。
*/
package conversation
