// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 memory 提供面向智能体的有界记忆。

# 概述

每个智能体拥有一份 [Ledger] 记录，包含三类有界日志和一个按需创建的
知识库：

  - 会话快照：每次应答的触发消息与回复
  - 偏好信号：学习到的键值偏好
  - 经历事件：应答、阶段执行等事件及其成功与否
  - [KnowledgeStore]：按分类的环形缓冲区，支持子串搜索

所有容量都有上限，超过时淘汰最旧的条目；删除智能体记忆只能通过
[Ledger.Forget] 显式完成。

# 核心类型

  - [Ledger]：按智能体 ID 索引的记忆账本，并发安全
  - [KnowledgeStore]：单个智能体的知识日志
  - [KnowledgeEntry]：{时间、分类、内容}

# 与编排器协同

编排器在构建上下文时用当前消息搜索知识库，有命中时追加一条系统消息；
每次应答完成后写入会话快照、经历事件，并把回复存入 conversation 分类。
*/
package memory
