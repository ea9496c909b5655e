// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 collaboration 实现多智能体的结构化讨论。

一次讨论依次经历四个阶段：

  - initial_positions：每个参与者陈述立场，置信度由语气词估算
  - debate：立场分歧超过阈值的参与者两两交替反驳
  - consensus_building：协调员综合方案，其他人打分，协调员修订一次
  - finalization：归档摘要并返回结果

单个参与者的生成失败以占位内容记录，讨论继续进行；
协调员提出方案失败会中止讨论并发出 collaboration_error。
没有具备 coordination 能力的参与者时，讨论不产生共识。
*/
package collaboration
