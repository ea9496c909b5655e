// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 longrunning 跟踪多阶段长时任务的进度，并支持基于检查点的暂停与恢复。

# 任务类型

  - workflow：按声明顺序执行阶段，指定了智能体的阶段通过 PhaseRunner
    交给会话成员完成（SessionRunner 基于 Orchestrator.Respond）
  - collaboration：整个任务交给 Collaborator，讨论阶段映射为
    25/50/75/100 的进度
  - general：按步骤（没有步骤时按阶段）执行，每步耗时由复杂度决定

# 检查点

每完成一个阶段或步骤、以及每次暂停，都会记录一个检查点。检查点保存
任务的深拷贝快照，按任务保留有限个数，最早的先被淘汰。恢复时从最近的
检查点继续，严格从检查点位置之后执行，不会重复已完成的阶段。

# 生命周期

pending → running → completed | failed，running 与 paused 之间可以
往返。完成或失败的任务移入历史，DeleteTask 是唯一的回收方式。
*/
package longrunning
