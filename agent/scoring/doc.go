/*
Package scoring 提供无状态的启发式打分函数。

# 复杂度

[AnalyzeComplexity] 对消息做关键词计分：多步骤短语、不同领域词、
"完整/全面"类词、项目类词各有权重，长消息额外加分，分数达到阈值
（默认 50）即需要任务分解。[SuggestApproach] 根据关键词组合选择分解方式。

# 智能体选择

[Score] = 关键词分 + 能力分 + 经验分：

  - 关键词分：智能体每个能力对应的关键词表，每命中一个 +10
  - 能力分：分析/技术/创意/商业四类请求各自独立判断，命中且持有对应能力 +20
  - 经验分：能力数 × 2

[SelectBest] 取最高分，同分时取名册中靠前的候选，结果可复现。

打分是启发式的，不做语义理解。
*/
package scoring
