// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 提供编排引擎与外部大语言模型之间的传输层。

# 概述

引擎只依赖两个操作：一次性补全 CompleteChat 与流式输出 StreamChat。
本包定义这一契约 [Transport]，并提供 OpenAI 兼容的 HTTP 实现以及
可叠加的增强层。

# 核心类型

  - [Transport]：CompleteChat / StreamChat
  - [HTTPTransport]：OpenAI 兼容接口，SSE 流式解析，无法解析的
    片段记录日志后跳过
  - [ResilientTransport]：限流（x/time/rate）+ 熔断（gobreaker）+ 退避重试
  - [InstrumentedTransport]：Prometheus 指标与 OpenTelemetry span
  - [Config]：单个智能体的模型配置（端点、密钥、模型、超时）

# 组合方式

	base := llm.NewHTTPTransport(nil, logger)
	tr := llm.NewInstrumentedTransport(
	    llm.NewResilientTransport(base, llm.ResilienceConfig{
	        MaxFailures:       5,
	        OpenTimeout:       30 * time.Second,
	        RequestsPerSecond: 5,
	        Burst:             10,
	        Retry:             llm.DefaultRetryPolicy(),
	    }, logger),
	    collector,
	)

# 成本

[EstimateCost] 按 [CostPerToken] 粗略估算单次调用成本。
*/
package llm
