// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 管理 HTTP 服务器的生命周期。

Manager 封装 net/http.Server：Start 非阻塞启动，Run 阻塞到上下文结束
后优雅关闭，适合放进 errgroup。API 服务与 metrics 服务各持有一个
Manager，日志通过 Config.Name 区分。
*/
package server
