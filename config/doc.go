// Package config 提供 agentteam 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量 的顺序合并，最后统一校验。
// 环境变量名由前缀与各级 env 标签拼接而成，例如
// AGENTTEAM_ORCHESTRATOR_SEQUENTIAL_DELAY=0s。
package config
