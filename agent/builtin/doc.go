// Package builtin 提供一组开箱即用的内置核验 Agent，ID 与默认路由表
// 一一对应：content-analysis、fact-check、source-credibility、
// cross-reference、language-specialist、social-media-analyst、
// education-specialist、media-forensics。
//
// 内置 Agent 的分析逻辑是刻意机械化的：基于 token 统计、词表命中、
// 域名声誉表与正则特征等确定性启发式，不依赖任何外部模型或网络调用，
// 同一输入永远产出同一裁定。它们让引擎无需接入真实核验服务即可
// 端到端运行，也作为实现自定义 Agent 的参照。
//
// 使用方法:
//
//	eng.RegisterAgents(builtin.All(nil, logger)...)
package builtin
