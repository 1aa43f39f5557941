// Package telemetry 初始化 OpenTelemetry SDK：OTLP gRPC 的 trace 与
// metric 导出器、ParentBased 比例采样、W3C 传播器，并注册为全局
// Provider。telemetry.enabled 为 false 时返回 noop Providers，
// 不建立任何外部连接，Shutdown 为空操作。
package telemetry
