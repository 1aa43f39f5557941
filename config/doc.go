// Copyright (c) VeriFlow Authors.
// Licensed under the MIT License.

/*
Package config 提供核验引擎的配置装载。

配置优先级从低到高：内置默认值、YAML 文件、环境变量。环境变量键由
节名与字段的 yaml 标签推导，例如 server.http_port 对应
VERIFLOW_SERVER_HTTP_PORT，嵌套结构逐层拼接。

	cfg, err := config.NewLoader().
	    WithConfigPath("veriflow.yaml").
	    WithEnvPrefix("VERIFLOW").
	    WithValidator((*config.Config).Validate).
	    Load()

各编排组件（router、workflow、aggregate、decision、health）的配置节
直接复用其包内的 Config 类型，避免两套结构漂移。Watcher 以轮询方式
监听配置文件变更，供运行期动态调整日志级别。
*/
package config
