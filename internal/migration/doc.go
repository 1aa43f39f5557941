// Copyright (c) VeriFlow Authors.
// Licensed under the MIT License.

/*
包 migration 提供核验历史库的 Schema 迁移管理能力，支持 PostgreSQL、
MySQL 与 SQLite 三种数据库，基于 golang-migrate 实现。

# 概述

本包通过 embed.FS 内嵌各数据库方言的 SQL 迁移文件，结合
golang-migrate 引擎实现版本化的 Schema 变更管理。迁移内容覆盖
verification_decisions（裁决记录）与 verification_executions
（执行记录）两张核验历史表。支持正向迁移、回滚、按步执行、
跳转到指定版本以及强制设置版本号等操作。

# 核心接口与类型

  - Migrator：迁移器接口，定义 Up/Down/DownAll/Steps/Goto/Force/
    Version/Status/Summary/Close 等完整操作集。
  - SchemaMigrator：Migrator 的默认实现，封装 golang-migrate 实例
    与数据库连接管理。
  - Config：迁移配置，包含方言、连接串与迁移版本表名。
  - Dialect：数据库方言枚举（postgres/mysql/sqlite）。
  - Status / Summary：迁移逐项状态与进度摘要。
  - CLI：命令行交互层，封装 Migrator 提供格式化输出。

# 主要能力

  - 多数据库支持：通过 Dialect 与内嵌 SQL 文件自动适配方言，
    sqlite 使用纯 Go 驱动（modernc.org/sqlite），无需 CGO。
  - 工厂函数：NewMigratorFromConfig / NewMigratorFromDatabaseConfig /
    NewMigratorFromDSN 支持从不同配置源快速创建迁移器。
  - CLI 集成：CLI 类型提供 RunUp/RunDown/RunStatus/RunInfo 等
    面向终端的格式化操作。
  - 辅助工具：ParseDialect 解析方言字符串，BuildDSN 按方言
    拼接连接串。
*/
package migration
