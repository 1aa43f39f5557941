// Copyright (c) VeriFlow Authors.
// Licensed under the MIT License.

/*
包 database 提供基于 GORM 的数据库连接池管理。

Pool 封装 GORM 与底层 database/sql 的连接池配置，根据 config.DatabaseConfig
选择方言（postgres/mysql/sqlite）并统一设置最大连接数、空闲连接数与连接
生命周期。可选的后台健康循环定期探活并输出连接统计。

事务通过 WithTransaction 执行；WithTransactionRetry 在死锁、序列化失败等
瞬态错误上按指数退避重试。
*/
package database
