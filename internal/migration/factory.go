// Copyright (c) VeriFlow Authors.
// Licensed under the MIT License.

package migration

import (
	"fmt"

	"github.com/veriflow-ai/veriflow/config"
)

// NewMigratorFromConfig 从应用配置构造迁移器。
func NewMigratorFromConfig(cfg *config.Config) (*SchemaMigrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	return NewMigratorFromDatabaseConfig(cfg.Database)
}

// NewMigratorFromDatabaseConfig 从数据库配置构造迁移器。
// 不复用 DatabaseConfig.DSN()：迁移需要 mysql 的 multiStatements
// 与 sqlite 的 rwc 模式，与 ORM 连接串不同。
func NewMigratorFromDatabaseConfig(dbCfg config.DatabaseConfig) (*SchemaMigrator, error) {
	dialect, err := ParseDialect(dbCfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("invalid database driver: %w", err)
	}

	// sqlite 时 Name 即文件路径，host/port/凭据无意义
	dsn := BuildDSN(dialect, dbCfg.Host, dbCfg.Port, dbCfg.Name, dbCfg.User, dbCfg.Password, dbCfg.SSLMode)

	return NewMigrator(&Config{
		Dialect:   dialect,
		DSN:       dsn,
		TableName: "schema_migrations",
	})
}

// NewMigratorFromDSN 从方言与连接串直接构造迁移器。
func NewMigratorFromDSN(driver, dsn string) (*SchemaMigrator, error) {
	dialect, err := ParseDialect(driver)
	if err != nil {
		return nil, err
	}

	return NewMigrator(&Config{
		Dialect:   dialect,
		DSN:       dsn,
		TableName: "schema_migrations",
	})
}
