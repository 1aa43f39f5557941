// Copyright (c) VeriFlow Authors.
// Licensed under the MIT License.

package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// 注册 database/sql 驱动。sqlite 使用纯 Go 实现，免 CGO。
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// =============================================================================
// 内嵌迁移文件：核验历史表（verification_decisions / verification_executions）
// =============================================================================

//go:embed migrations/postgres/*.sql
var postgresFS embed.FS

//go:embed migrations/mysql/*.sql
var mysqlFS embed.FS

//go:embed migrations/sqlite/*.sql
var sqliteFS embed.FS

// Dialect 标识迁移目标的数据库方言。
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect 解析方言字符串，接受常见别名。
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(s) {
	case "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	case "mysql", "mariadb":
		return DialectMySQL, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database dialect: %s", s)
	}
}

// fsys 返回该方言的内嵌迁移文件系统与目录。
func (d Dialect) fsys() (fs.FS, string, error) {
	switch d {
	case DialectPostgres:
		return postgresFS, "migrations/postgres", nil
	case DialectMySQL:
		return mysqlFS, "migrations/mysql", nil
	case DialectSQLite:
		return sqliteFS, "migrations/sqlite", nil
	default:
		return nil, "", fmt.Errorf("unsupported database dialect: %s", d)
	}
}

// driverName 返回 database/sql 驱动名。
func (d Dialect) driverName() (string, error) {
	switch d {
	case DialectPostgres:
		return "postgres", nil
	case DialectMySQL:
		return "mysql", nil
	case DialectSQLite:
		return "sqlite", nil
	default:
		return "", fmt.Errorf("unsupported database dialect: %s", d)
	}
}

// BuildDSN 按方言拼装连接串。sqlite 时 name 为文件路径。
func BuildDSN(d Dialect, host string, port int, name, user, password, sslMode string) string {
	switch d {
	case DialectPostgres:
		if sslMode == "" {
			sslMode = "require"
		}
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			user, password, host, port, name, sslMode)
	case DialectMySQL:
		// multiStatements 允许单个迁移文件携带多条语句
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
			user, password, host, port, name)
	case DialectSQLite:
		return fmt.Sprintf("file:%s?mode=rwc&_pragma=foreign_keys(1)", name)
	default:
		return ""
	}
}

// Config 迁移器配置。
type Config struct {
	// Dialect 目标方言
	Dialect Dialect

	// DSN 数据库连接串，格式随方言不同
	DSN string

	// TableName 迁移版本表名，默认 schema_migrations
	TableName string
}

// Status 是单个迁移版本的状态。
type Status struct {
	Version uint
	Name    string
	Applied bool
	Dirty   bool
}

// Summary 汇总当前迁移进度。
type Summary struct {
	CurrentVersion uint
	Dirty          bool
	Total          int
	Applied        int
	Pending        int
}

// Migrator 是 CLI 消费的迁移操作集。
type Migrator interface {
	// Up 应用全部待执行迁移
	Up(ctx context.Context) error
	// Down 回滚最近一个迁移
	Down(ctx context.Context) error
	// DownAll 回滚全部迁移
	DownAll(ctx context.Context) error
	// Steps 正数应用、负数回滚 n 个迁移
	Steps(ctx context.Context, n int) error
	// Goto 迁移到指定版本
	Goto(ctx context.Context, version uint) error
	// Force 强制设置版本号而不执行迁移（修复 dirty 状态用）
	Force(ctx context.Context, version int) error
	// Version 返回当前版本与 dirty 标记
	Version(ctx context.Context) (uint, bool, error)
	// Status 返回全部迁移的逐项状态
	Status(ctx context.Context) ([]Status, error)
	// Summary 返回迁移进度摘要
	Summary(ctx context.Context) (*Summary, error)
	// Close 释放数据库连接与迁移器资源
	Close() error
}

// SchemaMigrator 基于 golang-migrate 与内嵌 SQL 实现 Migrator。
type SchemaMigrator struct {
	config  *Config
	migrate *migrate.Migrate
	db      *sql.DB
}

var _ Migrator = (*SchemaMigrator)(nil)

// NewMigrator 创建迁移器并验证数据库连通性。
func NewMigrator(cfg *Config) (*SchemaMigrator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.DSN == "" {
		return nil, errors.New("database DSN is required")
	}
	if cfg.TableName == "" {
		cfg.TableName = "schema_migrations"
	}

	m := &SchemaMigrator{config: cfg}
	if err := m.init(); err != nil {
		return nil, fmt.Errorf("failed to initialize migrator: %w", err)
	}
	return m, nil
}

func (m *SchemaMigrator) init() error {
	db, err := m.openDatabase()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	m.db = db

	dbDriver, err := m.databaseDriver()
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	srcDriver, err := m.sourceDriver()
	if err != nil {
		return fmt.Errorf("failed to create source driver: %w", err)
	}

	m.migrate, err = migrate.NewWithInstance("iofs", srcDriver, string(m.config.Dialect), dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return nil
}

func (m *SchemaMigrator) openDatabase() (*sql.DB, error) {
	driverName, err := m.config.Dialect.driverName()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, m.config.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func (m *SchemaMigrator) databaseDriver() (database.Driver, error) {
	switch m.config.Dialect {
	case DialectPostgres:
		return postgres.WithInstance(m.db, &postgres.Config{MigrationsTable: m.config.TableName})
	case DialectMySQL:
		return mysql.WithInstance(m.db, &mysql.Config{MigrationsTable: m.config.TableName})
	case DialectSQLite:
		return sqlite.WithInstance(m.db, &sqlite.Config{MigrationsTable: m.config.TableName})
	default:
		return nil, fmt.Errorf("unsupported database dialect: %s", m.config.Dialect)
	}
}

func (m *SchemaMigrator) sourceDriver() (source.Driver, error) {
	fsys, dir, err := m.config.Dialect.fsys()
	if err != nil {
		return nil, err
	}
	return iofs.New(fsys, dir)
}

// Up 应用全部待执行迁移；无变更不视为错误。
func (m *SchemaMigrator) Up(ctx context.Context) error {
	if err := m.migrate.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Down 回滚最近一个迁移。
func (m *SchemaMigrator) Down(ctx context.Context) error {
	if err := m.migrate.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// DownAll 回滚全部迁移。
func (m *SchemaMigrator) DownAll(ctx context.Context) error {
	if err := m.migrate.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down all failed: %w", err)
	}
	return nil
}

// Steps 正数应用、负数回滚 n 个迁移。
func (m *SchemaMigrator) Steps(ctx context.Context, n int) error {
	if err := m.migrate.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration steps failed: %w", err)
	}
	return nil
}

// Goto 迁移到指定版本。
func (m *SchemaMigrator) Goto(ctx context.Context, version uint) error {
	if err := m.migrate.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration goto failed: %w", err)
	}
	return nil
}

// Force 强制设置版本号，不执行任何迁移语句。
func (m *SchemaMigrator) Force(ctx context.Context, version int) error {
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("migration force failed: %w", err)
	}
	return nil
}

// Version 返回当前版本。未应用任何迁移时返回 (0, false, nil)。
func (m *SchemaMigrator) Version(ctx context.Context) (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get version: %w", err)
	}
	return version, dirty, nil
}

// Status 返回全部迁移的逐项状态。
func (m *SchemaMigrator) Status(ctx context.Context) ([]Status, error) {
	current, dirty, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}

	files, err := m.availableMigrations()
	if err != nil {
		return nil, err
	}

	statuses := make([]Status, 0, len(files))
	for _, f := range files {
		statuses = append(statuses, Status{
			Version: f.version,
			Name:    f.name,
			Applied: f.version <= current,
			Dirty:   dirty && f.version == current,
		})
	}
	return statuses, nil
}

// Summary 返回迁移进度摘要。
func (m *SchemaMigrator) Summary(ctx context.Context) (*Summary, error) {
	current, dirty, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}

	files, err := m.availableMigrations()
	if err != nil {
		return nil, err
	}

	applied := 0
	for _, f := range files {
		if f.version <= current {
			applied++
		}
	}

	return &Summary{
		CurrentVersion: current,
		Dirty:          dirty,
		Total:          len(files),
		Applied:        applied,
		Pending:        len(files) - applied,
	}, nil
}

// Close 释放迁移器与数据库连接。
func (m *SchemaMigrator) Close() error {
	var errs []error
	if m.migrate != nil {
		sourceErr, dbErr := m.migrate.Close()
		if sourceErr != nil {
			errs = append(errs, sourceErr)
		}
		if dbErr != nil {
			errs = append(errs, dbErr)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to close migrator: %v", errs)
	}
	return nil
}

// migrationFile 是内嵌目录中解析出的一个迁移版本。
type migrationFile struct {
	version uint
	name    string
}

// availableMigrations 枚举内嵌的 *.up.sql 并按版本排序。
// 文件名形如 000001_verification_history.up.sql。
func (m *SchemaMigrator) availableMigrations() ([]migrationFile, error) {
	fsys, dir, err := m.config.Dialect.fsys()
	if err != nil {
		return nil, err
	}

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	seen := make(map[uint]bool)
	var files []migrationFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}

		parts := strings.SplitN(name, "_", 2)
		if len(parts) < 2 {
			continue
		}
		version, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil || seen[uint(version)] {
			continue
		}
		seen[uint(version)] = true

		files = append(files, migrationFile{
			version: uint(version),
			name:    strings.TrimSuffix(parts[1], ".up.sql"),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files, nil
}
