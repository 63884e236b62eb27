package db

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 是一个全局的数据库连接实例
var DB *gorm.DB

// Models 列出需要自动迁移的全部模型，测试中复用
func Models() []any {
	return []any{
		&User{},
		&DeputyAssignment{},
		&Object{},
		&TechCard{},
		&Checklist{},
		&Task{},
	}
}

// Init 初始化数据库连接并执行自动迁移。
// databasePath 为空时将回退到默认值 cleanops.db。
func Init(databasePath string) error {
	path := strings.TrimSpace(databasePath)
	if path == "" {
		path = "cleanops.db"
	}

	if err := ensureParentDir(path); err != nil {
		return err
	}

	// 并发物化时依赖 SQLite 的忙等待而不是立即报 locked；
	// 写事务以 BEGIN IMMEDIATE 开始，避免读锁升级写锁时的死锁直接返回 busy
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	}

	var err error
	DB, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return err
	}

	return Migrate(DB)
}

// Migrate 自动迁移模式，为核心模型创建表
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(Models()...); err != nil {
		return err
	}

	// 早期版本的技术卡没有 active 列，迁移后默认启用
	if err := gdb.Model(&TechCard{}).
		Where("active IS NULL").
		Update("active", true).Error; err != nil {
		return err
	}

	return nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
