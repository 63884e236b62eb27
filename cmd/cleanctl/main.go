package main

import (
	"fmt"
	"os"

	"github.com/cleanops/internal/config"
	"github.com/cleanops/internal/db"
	"github.com/cleanops/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:           "cleanctl",
		Short:         "Обслуживание базы графика уборки",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("db", cfg.DatabasePath, "путь к файлу SQLite")
	rootCmd.PersistentFlags().String("log-level", cfg.LogLevel, "уровень логирования")

	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(frequencyAuditCmd())
	rootCmd.AddCommand(initUserCmd())

	return rootCmd
}

// openDB 打开 --db 指向的数据库并完成迁移
func openDB(cmd *cobra.Command) (*gorm.DB, error) {
	path, _ := cmd.Flags().GetString("db")
	if err := db.Init(path); err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	return db.DB, nil
}

func newLogger(cmd *cobra.Command) *zap.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	logger, err := logging.New(level, "console", "cleanctl")
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
