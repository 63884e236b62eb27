package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cleanops/internal/db"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func initUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init-user",
		Short: "Создать учётную запись, если её ещё нет",
		RunE:  runInitUser,
	}
	cmd.Flags().StringP("username", "u", "admin", "имя пользователя")
	cmd.Flags().StringP("password", "p", "", "пароль")
	cmd.Flags().String("role", db.RoleAdmin, "роль: admin, deputy или manager")
	cmd.Flags().String("display-name", "", "отображаемое имя")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func runInitUser(cmd *cobra.Command, args []string) error {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	role, _ := cmd.Flags().GetString("role")
	displayName, _ := cmd.Flags().GetString("display-name")

	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return errors.New("username and password are required")
	}
	switch role {
	case db.RoleAdmin, db.RoleDeputy, db.RoleManager:
	default:
		return fmt.Errorf("unknown role %q", role)
	}

	gdb, err := openDB(cmd)
	if err != nil {
		return err
	}

	// 检查是否已存在用户
	var existing db.User
	err = gdb.WithContext(cmd.Context()).Where("username = ?", username).First(&existing).Error
	if err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Пользователь %s уже существует\n", username)
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("find user: %w", err)
	}

	hashed, err := db.HashPassword(password)
	if err != nil {
		return err
	}
	user := db.User{Username: username, Password: hashed, Role: role, DisplayName: strings.TrimSpace(displayName)}
	if err := gdb.WithContext(cmd.Context()).Create(&user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Пользователь %s (%s) создан\n", username, role)
	return nil
}
