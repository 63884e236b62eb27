package main

import (
	"fmt"
	"os"

	"github.com/cleanops/internal/seed"
	"github.com/spf13/cobra"
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Импортировать пользователей, объекты и техкарты из YAML",
		Long: `Импорт идемпотентен: существующие пользователи, объекты (имя + менеджер)
и техкарты (объект + вид работ + помещение) пропускаются.`,
		RunE: runSeed,
	}
	cmd.Flags().StringP("file", "f", "", "YAML-файл с данными")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runSeed(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()

	fixture, err := seed.Decode(f)
	if err != nil {
		return err
	}

	gdb, err := openDB(cmd)
	if err != nil {
		return err
	}

	summary, err := seed.Apply(cmd.Context(), gdb, fixture)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Создано: пользователей %d, назначений %d, объектов %d, техкарт %d\n",
		summary.Users, summary.Assignments, summary.Objects, summary.TechCards)
	return nil
}
