package main

import (
	"encoding/json"
	"fmt"

	"github.com/cleanops/internal/clock"
	"github.com/cleanops/internal/config"
	"github.com/cleanops/internal/notify"
	"github.com/cleanops/internal/service"
	"github.com/spf13/cobra"
)

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Продвинуть статусы сохранённых задач по текущему времени",
		RunE:  runReconcile,
	}
	cmd.Flags().BoolP("json", "j", false, "вывести результат в JSON")
	return cmd
}

func runReconcile(cmd *cobra.Command, args []string) error {
	gdb, err := openDB(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd)
	defer logger.Sync() //nolint:errcheck

	cfg := config.Load()
	notifier := notify.New(cfg.TelegramAPIURL, cfg.TelegramBotToken, logger)

	result, err := service.NewReconciler(gdb, clock.Real{}, notifier, logger).Reconcile(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(out, "Проверено: %d, обновлено: %d, ошибок: %d\n", result.Scanned, result.UpdatedCount, len(result.Failures))
	for _, t := range result.Transitions {
		fmt.Fprintf(out, "  %s  %s -> %s\n", t.TaskID, t.From, t.To)
	}
	for _, f := range result.Failures {
		fmt.Fprintf(out, "  %s  ошибка: %s\n", f.TaskID, f.Error)
	}
	return nil
}
