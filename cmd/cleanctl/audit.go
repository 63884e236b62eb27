package main

import (
	"fmt"

	"github.com/cleanops/internal/service"
	"github.com/spf13/cobra"
)

func frequencyAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frequency-audit",
		Short: "Показать техкарты с нераспознанной периодичностью",
		RunE:  runFrequencyAudit,
	}
	cmd.Flags().StringSlice("object", nil, "ограничить списком объектов")
	return cmd
}

func runFrequencyAudit(cmd *cobra.Command, args []string) error {
	gdb, err := openDB(cmd)
	if err != nil {
		return err
	}
	objectIDs, _ := cmd.Flags().GetStringSlice("object")

	entries, err := service.NewTechCardService(gdb).FrequencyAudit(cmd.Context(), service.TechCardFilter{ObjectIDs: objectIDs})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "Все периодичности распознаны")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s\t%s\t%s\t%q\n", e.TechCardID, e.ObjectID, e.WorkType, e.FrequencyText)
	}
	fmt.Fprintf(out, "Итого: %d\n", len(entries))
	return nil
}
