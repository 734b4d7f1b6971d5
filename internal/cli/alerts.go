package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cisseniang564/ProvTech-sub001/pkg/client"
)

func newAlertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List and work threshold-breach alerts",
	}

	cmd.AddCommand(newAlertsListCmd())
	cmd.AddCommand(newAlertsAcknowledgeCmd())
	cmd.AddCommand(newAlertsResolveCmd())

	return cmd
}

func newAlertsListCmd() *cobra.Command {
	var severity string
	var acknowledged bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List currently relevant alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			opts := &client.ListActiveOptions{Severity: severity}
			if cmd.Flags().Changed("acknowledged") {
				opts.Acknowledged = &acknowledged
			}

			alerts, err := apiClient.Alerts().ListActive(ctx, opts)
			if err != nil {
				return fmt.Errorf("failed to list alerts: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(alerts)
			}

			now := time.Now()
			t := NewTable("ID", "SEVERITY", "STATE", "RULE", "READING", "AGE")
			for _, a := range alerts {
				t.AddRow(
					a.ID,
					formatSeverity(a.Severity),
					formatState(a.LifecycleState),
					truncate(a.RuleName, 40),
					formatReading(a.CurrentValue, a.ThresholdValue, a.DeviationPercent),
					formatAge(a.TriggeredAt, now),
				)
			}
			t.Render()
			fmt.Printf("\n%d alerts\n", len(alerts))
			return nil
		},
	}

	cmd.Flags().StringVar(&severity, "severity", "", "filter by severity (low, medium, high, critical)")
	cmd.Flags().BoolVar(&acknowledged, "acknowledged", false, "filter by acknowledged state")

	return cmd
}

func newAlertsAcknowledgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "acknowledge <id>",
		Aliases: []string{"ack"},
		Short:   "Acknowledge an alert",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := apiClient.Alerts().Acknowledge(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to acknowledge alert: %w", err)
			}

			fmt.Printf("Alert %s acknowledged (%s)\n", a.ID, a.RuleName)
			return nil
		},
	}
}

func newAlertsResolveCmd() *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Resolve an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := apiClient.Alerts().Resolve(context.Background(), args[0], notes)
			if err != nil {
				return fmt.Errorf("failed to resolve alert: %w", err)
			}

			fmt.Printf("Alert %s resolved (%s)\n", a.ID, a.RuleName)
			return nil
		},
	}

	cmd.Flags().StringVarP(&notes, "notes", "n", "", "resolution notes")

	return cmd
}
