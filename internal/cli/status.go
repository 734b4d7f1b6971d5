package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show alert service health and open alert counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			health, err := apiClient.Health(ctx)
			if err != nil {
				return fmt.Errorf("alert service unreachable: %w", err)
			}

			alerts, err := apiClient.Alerts().ListActive(ctx, nil)
			if err != nil {
				return fmt.Errorf("failed to list alerts: %w", err)
			}

			bySeverity := map[string]int{}
			acknowledged := 0
			for _, a := range alerts {
				bySeverity[a.Severity]++
				if a.LifecycleState == "ACKNOWLEDGED" {
					acknowledged++
				}
			}

			if getOutputFormat() != "table" {
				return printOutput(map[string]interface{}{
					"status":       health.Status,
					"version":      health.Version,
					"services":     health.Services,
					"alerts":       len(alerts),
					"acknowledged": acknowledged,
					"by_severity":  bySeverity,
				})
			}

			fmt.Println("ProvTech Alert Service")
			fmt.Println(strings.Repeat("=", 40))
			fmt.Printf("  Server:        %s\n", resolvedServerURL())
			fmt.Printf("  Status:        %s", health.Status)
			if health.Version != "" {
				fmt.Printf(" (version %s)", health.Version)
			}
			fmt.Println()
			for name, state := range health.Services {
				fmt.Printf("  Service %-7s%s\n", name+":", state)
			}
			fmt.Printf("  Open alerts:   %d (%d acknowledged)\n", len(alerts), acknowledged)
			for _, sev := range []string{"critical", "high", "medium", "low"} {
				if n := bySeverity[sev]; n > 0 {
					fmt.Printf("    %-12s %d\n", sev+":", n)
				}
			}
			return nil
		},
	}
}
