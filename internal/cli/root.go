// Package cli implements the provtech command line console: a live
// watch mode that mirrors the compliance dashboard's alert panel, plus
// one-shot commands for listing and working alerts.
package cli

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/cisseniang564/ProvTech-sub001/pkg/client"
)

var (
	cfgFile      string
	outputFormat string
	serverURL    string
	apiToken     string
	noColor      bool
	apiClient    *client.Client
)

var rootCmd = &cobra.Command{
	Use:   "provtech",
	Short: "ProvTech alert console - real-time IFRS 17 / Solvency II breach monitoring",
	Long: `The ProvTech alert console follows threshold breaches raised by the
compliance calculation engine. It keeps a live working set reconciled
from the push channel and periodic snapshots, lets operators
acknowledge and resolve alerts, and raises desktop-style notifications
for new breaches.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		useColor = !noColor && term.IsTerminal(int(os.Stdout.Fd()))

		// Config management works without a reachable server.
		if cmd.Parent() != nil && cmd.Parent().Name() == "config" {
			return nil
		}
		return initClient()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.provtech/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "alert service URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", "", "bearer token (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newAlertsCmd())
	rootCmd.AddCommand(newWatchCmd())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return
		}
		configDir := filepath.Join(home, ".provtech")
		_ = os.MkdirAll(configDir, 0700)
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PROVTECH")
	viper.AutomaticEnv()

	viper.SetDefault("server_url", "http://localhost:8080")
	viper.SetDefault("output", "table")
	viper.SetDefault("operator", defaultOperator())
	viper.SetDefault("poll_interval", "60s")
	viper.SetDefault("recent_alerts", 50)
	viper.SetDefault("log_level", "error")
	viper.SetDefault("debug_addr", "")
	viper.SetDefault("notifications.sound", true)
	viper.SetDefault("notifications.toast_rate", 0.5)
	viper.SetDefault("notifications.toast_burst", 3)
	viper.SetDefault("notifications.digest_interval", "5s")
	viper.SetDefault("notifications.sound_min_gap", "10s")

	_ = viper.ReadInConfig()
}

func defaultOperator() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "console"
}

func resolvedServerURL() string {
	if serverURL != "" {
		return serverURL
	}
	return viper.GetString("server_url")
}

func resolvedToken() string {
	if apiToken != "" {
		return apiToken
	}
	return viper.GetString("token")
}

func initClient() error {
	url := resolvedServerURL()
	if url == "" {
		return fmt.Errorf("no server URL configured. Run 'provtech config init' first")
	}

	apiClient = client.NewClient(client.Config{
		BaseURL: url,
		Token:   resolvedToken(),
		Timeout: 30 * time.Second,
	})
	return nil
}

// authHeader builds the extra handshake headers the push channel dials
// with.
func authHeader() http.Header {
	token := resolvedToken()
	if token == "" {
		return nil
	}
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

func getOutputFormat() string {
	if outputFormat != "" && outputFormat != "table" {
		return outputFormat
	}
	return viper.GetString("output")
}
