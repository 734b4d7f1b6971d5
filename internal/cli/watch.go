package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cisseniang564/ProvTech-sub001/internal/domain/alert"
	"github.com/cisseniang564/ProvTech-sub001/internal/monitor"
	"github.com/cisseniang564/ProvTech-sub001/internal/notify"
	apperrors "github.com/cisseniang564/ProvTech-sub001/internal/pkg/errors"
	"github.com/cisseniang564/ProvTech-sub001/internal/pkg/logger"
	"github.com/cisseniang564/ProvTech-sub001/internal/pkg/metrics"
	"github.com/cisseniang564/ProvTech-sub001/internal/reconcile"
	"github.com/cisseniang564/ProvTech-sub001/internal/simulator"
	"github.com/cisseniang564/ProvTech-sub001/internal/snapshot"
	"github.com/cisseniang564/ProvTech-sub001/internal/transport"
	"github.com/cisseniang564/ProvTech-sub001/pkg/client"
)

type watchOptions struct {
	mute         bool
	poll         time.Duration
	summaryEvery time.Duration
	dev          bool
	scenario     string
	debugAddr    string
}

func newWatchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow alerts live, with reconciliation and notifications",
		Long: `Watch connects to the alert service's push channel, polls the
authoritative snapshot, and keeps a reconciled working set of open
alerts. New breaches print as toasts (folded into digests during
storms), and lifecycle commands typed at the prompt are applied
optimistically, then reverted if the server rejects them.

With --dev an in-process simulator is started on a loopback port and
watched instead of the configured server, so the console can be tried
without any backend.

Commands while watching:
  ack <id>               acknowledge an alert
  resolve <id> [notes]   resolve an alert
  list                   print the working set
  sync                   force a snapshot poll
  mute                   toggle notification sounds
  quit                   exit (also Ctrl-C)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.poll <= 0 {
				opts.poll = viper.GetDuration("poll_interval")
			}
			if opts.debugAddr == "" {
				opts.debugAddr = viper.GetString("debug_addr")
			}
			if opts.scenario != "" && !opts.dev {
				return fmt.Errorf("--scenario only applies to --dev sessions")
			}
			return runWatch(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.mute, "mute", false, "start with notification sounds off")
	cmd.Flags().DurationVar(&opts.poll, "poll", 0, "snapshot poll interval (default from config)")
	cmd.Flags().DurationVar(&opts.summaryEvery, "summary-every", 30*time.Second, "how often to print the summary line")
	cmd.Flags().BoolVar(&opts.dev, "dev", false, "watch an embedded simulator instead of the configured server")
	cmd.Flags().StringVar(&opts.scenario, "scenario", "", "scenario file for the embedded simulator")
	cmd.Flags().StringVar(&opts.debugAddr, "debug-addr", "", "serve Prometheus metrics on this address (e.g. localhost:9091)")

	return cmd
}

// watchPrefs is consulted on every notification, so the mute command
// and config file edits apply mid-session.
type watchPrefs struct {
	muted *atomic.Bool
}

func (p watchPrefs) SoundEnabled() bool {
	return !p.muted.Load() && viper.GetBool("notifications.sound")
}

func runWatch(opts watchOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Pick up config edits (e.g. muting sounds) without a restart.
	viper.WatchConfig()

	log := logger.New(logger.Config{
		Level:  viper.GetString("log_level"),
		Format: "console",
	})

	operator := viper.GetString("operator")
	server := resolvedServerURL()
	header := authHeader()
	api := apiClient

	if opts.dev {
		devURL, err := startDevSimulator(ctx, opts.scenario, log)
		if err != nil {
			return err
		}
		server, header = devURL, nil
		api = client.NewClient(client.Config{BaseURL: server, Timeout: 30 * time.Second})
		fmt.Printf("Embedded simulator on %s\n", server)
	}

	if opts.debugAddr != "" {
		addr, err := serveDebug(ctx, opts.debugAddr, log)
		if err != nil {
			return err
		}
		fmt.Printf("Metrics on http://%s/metrics\n", addr)
	}

	sessionID := uuid.New().String()
	log.WithFields(map[string]interface{}{
		"session_id": sessionID,
		"server":     server,
		"operator":   operator,
	}).Info("Watch session starting")

	store := reconcile.NewStore(viper.GetInt("recent_alerts"))

	channel := transport.New(transport.Config{
		URL:    pushURL(server),
		Header: header,
	}, log)

	fetcher, err := snapshot.New(api.Alerts(), opts.poll, log)
	if err != nil {
		return fmt.Errorf("failed to set up snapshot polling: %w", err)
	}

	var muted atomic.Bool
	muted.Store(opts.mute)

	dispatcher := notify.NewDispatcher(
		notify.NewConsoleSink(os.Stdout),
		watchPrefs{muted: &muted},
		notify.Config{
			ToastRate:   viper.GetFloat64("notifications.toast_rate"),
			ToastBurst:  viper.GetInt("notifications.toast_burst"),
			SoundMinGap: viper.GetDuration("notifications.sound_min_gap"),
		},
		log,
	)

	mon := monitor.New(channel, fetcher, store, dispatcher, api.Alerts(), operator,
		monitor.Config{FlushInterval: viper.GetDuration("notifications.digest_interval")}, log)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); channel.Run(ctx) }()
	go func() { defer wg.Done(); fetcher.Run(ctx) }()
	go func() { defer wg.Done(); mon.Run(ctx) }()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Printf("Watching %s as %s. Type 'help' for commands, Ctrl-C to quit.\n", server, operator)

	summary := time.NewTicker(opts.summaryEvery)
	defer summary.Stop()

	var lastConn transport.ConnectionState
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			fmt.Println()
			renderSummary(mon.View())
			return nil

		case <-mon.Updates():
			view := mon.View()
			if view.Connection != lastConn {
				fmt.Printf("%s  push channel %s\n",
					time.Now().Format("15:04:05"), formatConnection(string(view.Connection)))
				lastConn = view.Connection
			}

		case <-summary.C:
			fmt.Println(summaryLine(mon.View(), time.Now()))

		case line, ok := <-lines:
			if !ok {
				// stdin closed (piped input ran out); keep watching.
				lines = nil
				continue
			}
			if quit := watchCommand(ctx, mon, &muted, line); quit {
				stop()
			}
		}
	}
}

// watchCommand executes one typed command. It returns true when the
// session should end.
func watchCommand(ctx context.Context, mon *monitor.Monitor, muted *atomic.Bool, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		fmt.Println(summaryLine(mon.View(), time.Now()))
		return false
	}

	switch fields[0] {
	case "ack", "acknowledge":
		if len(fields) != 2 {
			fmt.Println("usage: ack <id>")
			return false
		}
		reportLifecycle(mon.Acknowledge(ctx, fields[1]), fields[1], "acknowledged")

	case "resolve":
		if len(fields) < 2 {
			fmt.Println("usage: resolve <id> [notes]")
			return false
		}
		notes := strings.Join(fields[2:], " ")
		reportLifecycle(mon.Resolve(ctx, fields[1], notes), fields[1], "resolved")

	case "list":
		renderSummary(mon.View())

	case "sync":
		mon.Resync()
		fmt.Println("snapshot poll requested")

	case "mute":
		muted.Store(!muted.Load())
		if muted.Load() {
			fmt.Println("sounds muted")
		} else {
			fmt.Println("sounds on")
		}

	case "help", "?":
		fmt.Println("commands: ack <id> | resolve <id> [notes] | list | sync | mute | quit")

	case "quit", "exit":
		return true

	default:
		fmt.Printf("unknown command %q, try 'help'\n", fields[0])
	}
	return false
}

// reportLifecycle prints the outcome of an acknowledge/resolve. Server
// failures already surfaced as an error toast, so they are not printed
// twice.
func reportLifecycle(err error, id, verb string) {
	switch {
	case err == nil:
		fmt.Printf("alert %s %s\n", id, verb)
	case alert.IsInvalidTransition(err):
		fmt.Printf("alert %s: %v\n", id, err)
	case apperrors.IsLifecycleAction(err):
	default:
		fmt.Printf("alert %s: %v\n", id, err)
	}
}

// startDevSimulator runs an in-process alert simulator on an ephemeral
// loopback port and returns its base URL. Without a scenario it raises
// a random alert every 20s so there is something to watch.
func startDevSimulator(ctx context.Context, scenarioPath string, log *logger.Logger) (string, error) {
	simCfg := simulator.Config{Version: "dev"}
	if scenarioPath != "" {
		sc, err := simulator.LoadScenario(scenarioPath)
		if err != nil {
			return "", fmt.Errorf("failed to load scenario: %w", err)
		}
		simCfg.Scenario = sc
	} else {
		simCfg.FireEvery = 20 * time.Second
	}

	sim := simulator.New(simCfg, log)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("failed to start embedded simulator: %w", err)
	}

	srv := &http.Server{Handler: sim.Handler()}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.ErrorWithErr(err, "Embedded simulator failed")
		}
	}()
	go func() {
		if err := sim.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.ErrorWithErr(err, "Embedded simulator loop exited")
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	return "http://" + ln.Addr().String(), nil
}

// serveDebug exposes Prometheus metrics for the session on addr and
// returns the bound address (addr may use port 0).
func serveDebug(ctx context.Context, addr string, log *logger.Logger) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to start debug listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.ErrorWithErr(err, "Debug listener failed")
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	return ln.Addr().String(), nil
}

// pushURL derives the websocket endpoint from the REST base URL.
func pushURL(server string) string {
	switch {
	case strings.HasPrefix(server, "https://"):
		server = "wss://" + strings.TrimPrefix(server, "https://")
	case strings.HasPrefix(server, "http://"):
		server = "ws://" + strings.TrimPrefix(server, "http://")
	}
	return strings.TrimSuffix(server, "/") + "/ws"
}

// summaryLine condenses the working set into one line.
func summaryLine(v monitor.View, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %d open", now.Format("15:04:05"), v.Counts.Total)

	if n := v.Counts.BySeverity[alert.SeverityCritical]; n > 0 {
		fmt.Fprintf(&b, ", %d critical", n)
	}
	if n := v.Counts.BySeverity[alert.SeverityHigh]; n > 0 {
		fmt.Fprintf(&b, ", %d high", n)
	}
	if n := v.Counts.ByState[alert.StateAcknowledged]; n > 0 {
		fmt.Fprintf(&b, ", %d acknowledged", n)
	}

	fmt.Fprintf(&b, " | push %s", formatConnection(string(v.Connection)))

	if !v.LastSync.IsZero() {
		fmt.Fprintf(&b, " | synced %s ago", formatAge(v.LastSync, now))
	}
	return b.String()
}

// renderSummary prints the full working set, the view an operator wants
// as they leave.
func renderSummary(v monitor.View) {
	if len(v.Alerts) == 0 {
		fmt.Println("No open alerts.")
		return
	}

	now := time.Now()
	t := NewTable("ID", "SEVERITY", "STATE", "RULE", "READING", "AGE")
	for _, a := range v.Alerts {
		t.AddRow(
			a.ID,
			formatSeverity(string(a.Severity)),
			formatState(string(a.State)),
			truncate(a.RuleName, 40),
			formatReading(a.CurrentValue, a.ThresholdValue, a.DeviationPercent),
			formatAge(a.TriggeredAt, now),
		)
	}
	t.Render()
	fmt.Println(summaryLine(v, now))
}
