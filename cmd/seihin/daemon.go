package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/seihin-app/seihin/internal/daemon"
	"github.com/seihin-app/seihin/internal/dashboard"
	"github.com/seihin-app/seihin/internal/syncer"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var daemonForeground bool

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background sync daemon",
	Long: `Run the sync daemon.

The daemon performs one round on startup, then watches the local
database (and a directory remote's snapshot file) for changes, debounces
bursts of edits, and runs periodic fallback rounds. With the dashboard
enabled it also serves live sync status over WebSocket.

Logs rotate under the configured log path; pass --foreground to log to
stderr instead.`,
	Run: func(cmd *cobra.Command, args []string) {
		st, cfg := openStore(cmd)
		defer st.Close()

		rc, blobPath := buildRemote(cfg)
		if rc == nil {
			fatalf("no remote configured; the daemon has nothing to sync")
		}

		var out io.Writer = os.Stderr
		if !daemonForeground {
			out = &lumberjack.Logger{
				Filename:   cfg.Log.Path,
				MaxSize:    cfg.Log.MaxSizeMB,
				MaxBackups: cfg.Log.MaxBackups,
				MaxAge:     cfg.Log.MaxAgeDays,
			}
		}
		logger := log.New(out, "[seihin] ", log.LstdFlags)

		s := syncer.New(st, rc, logger)

		var dash *dashboard.Server
		if cfg.Dashboard.Enabled {
			dash = dashboard.NewServer(s, &dashboard.Config{
				Port:   cfg.Dashboard.Port,
				Logger: logger,
			})
			if err := dash.Start(); err != nil {
				fatalf("failed to start dashboard: %v", err)
			}
			defer dash.Stop()
			s.OnEvent(dash.BroadcastEvent)
			fmt.Printf("Dashboard: http://%s/\n", dash.GetAddr())
		}

		d, err := daemon.New(s, cfg.Database.Path, blobPath, &daemon.Config{
			DebounceInterval: cfg.Sync.Debounce,
			PeriodicInterval: cfg.Sync.PeriodicInterval,
			Logger:           logger,
		})
		if err != nil {
			fatalf("failed to create daemon: %v", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Println("Sync daemon running. Press Ctrl+C to stop.")
		if err := d.Start(ctx); err != nil {
			fatalf("daemon stopped with error: %v", err)
		}
	},
}

func init() {
	daemonCmd.Flags().BoolVar(&daemonForeground, "foreground", false, "log to stderr instead of the rotating log file")
	rootCmd.AddCommand(daemonCmd)
}
