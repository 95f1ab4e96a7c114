// Command seihin is a personal expense tracker with offline-first
// synchronization across devices.
package main

import (
	"fmt"
	"os"

	"github.com/seihin-app/seihin/internal/config"
	"github.com/seihin-app/seihin/internal/remote"
	"github.com/seihin-app/seihin/internal/store"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "seihin",
	Short: "Offline-first expense tracking",
	Long: `Seihin tracks daily expenses and weekly budgets in a local SQLite
database and keeps devices in sync through a shared snapshot file.

All commands work fully offline. When a remote is configured (a shared
folder or Dropbox), 'seihin sync' and 'seihin daemon' reconcile devices
with last-writer-wins merging; nothing is ever lost to a network error.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// fatalf prints an error and exits. Command bodies use it for failures
// that have already been fully described.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// openStore loads config and opens the local database with its schema
// initialized.
func openStore(cmd *cobra.Command) (*store.Store, config.Config) {
	cfg, err := config.Load()
	if err != nil {
		fatalf("invalid configuration: %v", err)
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		fatalf("failed to open database: %v", err)
	}
	if err := st.InitSchema(cmd.Context()); err != nil {
		_ = st.Close()
		fatalf("failed to initialize database: %v", err)
	}
	return st, cfg
}

// buildRemote constructs the configured remote client. The returned blob
// path is non-empty only for the dir backend, for file watching. A nil
// client means sync is disabled.
func buildRemote(cfg config.Config) (remote.Client, string) {
	switch cfg.Remote.Backend {
	case "dir":
		rc, err := remote.NewDir(cfg.Remote.Dir)
		if err != nil {
			fatalf("failed to open remote directory: %v", err)
		}
		return rc, rc.BlobPath()
	case "dropbox":
		return remote.NewDropbox(cfg.Remote.DropboxToken, cfg.Remote.DropboxPath), ""
	default:
		return nil, ""
	}
}
