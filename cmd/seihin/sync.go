package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/seihin-app/seihin/internal/remote"
	"github.com/seihin-app/seihin/internal/syncer"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync round now",
	Long: `Synchronize with the configured remote.

One round fetches the remote snapshot, merges it with local state
(last-writer-wins per record), uploads the merged snapshot, and purges
locally deleted records. A concurrent write by another device is retried
once; a second conflict fails the round and the next run reconciles.`,
	Run: func(cmd *cobra.Command, args []string) {
		st, cfg := openStore(cmd)
		defer st.Close()

		rc, _ := buildRemote(cfg)
		if rc == nil {
			fatalf("no remote configured (set remote.backend in the config file)")
		}

		s := syncer.New(st, rc, nil)
		start := time.Now()
		if err := s.Sync(cmd.Context()); err != nil {
			if errors.Is(err, remote.ErrConflict) {
				fatalf("sync failed on a concurrent write; run again to reconcile: %v", err)
			}
			fatalf("sync failed: %v", err)
		}
		fmt.Printf("Sync complete in %v\n", time.Since(start).Round(time.Millisecond))
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync configuration and the last completed round",
	Run: func(cmd *cobra.Command, args []string) {
		st, cfg := openStore(cmd)
		defer st.Close()

		fmt.Printf("Remote:    %s", cfg.Remote.Backend)
		switch cfg.Remote.Backend {
		case "dir":
			fmt.Printf(" (%s)", cfg.Remote.Dir)
		case "dropbox":
			fmt.Printf(" (%s)", cfg.Remote.DropboxPath)
		}
		fmt.Println()

		last, err := st.LastSync(cmd.Context())
		if err != nil {
			fatalf("%v", err)
		}
		if last == "" {
			fmt.Println("Last sync: never")
		} else {
			fmt.Printf("Last sync: %s\n", last)
		}
	},
}

func init() {
	syncCmd.AddCommand(syncStatusCmd)
	rootCmd.AddCommand(syncCmd)
}
