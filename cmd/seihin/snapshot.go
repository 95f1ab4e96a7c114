package main

import (
	"fmt"
	"os"

	"github.com/seihin-app/seihin/internal/merge"
	"github.com/seihin-app/seihin/internal/record"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export FILE",
	Short: "Write a snapshot of all local data to FILE",
	Long: `Write local state as a snapshot file.

The file uses the same format as the sync remote, so it doubles as a
backup that any device can import.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		st, _ := openStore(cmd)
		defer st.Close()

		expenses, err := st.ListExpenses(cmd.Context(), false)
		if err != nil {
			fatalf("%v", err)
		}
		budgets, err := st.ListWeekBudgets(cmd.Context(), false)
		if err != nil {
			fatalf("%v", err)
		}
		defaultWB, err := st.DefaultWeekBudget(cmd.Context())
		if err != nil {
			fatalf("%v", err)
		}

		snap := record.Snapshot{
			SchemaVersion:     record.SchemaVersion,
			UpdatedAt:         record.Now(),
			Expenses:          expenses,
			WeekBudgets:       budgets,
			DefaultWeekBudget: defaultWB,
		}
		data, err := snap.Encode()
		if err != nil {
			fatalf("%v", err)
		}
		if err := os.WriteFile(args[0], data, 0644); err != nil {
			fatalf("failed to write %s: %v", args[0], err)
		}
		fmt.Printf("Exported %d expenses, %d week budgets to %s\n", len(expenses), len(budgets), args[0])
	},
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Merge a snapshot file into local data",
	Long: `Merge a snapshot file into the local database.

Records are reconciled with the same last-writer-wins rules as a sync
round: newer wins per record, local wins ties, nothing is overwritten
by stale data. Old snapshot versions are accepted.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			fatalf("failed to read %s: %v", args[0], err)
		}
		snap, err := record.DecodeSnapshot(data)
		if err != nil {
			fatalf("%v", err)
		}

		st, _ := openStore(cmd)
		defer st.Close()

		expenses, err := st.ListExpenses(cmd.Context(), true)
		if err != nil {
			fatalf("%v", err)
		}
		budgets, err := st.ListWeekBudgets(cmd.Context(), true)
		if err != nil {
			fatalf("%v", err)
		}
		defaultWB, err := st.DefaultWeekBudget(cmd.Context())
		if err != nil {
			fatalf("%v", err)
		}

		if err := st.ReplaceExpenses(cmd.Context(), merge.Collections(expenses, snap.Expenses)); err != nil {
			fatalf("%v", err)
		}
		if err := st.ReplaceWeekBudgets(cmd.Context(), merge.Collections(budgets, snap.WeekBudgets)); err != nil {
			fatalf("%v", err)
		}
		if err := st.ReplaceDefaultWeekBudget(cmd.Context(), merge.Singleton(defaultWB, snap.DefaultWeekBudget)); err != nil {
			fatalf("%v", err)
		}

		fmt.Printf("Imported %s (%d expenses, %d week budgets merged)\n",
			args[0], len(snap.Expenses), len(snap.WeekBudgets))
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
