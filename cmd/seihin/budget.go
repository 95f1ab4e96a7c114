package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/seihin-app/seihin/internal/record"
	"github.com/spf13/cobra"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Manage weekly budgets",
	Long: `Manage weekly budgets.

Each week (Monday-start) resolves its budget as: the week's override if
one is set, otherwise the default budget, otherwise none.`,
}

var budgetSetCmd = &cobra.Command{
	Use:   "set DATE AMOUNT",
	Short: "Set a budget override for the week containing DATE",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		weekStart, err := record.WeekStartOf(args[0])
		if err != nil {
			fatalf("%v", err)
		}
		amount, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			fatalf("invalid amount %q", args[1])
		}

		st, _ := openStore(cmd)
		defer st.Close()

		if err := st.SetWeekBudget(cmd.Context(), weekStart, amount); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("Budget for week of %s set to %d\n", weekStart, amount)
	},
}

var budgetClearCmd = &cobra.Command{
	Use:   "clear DATE",
	Short: "Remove the override for the week containing DATE",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		weekStart, err := record.WeekStartOf(args[0])
		if err != nil {
			fatalf("%v", err)
		}

		st, _ := openStore(cmd)
		defer st.Close()

		if err := st.DeleteWeekBudget(cmd.Context(), weekStart); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("Week of %s falls back to the default budget\n", weekStart)
	},
}

var budgetDefaultCmd = &cobra.Command{
	Use:   "default AMOUNT",
	Short: "Set the default weekly budget",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		amount, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fatalf("invalid amount %q", args[0])
		}

		st, _ := openStore(cmd)
		defer st.Close()

		if err := st.SetDefaultWeekBudget(cmd.Context(), amount); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("Default weekly budget set to %d\n", amount)
	},
}

var budgetShowCmd = &cobra.Command{
	Use:   "show [DATE]",
	Short: "Show the budget and spending for a week (default: this week)",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		date := time.Now().Format("2006-01-02")
		if len(args) == 1 {
			date = args[0]
		}
		weekStart, err := record.WeekStartOf(date)
		if err != nil {
			fatalf("%v", err)
		}

		st, _ := openStore(cmd)
		defer st.Close()

		budget, ok, err := st.BudgetForWeek(cmd.Context(), weekStart)
		if err != nil {
			fatalf("%v", err)
		}

		end, _ := time.Parse("2006-01-02", weekStart)
		expenses, err := st.ExpensesByDateRange(cmd.Context(), weekStart, end.AddDate(0, 0, 6).Format("2006-01-02"))
		if err != nil {
			fatalf("%v", err)
		}
		var spent int64
		for _, e := range expenses {
			if !e.IsSpecial {
				spent += e.Amount
			}
		}

		fmt.Printf("Week of %s\n", weekStart)
		if ok {
			fmt.Printf("  Budget:    %d\n", budget)
			fmt.Printf("  Spent:     %d\n", spent)
			fmt.Printf("  Remaining: %d\n", budget-spent)
		} else {
			fmt.Printf("  Budget:    (not set)\n")
			fmt.Printf("  Spent:     %d\n", spent)
		}
	},
}

func init() {
	budgetCmd.AddCommand(budgetSetCmd)
	budgetCmd.AddCommand(budgetClearCmd)
	budgetCmd.AddCommand(budgetDefaultCmd)
	budgetCmd.AddCommand(budgetShowCmd)
	rootCmd.AddCommand(budgetCmd)
}
