package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/seihin-app/seihin/internal/record"
	"github.com/spf13/cobra"
)

var expenseCmd = &cobra.Command{
	Use:   "expense",
	Short: "Record and inspect expenses",
}

var (
	addDate     string
	addMemo     string
	addCategory string
	addSpecial  bool
)

var expenseAddCmd = &cobra.Command{
	Use:   "add AMOUNT",
	Short: "Record a new expense",
	Long: `Record a new expense in the smallest currency unit.

Examples:
  seihin expense add 500
  seihin expense add 1200 --memo "lunch" --category food
  seihin expense add 30000 --date 2026-03-01 --category other --special`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		amount, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fatalf("invalid amount %q", args[0])
		}

		st, _ := openStore(cmd)
		defer st.Close()

		date := addDate
		if date == "" {
			date = time.Now().Format("2006-01-02")
		}

		e := record.NewExpense(date, amount, addMemo, addCategory)
		e.IsSpecial = addSpecial
		if err := st.AddExpense(cmd.Context(), e); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("Recorded %d (%s) on %s\n", e.Amount, record.CategoryByID(e.Category).Label, e.Date)
	},
}

var (
	listFrom string
	listTo   string
	listWeek bool
	listAll  bool
)

var expenseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List expenses",
	Long: `List expenses, newest section last.

By default lists everything; --week narrows to the current week, and
--from/--to select an explicit date range.`,
	Run: func(cmd *cobra.Command, args []string) {
		st, _ := openStore(cmd)
		defer st.Close()

		var expenses []record.Expense
		var err error
		switch {
		case listWeek:
			weekStart, werr := record.WeekStartOf(time.Now().Format("2006-01-02"))
			if werr != nil {
				fatalf("%v", werr)
			}
			end, _ := time.Parse("2006-01-02", weekStart)
			expenses, err = st.ExpensesByDateRange(cmd.Context(), weekStart, end.AddDate(0, 0, 6).Format("2006-01-02"))
		case listFrom != "" || listTo != "":
			if listFrom == "" || listTo == "" {
				fatalf("--from and --to must be given together")
			}
			expenses, err = st.ExpensesByDateRange(cmd.Context(), listFrom, listTo)
		default:
			expenses, err = st.ListExpenses(cmd.Context(), listAll)
		}
		if err != nil {
			fatalf("%v", err)
		}

		if len(expenses) == 0 {
			fmt.Println("No expenses recorded.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tAMOUNT\tCATEGORY\tMEMO\tID")
		var total int64
		for _, e := range expenses {
			memo := e.Memo
			if e.IsSpecial {
				memo += " *"
			}
			if e.Deleted {
				memo += " (deleted)"
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
				e.Date, e.Amount, record.CategoryByID(e.Category).Label, memo, e.ID)
			if !e.Deleted {
				total += e.Amount
			}
		}
		w.Flush()
		fmt.Printf("\nTotal: %d (%d records)\n", total, len(expenses))
	},
}

var (
	editAmount   int64
	editMemo     string
	editCategory string
	editSpecial  bool
)

var expenseEditCmd = &cobra.Command{
	Use:   "edit ID",
	Short: "Edit an expense",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		st, _ := openStore(cmd)
		defer st.Close()

		e, err := st.GetExpense(cmd.Context(), args[0])
		if err != nil {
			fatalf("%v", err)
		}
		if e == nil || e.Deleted {
			fatalf("expense %s not found", args[0])
		}

		amount, memo, category, special := e.Amount, e.Memo, e.Category, e.IsSpecial
		if cmd.Flags().Changed("amount") {
			amount = editAmount
		}
		if cmd.Flags().Changed("memo") {
			memo = editMemo
		}
		if cmd.Flags().Changed("category") {
			category = editCategory
		}
		if cmd.Flags().Changed("special") {
			special = editSpecial
		}

		if err := st.UpdateExpense(cmd.Context(), e.ID, amount, memo, category, special); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("Updated %s\n", e.ID)
	},
}

var expenseRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete an expense",
	Long: `Delete an expense.

The record is tombstoned so the deletion propagates to other devices on
the next sync, then physically removed.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		st, _ := openStore(cmd)
		defer st.Close()

		if err := st.DeleteExpense(cmd.Context(), args[0]); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("Deleted %s\n", args[0])
	},
}

var expenseCategoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the expense categories",
	Run: func(cmd *cobra.Command, args []string) {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tLABEL")
		for _, c := range record.Categories {
			fmt.Fprintf(w, "%s\t%s\n", c.ID, c.Label)
		}
		w.Flush()
	},
}

func init() {
	expenseAddCmd.Flags().StringVar(&addDate, "date", "", "expense date (YYYY-MM-DD, default today)")
	expenseAddCmd.Flags().StringVar(&addMemo, "memo", "", "free-form note")
	expenseAddCmd.Flags().StringVar(&addCategory, "category", record.DefaultCategory, "expense category")
	expenseAddCmd.Flags().BoolVar(&addSpecial, "special", false, "mark as a special (non-routine) expense")

	expenseListCmd.Flags().StringVar(&listFrom, "from", "", "range start (YYYY-MM-DD)")
	expenseListCmd.Flags().StringVar(&listTo, "to", "", "range end (YYYY-MM-DD)")
	expenseListCmd.Flags().BoolVar(&listWeek, "week", false, "only the current week")
	expenseListCmd.Flags().BoolVar(&listAll, "all", false, "include records deleted but not yet synced")

	expenseEditCmd.Flags().Int64Var(&editAmount, "amount", 0, "new amount")
	expenseEditCmd.Flags().StringVar(&editMemo, "memo", "", "new memo")
	expenseEditCmd.Flags().StringVar(&editCategory, "category", "", "new category")
	expenseEditCmd.Flags().BoolVar(&editSpecial, "special", false, "new special flag")

	expenseCmd.AddCommand(expenseAddCmd)
	expenseCmd.AddCommand(expenseListCmd)
	expenseCmd.AddCommand(expenseEditCmd)
	expenseCmd.AddCommand(expenseRmCmd)
	expenseCmd.AddCommand(expenseCategoriesCmd)
	rootCmd.AddCommand(expenseCmd)
}
