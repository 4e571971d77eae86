package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/warp/expense-engine/finance"
	"github.com/warp/expense-engine/logging"
	"github.com/warp/expense-engine/transfer"
)

// =============================================================================
// EXPENSES & BUDGETS
// =============================================================================

func newAddCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "add <date> <category> <amount> [description...]",
		Short: "Add one expense",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := finance.ParseDate(args[0])
			if err != nil {
				return err
			}
			category, err := finance.ParseCategory(args[1])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			if !amount.IsPositive() {
				return &finance.ValidationError{Field: "amount", Value: args[2], Err: finance.ErrInvalidAmount}
			}

			ws, err := opts.open(cmd)
			if err != nil {
				return err
			}
			ws.session.Expenses().Add(finance.NewExpense(date, category, amount, strings.Join(args[3:], " ")))
			if err := ws.save(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added expense %d\n", ws.session.Expenses().Len()-1)
			return nil
		},
	}
}

func newListCmd(opts *options) *cobra.Command {
	var category, month string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List expenses with their index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := opts.open(cmd)
			if err != nil {
				return err
			}

			expenses := ws.session.Expenses().All()
			if category != "" {
				expenses = ws.session.Expenses().FilterByCategory(category)
			}
			if month != "" {
				m, err := finance.ParseMonth(month)
				if err != nil {
					return err
				}
				var inMonth []finance.Expense
				for _, e := range expenses {
					if m.Contains(e.Date) {
						inMonth = append(inMonth, e)
					}
				}
				expenses = inMonth
			}

			out := cmd.OutOrStdout()
			for _, e := range expenses {
				i, _ := ws.session.Expenses().IndexOf(e.ID)
				fmt.Fprintf(out, "%d. %s\n", i, e)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Only this category (case-insensitive)")
	cmd.Flags().StringVar(&month, "month", "", "Only this month (YYYY-MM)")
	return cmd
}

func newSetBudgetCmd(opts *options) *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "set-budget <category> <amount>",
		Short: "Set a category budget for a month",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := finance.ParseCategory(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			m, err := monthOrCurrent(month)
			if err != nil {
				return err
			}

			ws, err := opts.open(cmd)
			if err != nil {
				return err
			}
			if err := ws.session.Budgets().SetBudget(category, amount, m); err != nil {
				return err
			}
			if err := ws.save(cmd.Context()); err != nil {
				return err
			}
			ws.log.Debug("budget set", logging.FieldUser, opts.user, logging.FieldMonth, m.String(),
				"category", string(category), "amount", finance.FormatAmount(amount))
			fmt.Fprintf(cmd.OutOrStdout(), "%s budget for %s set to %s\n", category, m, finance.FormatAmount(amount))
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "Month (YYYY-MM), default current")
	return cmd
}

// =============================================================================
// REPORTS
// =============================================================================

func newReportCmd(opts *options) *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the monthly report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := monthOrCurrent(month)
			if err != nil {
				return err
			}
			ws, err := opts.open(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ws.session.Reports().MonthlySummary(m))
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "Month (YYYY-MM), default current")
	return cmd
}

func newMonthsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "months",
		Short: "List months with budgets or expenses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := opts.open(cmd)
			if err != nil {
				return err
			}
			for _, m := range ws.session.Budgets().AvailableMonths() {
				fmt.Fprintln(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
}

// =============================================================================
// TRANSFER
// =============================================================================

func newImportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import transactions (date,category,amount,description per line)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := opts.open(cmd)
			if err != nil {
				return err
			}

			result, err := transfer.ImportFile(args[0], ws.session)
			out := cmd.OutOrStdout()
			for _, le := range result.Errors {
				fmt.Fprintln(cmd.ErrOrStderr(), le)
			}
			if err != nil {
				return err
			}
			if err := ws.save(cmd.Context()); err != nil {
				return err
			}
			ws.transferLog("import").Debug("import finished", logging.FieldPath, args[0],
				"imported", result.Imported, "errors", len(result.Errors))
			fmt.Fprint(out, result.Summary())
			return nil
		},
	}
}

func newExportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Export all expenses as transaction lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := opts.open(cmd)
			if err != nil {
				return err
			}
			if err := transfer.ExportFile(args[0], ws.session); err != nil {
				return err
			}
			ws.transferLog("export").Debug("export finished", logging.FieldPath, args[0], "expenses", ws.session.Expenses().Len())
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d expenses to %s\n", ws.session.Expenses().Len(), args[0])
			return nil
		},
	}
}

func newWorkbookCmd(opts *options) *cobra.Command {
	var months []string

	cmd := &cobra.Command{
		Use:   "workbook <file.xlsx>",
		Short: "Write transactions and monthly summaries to an XLSX workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var selected []finance.Month
			for _, raw := range months {
				m, err := finance.ParseMonth(raw)
				if err != nil {
					return err
				}
				selected = append(selected, m)
			}

			ws, err := opts.open(cmd)
			if err != nil {
				return err
			}
			if err := transfer.ExportWorkbook(args[0], ws.session, selected); err != nil {
				return err
			}
			ws.transferLog("workbook").Debug("workbook written", logging.FieldPath, args[0], "months", len(selected))
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&months, "month", nil, "Months to summarize (repeatable), default all")
	return cmd
}

// =============================================================================
// MAINTENANCE
// =============================================================================

func newBackupCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Copy the user's data file to its .backup sibling",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := opts.store(cmd)
			if err != nil {
				return err
			}
			if err := store.Backup(cmd.Context(), userOf(opts)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backed up to %s\n", store.BackupPath(opts.user))
			return nil
		},
	}
}

func newDeleteUserCmd(opts *options) *cobra.Command {
	var hash, salt string

	cmd := &cobra.Command{
		Use:   "delete-user",
		Short: "Delete the user's data file and, with --hash, their credential line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := opts.store(cmd)
			if err != nil {
				return err
			}
			user := userOf(opts)
			user.PasswordHash = hash
			user.Salt = salt

			if err := store.DeleteUserData(cmd.Context(), user); err != nil {
				return err
			}
			if hash != "" {
				if err := store.DeleteUserCredential(cmd.Context(), user); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted data for %s\n", opts.user)
			return nil
		},
	}
	cmd.Flags().StringVar(&hash, "hash", "", "Password hash as stored in users.txt")
	cmd.Flags().StringVar(&salt, "salt", "", "Salt as stored in users.txt")
	return cmd
}

// =============================================================================
// HELPERS
// =============================================================================

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, &finance.ValidationError{Field: "amount", Value: s, Err: errors.Join(finance.ErrInvalidAmount, err)}
	}
	return d, nil
}

func monthOrCurrent(raw string) (finance.Month, error) {
	if raw == "" {
		return finance.CurrentMonth(), nil
	}
	return finance.ParseMonth(raw)
}
