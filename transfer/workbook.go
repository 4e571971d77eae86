package transfer

import (
	"fmt"

	"github.com/warp/expense-engine/finance"
	"github.com/xuri/excelize/v2"
)

const transactionsSheet = "Transactions"

// ExportWorkbook writes an XLSX file with every expense on a Transactions
// sheet, followed by one summary sheet per requested month. A nil months
// slice means every month in the session.
func ExportWorkbook(path string, session *finance.Session, months []finance.Month) error {
	if months == nil {
		months = session.Budgets().AvailableMonths()
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", transactionsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := writeTransactions(f, session.Expenses().All()); err != nil {
		return err
	}

	for _, m := range months {
		if err := writeMonth(f, session.Reports().Build(m)); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return &finance.IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

func writeTransactions(f *excelize.File, expenses []finance.Expense) error {
	header := []any{"Date", "Category", "Amount", "Description"}
	if err := f.SetSheetRow(transactionsSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, e := range expenses {
		row := []any{e.Date.String(), string(e.Category), e.Amount.InexactFloat64(), e.Description}
		if err := setRow(f, transactionsSheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeMonth(f *excelize.File, rep finance.Report) error {
	sheet := rep.Month.String()
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	rows := [][]any{
		{"Category", "Budget", "Spent", "Utilization %", "Expenses"},
	}
	for _, s := range rep.Sections {
		rows = append(rows, []any{
			string(s.Category),
			s.Budget.InexactFloat64(),
			s.Spent.InexactFloat64(),
			s.Utilization.Round(2).InexactFloat64(),
			len(s.Expenses),
		})
	}
	rows = append(rows, []any{"Total", rep.TotalBudget.InexactFloat64(), rep.TotalExpenses.InexactFloat64()})

	for i, row := range rows {
		if err := setRow(f, sheet, i+1, row); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s!%s: %w", sheet, cell, err)
	}
	return nil
}
