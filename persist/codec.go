package persist

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/expense-engine/finance"
)

const (
	budgetsHeader  = "[BUDGETS]"
	expensesHeader = "[EXPENSES]"

	sectionBudgets  = "BUDGETS"
	sectionExpenses = "EXPENSES"
)

// =============================================================================
// ENCODE
// =============================================================================

// Encode writes the session in the sectioned text format. Budgets are
// emitted per month in ascending order, predefined categories first.
func Encode(w io.Writer, session *finance.Session) error {
	bw := bufio.NewWriter(w)

	bw.WriteString(budgetsHeader + "\n")
	budgets := session.Budgets()
	for _, month := range budgets.AvailableMonths() {
		for _, c := range budgets.SortedCategories(month) {
			fmt.Fprintf(bw, "%s,%s,%s\n", month, c, finance.FormatAmount(budgets.Budget(c, month)))
		}
	}

	bw.WriteString(expensesHeader + "\n")
	for _, e := range session.Expenses().All() {
		bw.WriteString(EncodeExpense(e))
		bw.WriteString("\n")
	}
	return bw.Flush()
}

// EncodeExpense renders one expense line without the trailing newline.
func EncodeExpense(e finance.Expense) string {
	return fmt.Sprintf("%s,%s,%s,%s",
		e.Date, e.Category, finance.FormatAmount(e.Amount), EscapeDescription(e.Description))
}

// EscapeDescription replaces the field delimiter so it cannot split a line.
func EscapeDescription(s string) string { return strings.ReplaceAll(s, ",", ";") }

// UnescapeDescription reverses EscapeDescription, turning every semicolon
// into a comma.
func UnescapeDescription(s string) string { return strings.ReplaceAll(s, ";", ",") }

// =============================================================================
// DECODE
// =============================================================================

// Decode reads the sectioned text format into session. Records are added to
// whatever the session already holds; budgets for the same (month, category)
// are overwritten. Malformed lines are skipped and reported, never fatal.
// Subscribers receive a single EventLoaded when anything was applied.
func Decode(r io.Reader, session *finance.Session) (LoadResult, error) {
	var result LoadResult
	err := session.Events().Batch(finance.EventLoaded, func() error {
		return decode(r, session, &result)
	})
	return result, err
}

func decode(r io.Reader, session *finance.Session, result *LoadResult) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	section := ""
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")

		switch line {
		case budgetsHeader:
			section = sectionBudgets
			continue
		case expensesHeader:
			section = sectionExpenses
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		var reason string
		switch section {
		case sectionBudgets:
			reason = decodeBudget(line, session)
			if reason == "" {
				result.Budgets++
			}
		case sectionExpenses:
			reason = decodeExpense(line, session)
			if reason == "" {
				result.Expenses++
			}
		default:
			reason = "outside of any section"
		}
		if reason != "" {
			result.Skipped = append(result.Skipped, SkippedLine{
				Line: lineNo, Section: section, Text: line, Reason: reason,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return &finance.IOError{Op: "read", Err: err}
	}
	return nil
}

// decodeBudget applies "month,category,amount" and returns why it could not.
func decodeBudget(line string, session *finance.Session) string {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return finance.ErrFieldCount.Error()
	}
	month, err := finance.ParseMonth(parts[0])
	if err != nil {
		return err.Error()
	}
	amount, err := decimal.NewFromString(parts[2])
	if err != nil {
		return finance.ErrInvalidAmount.Error()
	}
	if err := session.Budgets().SetBudget(finance.Category(parts[1]), amount, month); err != nil {
		return err.Error()
	}
	return ""
}

// decodeExpense applies "date,category,amount,description"; the description
// may itself have been written with commas by hand, so only the first three
// delimiters split.
func decodeExpense(line string, session *finance.Session) string {
	e, err := ParseExpenseLine(line)
	if err != nil {
		return err.Error()
	}
	session.Expenses().Add(e)
	return ""
}

// ParseExpenseLine parses one expense line of the data file. The category is
// not checked against the predefined set.
func ParseExpenseLine(line string) (finance.Expense, error) {
	parts := strings.SplitN(line, ",", 4)
	if len(parts) != 4 {
		return finance.Expense{}, finance.ErrFieldCount
	}
	date, err := finance.ParseDate(parts[0])
	if err != nil {
		return finance.Expense{}, err
	}
	amount, err := decimal.NewFromString(parts[2])
	if err != nil {
		return finance.Expense{}, &finance.ValidationError{Field: "amount", Value: parts[2], Err: finance.ErrInvalidAmount}
	}
	return finance.NewExpense(date, finance.Category(parts[1]), amount, UnescapeDescription(parts[3])), nil
}
