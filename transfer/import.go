/*
Package transfer imports and exports expenses as plain transaction lines.

PURPOSE:
  A transaction file holds one expense per line:

    2024-01-05,Food,50.00,Weekly groceries

  Unlike the per-user data file, bulk import is strict about content:
  the category must be predefined and the amount must be positive.
  Invalid lines are reported and skipped; valid lines are kept even
  when later lines fail (there is no rollback).

OUTCOME:
  Import returns an ImportResult whenever at least one line was
  imported, possibly alongside per-line errors. When nothing was
  imported it returns an *ImportError that wraps the result and matches
  ErrNothingImported.

SEE ALSO:
  - export.go: Export, ExportFile
  - workbook.go: XLSX export with monthly summaries
  - persist/codec.go: Shares the expense line format
*/
package transfer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/expense-engine/finance"
	"github.com/warp/expense-engine/persist"
)

// ErrNothingImported is matched by *ImportError.
var ErrNothingImported = errors.New("no transactions imported")

// ErrLineTooLong is recorded for a line over MaxLineLength bytes.
var ErrLineTooLong = errors.New("line too long")

// MaxLineLength bounds a single transaction line.
const MaxLineLength = 64 * 1024

// =============================================================================
// RESULT TYPES
// =============================================================================

// LineError describes one rejected line.
type LineError struct {
	Line   int
	Reason string
	Err    error
}

func (e LineError) String() string { return fmt.Sprintf("line %d: %s", e.Line, e.Reason) }

// ImportResult is the outcome of an import that added at least one expense,
// or the payload of an ImportError when it added none.
type ImportResult struct {
	Imported int
	Errors   []LineError
}

// PartialSuccess reports whether anything was imported.
func (r ImportResult) PartialSuccess() bool { return r.Imported > 0 }

// Summary renders the human-readable import report.
func (r ImportResult) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Successfully imported %d transactions\n", r.Imported)
	if len(r.Errors) > 0 {
		sb.WriteString("\nErrors encountered:\n")
		for _, e := range r.Errors {
			sb.WriteString(e.String())
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// ImportError is returned when an import added nothing.
type ImportError struct {
	Result ImportResult
}

func (e *ImportError) Error() string {
	if len(e.Result.Errors) == 0 {
		return ErrNothingImported.Error() + ": no transaction lines"
	}
	return fmt.Sprintf("%v: %d invalid lines", ErrNothingImported, len(e.Result.Errors))
}

func (e *ImportError) Unwrap() error { return ErrNothingImported }

// =============================================================================
// IMPORT
// =============================================================================

// Import reads transaction lines from r into session. Subscribers receive
// one EventImported when at least one expense was added.
func Import(r io.Reader, session *finance.Session) (ImportResult, error) {
	var result ImportResult
	err := session.Events().Batch(finance.EventImported, func() error {
		return importLines(r, session, &result)
	})
	if err != nil {
		return result, err
	}
	if !result.PartialSuccess() {
		return ImportResult{}, &ImportError{Result: result}
	}
	return result, nil
}

// ImportFile imports the transaction file at path.
func ImportFile(path string, session *finance.Session) (ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportResult{}, &finance.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	result, err := Import(f, session)
	var ioErr *finance.IOError
	if errors.As(err, &ioErr) && ioErr.Path == "" {
		ioErr.Path = path
	}
	return result, err
}

func importLines(r io.Reader, session *finance.Session, result *ImportResult) error {
	br := bufio.NewReader(r)
	lineNo := 0
	for {
		line, tooLong, err := readLine(br, MaxLineLength)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &finance.IOError{Op: "read", Err: err}
		}
		lineNo++
		if tooLong {
			result.Errors = append(result.Errors, LineError{Line: lineNo, Reason: ErrLineTooLong.Error(), Err: ErrLineTooLong})
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		e, err := ParseLine(line)
		if err != nil {
			result.Errors = append(result.Errors, LineError{Line: lineNo, Reason: reason(err), Err: err})
			continue
		}
		session.Expenses().Add(e)
		result.Imported++
	}
}

// readLine returns the next line without its terminator. A line longer
// than limit is consumed entirely and reported with tooLong set.
func readLine(br *bufio.Reader, limit int) (line string, tooLong bool, err error) {
	var buf []byte
	for {
		chunk, isPrefix, rerr := br.ReadLine()
		if rerr != nil {
			return "", false, rerr
		}
		if !tooLong {
			if len(buf)+len(chunk) > limit {
				tooLong = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if !isPrefix {
			return string(buf), tooLong, nil
		}
	}
}

// ParseLine validates one transaction line: four comma-separated fields,
// an ISO date, a predefined category and a positive amount. Fields are
// trimmed and semicolons in the description become commas.
func ParseLine(line string) (finance.Expense, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 4 {
		return finance.Expense{}, finance.ErrFieldCount
	}

	date, err := finance.ParseDate(strings.TrimSpace(parts[0]))
	if err != nil {
		return finance.Expense{}, err
	}

	category, err := finance.ParseCategory(strings.TrimSpace(parts[1]))
	if err != nil {
		return finance.Expense{}, err
	}

	raw := strings.TrimSpace(parts[2])
	amount, err := decimal.NewFromString(raw)
	if err != nil || !amount.IsPositive() {
		return finance.Expense{}, &finance.ValidationError{Field: "amount", Value: raw, Err: finance.ErrInvalidAmount}
	}

	description := persist.UnescapeDescription(strings.TrimSpace(parts[3]))
	return finance.NewExpense(date, category, amount, description), nil
}

// reason renders the short per-line message shown in import summaries.
func reason(err error) string {
	var ve *finance.ValidationError
	switch {
	case errors.Is(err, finance.ErrFieldCount):
		return finance.ErrFieldCount.Error()
	case errors.Is(err, finance.ErrInvalidDate):
		return finance.ErrInvalidDate.Error()
	case errors.Is(err, finance.ErrInvalidCategory) && errors.As(err, &ve):
		return finance.ErrInvalidCategory.Error() + " - " + ve.Value
	case errors.Is(err, finance.ErrInvalidAmount):
		return finance.ErrInvalidAmount.Error()
	}
	return err.Error()
}
