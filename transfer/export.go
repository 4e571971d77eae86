package transfer

import (
	"bufio"
	"io"
	"os"

	"github.com/warp/expense-engine/finance"
	"github.com/warp/expense-engine/persist"
)

// Export writes one transaction line per expense, in the given order.
// Categories are written as stored, predefined or not.
func Export(w io.Writer, expenses []finance.Expense) error {
	bw := bufio.NewWriter(w)
	for _, e := range expenses {
		bw.WriteString(persist.EncodeExpense(e))
		bw.WriteString("\n")
	}
	return bw.Flush()
}

// ExportFile writes every expense of session to path, replacing the file.
func ExportFile(path string, session *finance.Session) error {
	f, err := os.Create(path)
	if err != nil {
		return &finance.IOError{Op: "open", Path: path, Err: err}
	}
	if err := Export(f, session.Expenses().All()); err != nil {
		f.Close()
		return &finance.IOError{Op: "write", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &finance.IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}
