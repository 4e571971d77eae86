// budgetctl works on one user's expense data file from the command line:
// importing and exporting transactions, printing monthly reports, setting
// budgets, writing spreadsheets, and backups.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
