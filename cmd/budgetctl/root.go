// =============================================================================
// budgetctl - Root Command
// =============================================================================
//
// COBRA CLI STRUCTURE:
//   budgetctl
//   ├── add          Add one expense
//   ├── list         List expenses
//   ├── set-budget   Set a category budget for a month
//   ├── report       Print a monthly report
//   ├── months       List months with data
//   ├── import       Import a transaction file
//   ├── export       Export all expenses to a transaction file
//   ├── workbook     Write an XLSX workbook
//   ├── backup       Copy the data file to its backup
//   └── delete-user  Delete the data file and credential line
//
// Every command loads <data-dir>/<user>_data.txt first; mutating commands
// save it back afterwards.
//
// =============================================================================

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/warp/expense-engine/finance"
	"github.com/warp/expense-engine/logging"
	"github.com/warp/expense-engine/persist"
)

// options holds the persistent flags shared by every command.
type options struct {
	dataDir string
	user    string
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "budgetctl",
		Short: "Manage a user's expenses and budgets stored in a data file",
		Long: `budgetctl reads and writes the per-user data file used by the expense
server's file backend.

Example Usage:
  budgetctl --user alice import bank.csv
  budgetctl --user alice report --month 2024-01
  budgetctl --user alice workbook alice.xlsx`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", envOr("DATA_DIR", "./data"), "Directory holding user data files")
	root.PersistentFlags().StringVarP(&opts.user, "user", "u", "", "Username whose data file to use")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newAddCmd(opts),
		newListCmd(opts),
		newSetBudgetCmd(opts),
		newReportCmd(opts),
		newMonthsCmd(opts),
		newImportCmd(opts),
		newExportCmd(opts),
		newWorkbookCmd(opts),
		newBackupCmd(opts),
		newDeleteUserCmd(opts),
	)
	return root
}

// workspace is the loaded state a command runs against.
type workspace struct {
	store   *persist.FileStore
	user    persist.User
	session *finance.Session
	log     *logging.Logger
}

func (o *options) logger(cmd *cobra.Command) *logging.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return logging.New(logging.Config{Level: level, Component: logging.ComponentCLI, Output: cmd.ErrOrStderr()})
}

func (o *options) store(cmd *cobra.Command) (*persist.FileStore, *logging.Logger, error) {
	if o.user == "" {
		return nil, nil, errors.New("--user is required")
	}
	if err := userOf(o).Validate(); err != nil {
		return nil, nil, err
	}
	log := o.logger(cmd)
	store, err := persist.NewFileStore(o.dataDir, log)
	if err != nil {
		return nil, nil, err
	}
	return store, log, nil
}

// open loads the user's data file into a fresh session.
func (o *options) open(cmd *cobra.Command) (*workspace, error) {
	store, log, err := o.store(cmd)
	if err != nil {
		return nil, err
	}
	ws := &workspace{
		store:   store,
		user:    userOf(o),
		session: finance.NewSession(),
		log:     log,
	}
	if _, err := store.Load(cmd.Context(), ws.user, ws.session); err != nil {
		return nil, err
	}
	return ws, nil
}

func (ws *workspace) save(ctx context.Context) error {
	return ws.store.Save(ctx, ws.user, ws.session)
}

// transferLog returns the transfer component logger tagged with op.
func (ws *workspace) transferLog(op string) *logging.Logger {
	return ws.log.WithComponent(logging.ComponentTransfer).With(logging.FieldOperation, op)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func userOf(o *options) persist.User { return persist.User{Username: o.user} }
