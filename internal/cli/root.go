package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ovenledger/ovenledger/internal/production"
	"github.com/ovenledger/ovenledger/internal/store"
)

// RootOptions holds the global flags shared by all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	cfg *Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the ovenledger root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ovenledger",
		Short: "Bakery recipe costing and production ledger",
		Long: `Ovenledger resolves hierarchical bread recipes into ingredient weights,
prices them at weighted-average cost, and tracks production tasks with
immutable recipe snapshots and inventory postings.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			cfg, err := LoadConfig(opts.ConfigPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg

			level := slog.LevelWarn
			if opts.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (YAML)")

	cmd.AddCommand(NewLoadCommand(opts))
	cmd.AddCommand(NewCostCommand(opts))
	cmd.AddCommand(NewBreakdownCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewDetailsCommand(opts))
	cmd.AddCommand(NewTaskCommand(opts))
	cmd.AddCommand(NewConsumptionCommand(opts))
	cmd.AddCommand(NewBOMCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// formatter builds the output formatter for one command invocation.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// openService opens the configured database and wires the service over it.
// The returned close function must run before the command exits.
func (o *RootOptions) openService() (*production.Service, func(), error) {
	st, err := store.Open(o.cfg.DBPath)
	if err != nil {
		return nil, nil, &ExitError{Code: ExitCommandError, Message: "open database " + o.cfg.DBPath, Err: err}
	}
	svc := production.NewService(st)
	return svc, func() { _ = st.Close() }, nil
}

// openStore opens just the store, for commands that bypass the service.
func (o *RootOptions) openStore() (*store.Store, func(), error) {
	st, err := store.Open(o.cfg.DBPath)
	if err != nil {
		return nil, nil, &ExitError{Code: ExitCommandError, Message: "open database " + o.cfg.DBPath, Err: err}
	}
	return st, func() { _ = st.Close() }, nil
}
