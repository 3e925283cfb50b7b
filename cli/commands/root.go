// Package commands implements the sqlsrv CLI.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/satishbabariya/sqlsrv-go/cli/internal/ui"
	"github.com/satishbabariya/sqlsrv-go/cli/internal/version"
)

// NewRootCommand builds the sqlsrv command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(newState())
}

func newRootCommand(st *state) *cobra.Command {
	root := &cobra.Command{
		Use:   "sqlsrv",
		Short: "Portable SQL on Microsoft SQL Server",
		Long: `sqlsrv translates portable SQL into SQL Server's dialect and runs it.

Settings are read from .sqlsrv.yaml (working directory, $HOME or
$HOME/.config/sqlsrv), SQLSRV_* environment variables and .env files.
Flags override all of them.`,
		Version:       version.Get().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return st.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&st.cfgFile, "config", "", "config file (default: .sqlsrv.yaml in ., $HOME or $HOME/.config/sqlsrv)")
	flags.String("driver", "", "database driver: sqlserver, postgres, pgx, mysql or sqlite3")
	flags.String("dsn", "", "data source name (default: $DATABASE_URL)")
	flags.String("table-prefix", "", "prefix for {table} references")
	flags.String("cache-backend", "", "rewrite cache backend: memory, stub, redis or file")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: text or json")
	flags.BoolVar(&st.noColor, "no-color", false, "disable colored output")

	for key, flag := range map[string]string{
		"driver":        "driver",
		"dsn":           "dsn",
		"table_prefix":  "table-prefix",
		"cache.backend": "cache-backend",
		"log.level":     "log-level",
		"log.format":    "log-format",
	} {
		_ = st.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(NewRewriteCommand(st))
	root.AddCommand(NewPaginateCommand(st))
	root.AddCommand(NewTempCommand(st))
	root.AddCommand(NewMergeCommand(st))
	root.AddCommand(NewExecCommand(st))
	root.AddCommand(NewInfoCommand(st))
	root.AddCommand(NewConfigCommand(st))
	root.AddCommand(NewVersionCommand())

	return root
}

// Execute runs the root command.
func Execute() error {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		ui.New(root.OutOrStdout(), root.ErrOrStderr()).Error("%v", err)
		return err
	}
	return nil
}
