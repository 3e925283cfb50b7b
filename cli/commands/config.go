package commands

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/sqlsrv-go/cli/internal/config"
)

// NewConfigCommand creates the config command with subcommands.
func NewConfigCommand(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and save settings",
	}

	cmd.AddCommand(newConfigShowCommand(st))
	cmd.AddCommand(newConfigSaveCommand(st))

	return cmd
}

func newConfigShowCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := st.cfg
			source := st.v.ConfigFileUsed()
			if source == "" {
				source = "(none)"
			}
			dsn := "(unset)"
			if cfg.DSN != "" {
				dsn = "(set)"
			}
			return st.out.Table([]string{"Key", "Value"}, [][]string{
				{"config file", source},
				{"driver", cfg.Driver},
				{"dsn", dsn},
				{"table_prefix", cfg.TablePrefix},
				{"cache.backend", cfg.Cache.Backend},
				{"cache.prefix", cfg.Cache.Prefix},
				{"cache.size", strconv.Itoa(cfg.Cache.Size)},
				{"rewrite.threshold", strconv.Itoa(cfg.Threshold)},
				{"rewrite.schema", cfg.Schema},
				{"rewrite.functions", strings.Join(cfg.Functions, ", ")},
				{"log.level", cfg.LogLevel},
				{"log.format", cfg.LogFormat},
			})
		},
	}
}

func newConfigSaveCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Write the resolved settings to $HOME/.config/sqlsrv/.sqlsrv.yaml",
		Long: `Write the resolved settings, flags included, to the user config file.
The DSN is never written; keep it in DATABASE_URL or SQLSRV_DSN.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.SaveConfig(st.cfg)
			if err != nil {
				return err
			}
			st.out.Success("Saved %s", path)
			return nil
		},
	}
}
