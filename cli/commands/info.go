package commands

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewInfoCommand creates the info command.
func NewInfoCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the server behind the configured connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			conn, err := st.connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close(ctx)

			v, err := conn.EngineVersion(ctx)
			if err != nil {
				return err
			}

			rewriting := "off"
			if r := conn.Rewriter(); r != nil {
				rewriting = "on (threshold " + strconv.Itoa(r.Threshold()) + ", schema " + r.Schema() + ")"
			}

			st.out.Header("sqlsrv", conn.Dialect().Name())
			return st.out.Table([]string{"Setting", "Value"}, [][]string{
				{"Driver", conn.Dialect().Name()},
				{"Version", v.Raw},
				{"Level", v.Level},
				{"Edition", v.Edition},
				{"Engine edition", strconv.Itoa(v.EngineEdition)},
				{"Rewriting", rewriting},
				{"Functions", strings.Join(st.cfg.Functions, ", ")},
				{"Cache", st.cfg.Cache.Backend},
				{"Table prefix", st.cfg.TablePrefix},
			})
		},
	}
}
