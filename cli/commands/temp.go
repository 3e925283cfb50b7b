package commands

import (
	"github.com/spf13/cobra"

	"github.com/satishbabariya/sqlsrv-go/query/rewrite"
)

// NewTempCommand creates the temp command.
func NewTempCommand(st *state) *cobra.Command {
	var (
		file string
		seed string
	)

	cmd := &cobra.Command{
		Use:   "temp [sql | -]",
		Short: "Show the statement that copies a query into a temporary table",
		Example: `  sqlsrv temp "SELECT id, name FROM users WHERE active = 1"
  sqlsrv temp --seed TEST "SELECT * FROM users"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readSQL(cmd, args, file)
			if err != nil {
				return err
			}

			namer := rewrite.NewTempNamer()
			if seed != "" {
				namer = rewrite.NewTempNamerWithSeed(seed)
			}
			table, stmt := namer.Rewrite(text)

			st.out.Info("Table: %s", table)
			st.out.CodeBlock(st.rewriter().Translate(stmt), "")
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read the statement from a file")
	cmd.Flags().StringVar(&seed, "seed", "", "fixed name seed instead of a random one")

	return cmd
}
